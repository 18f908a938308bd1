package testutil

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

var ErrOffline = errors.New("network unreachable")

// Reply is a canned answer for one URL.
type Reply struct {
	Status int
	Header http.Header
	Body   string
	Err    error
	Delay  time.Duration
}

// Network is a scripted http.RoundTripper keyed by absolute URL. Unknown URLs
// answer 404; SetOffline makes every call fail.
type Network struct {
	mu      sync.Mutex
	replies map[string]Reply
	calls   map[string]int
	methods []string
	offline bool
}

func NewNetwork(replies map[string]Reply) *Network {
	n := &Network{replies: make(map[string]Reply), calls: make(map[string]int)}
	for url, reply := range replies {
		n.replies[url] = reply
	}
	return n
}

func (n *Network) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()
	n.mu.Lock()
	n.calls[url]++
	n.methods = append(n.methods, req.Method)
	reply, ok := n.replies[url]
	offline := n.offline
	n.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	if offline {
		return nil, ErrOffline
	}
	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: "not found"}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := reply.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader([]byte(reply.Body))),
		ContentLength: int64(len(reply.Body)),
		Request:       req,
	}, nil
}

func (n *Network) Set(url string, reply Reply) {
	n.mu.Lock()
	n.replies[url] = reply
	n.mu.Unlock()
}

func (n *Network) SetOffline(offline bool) {
	n.mu.Lock()
	n.offline = offline
	n.mu.Unlock()
}

func (n *Network) Calls(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[url]
}

func (n *Network) TotalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.methods)
}
