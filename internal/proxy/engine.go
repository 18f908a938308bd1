package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
)

const CacheStatusHeader = "X-Cache-Status"

// Engine turns inbound requests into absolute outbound requests and writes
// responses back.
type Engine struct {
	network http.RoundTripper
	origin  *url.URL
}

func NewEngine(network http.RoundTripper, origin *url.URL) *Engine {
	if network == nil {
		network = http.DefaultTransport
	}
	return &Engine{network: network, origin: origin}
}

// Outbound builds the request the worker sees. Absolute request URIs are
// kept as they are; everything else is resolved against origin.
func (e *Engine) Outbound(r *http.Request, origin *url.URL) (*http.Request, error) {
	if origin == nil {
		origin = e.origin
	}
	var target *url.URL
	switch {
	case r.URL.IsAbs():
		copied := *r.URL
		target = &copied
	case origin != nil:
		target = origin.ResolveReference(&url.URL{Path: r.URL.Path, RawPath: r.URL.RawPath, RawQuery: r.URL.RawQuery})
	default:
		return nil, errors.New("no origin configured")
	}

	body := r.Body
	if r.Body != nil && r.ContentLength == 0 {
		body = http.NoBody
	}
	outbound, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	outbound.Header = r.Header.Clone()
	outbound.ContentLength = r.ContentLength
	outbound.Host = target.Host
	if requestID, ok := RequestIDFromContext(r.Context()); ok {
		outbound.Header.Set(RequestIDHeader, requestID)
	}
	setForwardedHeaders(outbound, r)
	return outbound, nil
}

// Forward sends outbound straight to the network.
func (e *Engine) Forward(outbound *http.Request) (*http.Response, error) {
	return e.network.RoundTrip(outbound)
}

func (e *Engine) WriteResponse(w http.ResponseWriter, resp *http.Response, requestID string, cacheStatus string) {
	defer resp.Body.Close()
	copyHeaders(w.Header(), resp.Header)
	w.Header().Set(RequestIDHeader, requestID)
	w.Header().Set(CacheStatusHeader, cacheStatus)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func setForwardedHeaders(outbound *http.Request, inbound *http.Request) {
	clientIP := inbound.RemoteAddr
	if host, _, err := net.SplitHostPort(inbound.RemoteAddr); err == nil {
		clientIP = host
	}

	if clientIP != "" {
		prior := outbound.Header.Get("X-Forwarded-For")
		if prior != "" {
			clientIP = prior + ", " + clientIP
		}
		outbound.Header.Set("X-Forwarded-For", clientIP)
	}

	proto := "http"
	if inbound.TLS != nil {
		proto = "https"
	}
	outbound.Header.Set("X-Forwarded-Proto", proto)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func isClientCanceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
