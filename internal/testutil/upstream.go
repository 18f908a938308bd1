package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Origin is an httptest site whose pages can be changed and counted.
type Origin struct {
	URL   string
	Close func()
	mu    sync.Mutex
	pages map[string]Page
	hits  map[string]int
}

type Page struct {
	Status      int
	ContentType string
	Body        string
}

func StartUpstream(t *testing.T, handler http.Handler) (string, func()) {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	server := httptest.NewServer(handler)
	return server.Listener.Addr().String(), server.Close
}

// StartOrigin serves pages by path. Unknown paths answer 404.
func StartOrigin(t *testing.T, pages map[string]Page) *Origin {
	t.Helper()
	origin := &Origin{pages: make(map[string]Page), hits: make(map[string]int)}
	for path, page := range pages {
		origin.pages[path] = page
	}
	addr, closeFn := StartUpstream(t, http.HandlerFunc(origin.serve))
	origin.URL = "http://" + addr
	origin.Close = closeFn
	t.Cleanup(closeFn)
	return origin
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	page, ok := o.pages[r.URL.Path]
	o.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if page.ContentType != "" {
		w.Header().Set("Content-Type", page.ContentType)
	}
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page.Body))
}

func (o *Origin) Set(path string, page Page) {
	o.mu.Lock()
	o.pages[path] = page
	o.mu.Unlock()
}

func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}
