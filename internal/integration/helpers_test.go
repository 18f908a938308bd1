package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"offline_worker/internal/cache"
	"offline_worker/internal/config"
	"offline_worker/internal/control"
	"offline_worker/internal/obs"
	"offline_worker/internal/proxy"
	"offline_worker/internal/testutil"
	"offline_worker/internal/transport"
	"offline_worker/internal/worker"
)

type stack struct {
	origin  *testutil.Origin
	host    *worker.Host
	storage cache.Storage
	metrics *obs.Metrics
	proxy   *httptest.Server
	admin   *httptest.Server
	client  *http.Client

	mu  sync.Mutex
	cfg *config.Config
}

func sitePages() map[string]testutil.Page {
	return map[string]testutil.Page{
		"/":                       {ContentType: "text/html; charset=utf-8", Body: "<html><body>home</body></html>"},
		"/blog":                   {ContentType: "text/html; charset=utf-8", Body: "<html><body>blog</body></html>"},
		"/manifest.json":          {ContentType: "application/manifest+json", Body: `{"name":"site"}`},
		"/icons/icon-192x192.png": {ContentType: "image/png", Body: "png-192"},
		"/icons/icon-512x512.png": {ContentType: "image/png", Body: "png-512"},
		"/assets/app.js":          {ContentType: "text/javascript", Body: "console.log('app')"},
		"/api/projects":           {ContentType: "application/json", Body: `[{"id":1,"name":"worker"}]`},
	}
}

func siteConfig(origin string, version string) *config.Config {
	cfg := config.Default()
	cfg.Origin = origin
	cfg.Version = version
	return &cfg
}

func startStack(t *testing.T, storage cache.Storage, mutate func(*config.Config)) *stack {
	t.Helper()
	origin := testutil.StartOrigin(t, sitePages())
	if storage == nil {
		storage = cache.NewMemoryStorage(0)
	}
	t.Cleanup(func() { _ = storage.Close() })

	metrics := obs.NewMetrics()
	network := transport.NewTransport(transport.DefaultOptions())
	t.Cleanup(func() { transport.CloseIdle(network) })
	host := worker.NewHost(worker.HostOptions{Storage: storage, Network: network, Metrics: metrics})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = host.Shutdown(ctx)
	})

	cfg := siteConfig(origin.URL, "v1")
	if mutate != nil {
		mutate(cfg)
	}
	if _, err := host.Register(context.Background(), cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	originURL, _ := url.Parse(origin.URL)
	proxyServer := httptest.NewServer(&proxy.Handler{
		Host:    host,
		Engine:  proxy.NewEngine(network, originURL),
		Metrics: metrics,
	})
	t.Cleanup(proxyServer.Close)

	s := &stack{
		origin:  origin,
		host:    host,
		storage: storage,
		metrics: metrics,
		proxy:   proxyServer,
		client:  &http.Client{Timeout: 2 * time.Second},
		cfg:     cfg,
	}
	adminServer := httptest.NewServer(control.NewEngine(host, s.update, metrics.Handler()))
	t.Cleanup(adminServer.Close)
	s.admin = adminServer

	obs.SetAccessLogOutput(io.Discard)
	t.Cleanup(func() { obs.SetAccessLogOutput(nil) })
	return s
}

// stage replaces the config the next update registers. Workers keep the
// config they were built with, so every stage gets a fresh copy.
func (s *stack) stage(mutate func(*config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.cfg
	mutate(&next)
	s.cfg = &next
}

func (s *stack) update(ctx context.Context) (*worker.Worker, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.host.Register(ctx, cfg)
}

func (s *stack) get(t *testing.T, path string, header ...string) (*http.Response, string) {
	t.Helper()
	return s.send(t, http.MethodGet, s.proxy.URL+path, "", header...)
}

func (s *stack) send(t *testing.T, method string, target string, body string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func (s *stack) dynamicKeys(t *testing.T, version string) []string {
	t.Helper()
	gen, err := s.storage.Open(context.Background(), "dynamic-"+version)
	if err != nil {
		t.Fatalf("open dynamic: %v", err)
	}
	keys, err := gen.Keys(context.Background())
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	return keys
}

func expectCacheStatus(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if got := resp.Header.Get(proxy.CacheStatusHeader); got != want {
		t.Fatalf("expected %s %q, got %q", proxy.CacheStatusHeader, want, got)
	}
}

func decodeJSON(t *testing.T, body string, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
}
