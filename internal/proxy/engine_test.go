package proxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"offline_worker/internal/worker"
)

func TestOutboundResolvesAgainstOrigin(t *testing.T) {
	origin, _ := url.Parse("https://site.test")
	engine := NewEngine(nil, origin)

	inbound := httptest.NewRequest(http.MethodGet, "/api/projects?page=2", nil)
	inbound.Header.Set("Accept", "application/json")
	outbound, err := engine.Outbound(inbound, nil)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if got := outbound.URL.String(); got != "https://site.test/api/projects?page=2" {
		t.Fatalf("unexpected outbound url %q", got)
	}
	if outbound.Host != "site.test" {
		t.Fatalf("unexpected host %q", outbound.Host)
	}
	if outbound.Header.Get("Accept") != "application/json" {
		t.Fatalf("expected headers to be copied")
	}
	if outbound.Header.Get("X-Forwarded-For") != "192.0.2.1" {
		t.Fatalf("unexpected forwarded for %q", outbound.Header.Get("X-Forwarded-For"))
	}
}

func TestOutboundKeepsAbsoluteURL(t *testing.T) {
	engine := NewEngine(nil, nil)
	inbound := httptest.NewRequest(http.MethodGet, "https://images.unsplash.com/photo.jpg", nil)
	outbound, err := engine.Outbound(inbound, nil)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if got := outbound.URL.String(); got != "https://images.unsplash.com/photo.jpg" {
		t.Fatalf("unexpected outbound url %q", got)
	}
}

func TestOutboundWithoutOrigin(t *testing.T) {
	engine := NewEngine(nil, nil)
	if _, err := engine.Outbound(httptest.NewRequest(http.MethodGet, "/", nil), nil); err == nil {
		t.Fatalf("expected error without origin")
	}
}

func TestCacheStatus(t *testing.T) {
	cases := map[worker.Source]string{
		worker.SourceCache:       "hit",
		worker.SourceNetwork:     "miss",
		worker.SourceOffline:     "offline",
		worker.SourceFallback:    "fallback",
		worker.SourcePassthrough: "bypass",
	}
	for source, want := range cases {
		if got := cacheStatus(source); got != want {
			t.Fatalf("cacheStatus(%s) = %q, want %q", source, got, want)
		}
	}
}

func TestWriteErrorRecordsCategory(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := NewResponseRecorder(rec)
	WriteError(recorder, ErrorBody{
		Status:        http.StatusBadGateway,
		RequestID:     "req-1",
		ErrorCategory: "network_error",
		Message:       "failed",
	})
	if recorder.Status() != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", recorder.Status())
	}
	if recorder.ErrorCategory() != "network_error" {
		t.Fatalf("unexpected category %q", recorder.ErrorCategory())
	}
	if rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected request id header")
	}
	if recorder.CacheStatus() != "" {
		t.Fatalf("expected no cache status on error answers")
	}
}

func TestRecorderCapturesCacheStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	recorder := NewResponseRecorder(rec)
	if recorder.Status() != 0 {
		t.Fatalf("expected zero status before writing")
	}
	recorder.Header().Set(CacheStatusHeader, "hit")
	if _, err := recorder.Write([]byte("cached")); err != nil {
		t.Fatalf("write: %v", err)
	}
	recorder.WriteHeader(http.StatusTeapot)
	if recorder.Status() != http.StatusOK || recorder.CacheStatus() != "hit" {
		t.Fatalf("unexpected recorder state %d %q", recorder.Status(), recorder.CacheStatus())
	}
	if recorder.BytesWritten() != int64(len("cached")) {
		t.Fatalf("unexpected byte count %d", recorder.BytesWritten())
	}
}

func TestOutboundCarriesRequestID(t *testing.T) {
	origin, _ := url.Parse("https://site.test")
	engine := NewEngine(nil, origin)
	inbound := httptest.NewRequest(http.MethodGet, "/", nil)
	inbound = inbound.WithContext(WithRequestID(inbound.Context(), "abc"))
	outbound, err := engine.Outbound(inbound, nil)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if outbound.Header.Get(RequestIDHeader) != "abc" {
		t.Fatalf("expected request id on outbound request")
	}
}
