package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"offline_worker/internal/cache"
	"offline_worker/internal/config"
	"offline_worker/internal/obs"
	"offline_worker/internal/testutil"
	"offline_worker/internal/worker"
)

type workerStatus struct {
	Version     string   `json:"version"`
	State       string   `json:"state"`
	Generations []string `json:"generations"`
}

func (s *stack) status(t *testing.T) workerStatus {
	t.Helper()
	resp, body := s.send(t, http.MethodGet, s.admin.URL+"/_worker/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var status workerStatus
	decodeJSON(t, body, &status)
	return status
}

func TestUpgradeThroughControlAPI(t *testing.T) {
	s := startStack(t, nil, nil)
	if _, body := s.get(t, "/api/projects"); body == "" {
		t.Fatalf("expected api body")
	}

	s.stage(func(cfg *config.Config) { cfg.Version = "v2" })
	resp, body := s.send(t, http.MethodPost, s.admin.URL+"/_worker/update", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", resp.StatusCode, body)
	}

	status := s.status(t)
	if status.Version != "v2" || status.State != "ready" {
		t.Fatalf("expected ready v2, got %+v", status)
	}
	if !reflect.DeepEqual(status.Generations, []string{"static-v2", "dynamic-v2"}) {
		t.Fatalf("unexpected generations %v", status.Generations)
	}
	names, err := s.storage.Names(context.Background())
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"dynamic-v2", "static-v2"}) {
		t.Fatalf("expected only v2 generations to survive, got %v", names)
	}

	// v1 dynamic entries went with their generation.
	resp, _ = s.get(t, "/api/projects")
	expectCacheStatus(t, resp, "miss")
	resp, _ = s.get(t, "/icons/icon-512x512.png")
	expectCacheStatus(t, resp, "hit")
}

func TestFailedUpdateKeepsActiveVersion(t *testing.T) {
	s := startStack(t, nil, nil)

	s.stage(func(cfg *config.Config) {
		cfg.Version = "v2"
		cfg.Manifest = append(append([]string(nil), cfg.Manifest...), "/missing.css")
	})
	resp, body := s.send(t, http.MethodPost, s.admin.URL+"/_worker/update", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("update: expected 502, got %d: %s", resp.StatusCode, body)
	}

	if status := s.status(t); status.Version != "v1" || status.State != "ready" {
		t.Fatalf("expected v1 to keep serving, got %+v", status)
	}
	names, err := s.storage.Names(context.Background())
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	for _, name := range names {
		if strings.HasSuffix(name, "-v2") {
			t.Fatalf("failed install left generation %q behind", name)
		}
	}
	resp, _ = s.get(t, "/icons/icon-192x192.png")
	expectCacheStatus(t, resp, "hit")
}

func TestSyncRefreshesDynamicEntries(t *testing.T) {
	s := startStack(t, nil, nil)
	if resp, _ := s.get(t, "/api/projects"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	s.origin.Set("/api/projects", testutil.Page{ContentType: "application/json", Body: `[{"id":2}]`})
	resp, body := s.send(t, http.MethodPost, s.admin.URL+"/_worker/sync", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var report worker.SyncReport
	decodeJSON(t, body, &report)
	if report.Skipped || report.Refreshed != 1 || report.Failed != 0 {
		t.Fatalf("unexpected sync report %+v", report)
	}

	resp, cached := s.get(t, "/api/projects")
	expectCacheStatus(t, resp, "hit")
	if cached != `[{"id":2}]` {
		t.Fatalf("expected refreshed body, got %q", cached)
	}

	resp, body = s.send(t, http.MethodPost, s.admin.URL+"/_worker/sync", `{"tag":"other"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d", resp.StatusCode)
	}
	report = worker.SyncReport{}
	decodeJSON(t, body, &report)
	if !report.Skipped {
		t.Fatalf("expected unknown tag to be skipped, got %+v", report)
	}
}

func TestPushAndNotificationClick(t *testing.T) {
	s := startStack(t, nil, nil)

	resp, body := s.send(t, http.MethodPost, s.admin.URL+"/_worker/push", "New article")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("push: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var shown worker.Notification
	decodeJSON(t, body, &shown)
	if shown.Body != "New article" || shown.ID == "" {
		t.Fatalf("unexpected notification %+v", shown)
	}

	click := `{"id":"` + shown.ID + `","action":"explore"}`
	resp, body = s.send(t, http.MethodPost, s.admin.URL+"/_worker/notificationclick", click)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("click: expected 200, got %d: %s", resp.StatusCode, body)
	}

	resp, body = s.send(t, http.MethodGet, s.admin.URL+"/_worker/notifications", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	var history struct {
		Notifications []worker.Notification `json:"notifications"`
		Windows       []string              `json:"windows"`
	}
	decodeJSON(t, body, &history)
	if len(history.Notifications) != 1 || !history.Notifications[0].Closed {
		t.Fatalf("expected one closed notification, got %+v", history.Notifications)
	}
	if len(history.Windows) != 1 || history.Windows[0] != s.origin.URL+"/" {
		t.Fatalf("expected a window on the site root, got %v", history.Windows)
	}

	resp, _ = s.send(t, http.MethodPost, s.admin.URL+"/_worker/notificationclick", `{"id":"missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown notification, got %d", resp.StatusCode)
	}
}

func TestBadgerStorageEndToEnd(t *testing.T) {
	storage, err := cache.OpenBadgerStorage(cache.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	s := startStack(t, storage, nil)

	resp, _ := s.get(t, "/icons/icon-192x192.png")
	expectCacheStatus(t, resp, "hit")
	resp, body := s.get(t, "/api/projects")
	expectCacheStatus(t, resp, "miss")

	s.origin.Close()
	resp, cached := s.get(t, "/api/projects")
	expectCacheStatus(t, resp, "hit")
	if cached != body {
		t.Fatalf("expected %q from badger, got %q", body, cached)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected stored content type, got %q", resp.Header.Get("Content-Type"))
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAccessLogAndMetrics(t *testing.T) {
	s := startStack(t, nil, nil)
	logs := &lockedBuffer{}
	obs.SetAccessLogOutput(logs)

	s.get(t, "/icons/icon-192x192.png")

	testutil.Eventually(t, time.Second, 10*time.Millisecond, func() error {
		line := logs.String()
		if !strings.Contains(line, `"cache_status":"hit"`) || !strings.Contains(line, `"worker_version":"v1"`) {
			return fmt.Errorf("access log so far: %q", line)
		}
		return nil
	})

	resp, body := s.send(t, http.MethodGet, s.admin.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		`worker_requests_total{class="static-asset",source="cache"} 1`,
		`worker_active_version_info{version="v1"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
