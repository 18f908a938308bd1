package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"offline_worker/internal/runtime"
)

func TestStartServesEveryListener(t *testing.T) {
	handler := func(body string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}
	srv, err := Start([]Listener{
		{Name: "proxy", Addr: "127.0.0.1:0", Handler: handler("proxy")},
		{Name: "admin", Addr: "127.0.0.1:0", Handler: handler("admin")},
		{Name: "disabled", Addr: ""},
	}, Options{Shutdown: runtime.ShutdownConfig{Drain: time.Millisecond}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Close()

	for _, name := range []string{"proxy", "admin"} {
		resp, err := http.Get("http://" + srv.Addr(name) + "/")
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != name {
			t.Fatalf("expected %q, got %q", name, string(body))
		}
	}
	if srv.Addr("disabled") != "" {
		t.Fatalf("disabled listener should not bind")
	}
}

func TestStartWithoutListeners(t *testing.T) {
	if _, err := Start(nil, Options{}); err == nil {
		t.Fatalf("expected error without listeners")
	}
}

func TestShutdownRunsStoppersOnce(t *testing.T) {
	stops := 0
	srv, err := Start([]Listener{{Name: "proxy", Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}}, Options{
		Shutdown: runtime.ShutdownConfig{Drain: time.Millisecond},
		Stoppers: []Stopper{StopFunc(func(context.Context) error {
			stops++
			return nil
		})},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if stops != 1 {
		t.Fatalf("expected one stop, got %d", stops)
	}
}
