package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"offline_worker/internal/cache"
	"offline_worker/internal/classify"
)

const (
	ActionExplore = "explore"
	ActionClose   = "close"
)

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

type Notification struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon,omitempty"`
	Badge   string               `json:"badge,omitempty"`
	Vibrate []int                `json:"vibrate,omitempty"`
	Actions []NotificationAction `json:"actions"`
	Data    map[string]string    `json:"data,omitempty"`
	ShownAt time.Time            `json:"shown_at"`
	Closed  bool                 `json:"closed"`
}

type NotificationClick struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Notifier displays and dismisses user-visible notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Close(ctx context.Context, id string) error
}

// Clients opens windows on behalf of the worker.
type Clients interface {
	OpenWindow(ctx context.Context, url string) error
}

type SyncReport struct {
	Tag       string `json:"tag"`
	Skipped   bool   `json:"skipped"`
	Refreshed int    `json:"refreshed"`
	Failed    int    `json:"failed"`
}

var ErrUnknownNotification = errors.New("unknown notification")

// Sync handles a background-sync event. Only the configured tag does work:
// every entry in the dynamic generation is fetched again and overwritten on
// success.
func (w *Worker) Sync(ctx context.Context, tag string) (SyncReport, error) {
	report := SyncReport{Tag: tag}
	if w == nil {
		return report, ErrNotReady
	}
	if tag != w.cfg.Sync.Tag {
		report.Skipped = true
		w.metrics.RecordHook("sync", "ignored")
		w.log.WithField("tag", tag).Debug("ignoring sync tag")
		return report, nil
	}
	if w.State() != StateReady {
		return report, ErrNotReady
	}
	defer w.tasks.Begin()()

	_, dynamic := w.generations()
	keys, err := dynamic.Keys(ctx)
	if err != nil {
		w.metrics.RecordHook("sync", "error")
		return report, fmt.Errorf("list %s: %w", dynamic.Name(), err)
	}
	for _, key := range keys {
		if w.replay(ctx, key) {
			report.Refreshed++
		} else {
			report.Failed++
		}
	}
	result := "ok"
	if report.Failed > 0 {
		result = "partial"
	}
	w.metrics.RecordHook("sync", result)
	w.log.WithFields(logrus.Fields{
		"tag":       tag,
		"refreshed": report.Refreshed,
		"failed":    report.Failed,
	}).Info("content sync finished")
	return report, nil
}

func (w *Worker) replay(ctx context.Context, key string) bool {
	raw, ok := cache.URLFromKey(key)
	if !ok {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return false
	}
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		w.log.WithError(err).WithField("url", raw).Debug("sync fetch failed")
		return false
	}
	if !w.cacheable(req, resp) {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return false
	}
	body, err := bufferBody(resp)
	if err != nil {
		return false
	}
	return w.store(ctx, classify.APICall, key, cache.NewEntry(resp, body))
}

// Push shows a notification whose body is the payload text.
func (w *Worker) Push(ctx context.Context, payload []byte) (Notification, error) {
	if w == nil {
		return Notification{}, ErrNotReady
	}
	defer w.tasks.Begin()()

	settings := w.cfg.Notification
	body := strings.TrimSpace(string(payload))
	if body == "" {
		body = settings.DefaultBody
	}
	n := Notification{
		ID:      fmt.Sprintf("%s-%d", w.cfg.Version, w.notifySeq.Add(1)),
		Title:   settings.Title,
		Body:    body,
		Icon:    settings.Icon,
		Badge:   settings.Badge,
		Vibrate: append([]int(nil), settings.Vibrate...),
		Actions: []NotificationAction{
			{Action: ActionExplore, Title: "View", Icon: settings.Icon},
			{Action: ActionClose, Title: "Close"},
		},
		Data:    map[string]string{"url": settings.RootURL, "version": w.cfg.Version},
		ShownAt: time.Now().UTC(),
	}
	if err := w.notifier.Show(ctx, n); err != nil {
		w.metrics.RecordHook("push", "error")
		return n, err
	}
	w.metrics.RecordHook("push", "ok")
	return n, nil
}

// NotificationClick closes the clicked notification and, for the explore
// action, opens the site root.
func (w *Worker) NotificationClick(ctx context.Context, click NotificationClick) error {
	if w == nil {
		return ErrNotReady
	}
	defer w.tasks.Begin()()

	if err := w.notifier.Close(ctx, click.ID); err != nil {
		w.metrics.RecordHook("notificationclick", "error")
		return err
	}
	if click.Action == ActionExplore {
		target, err := resolve(w.origin, w.cfg.Notification.RootURL)
		if err != nil {
			w.metrics.RecordHook("notificationclick", "error")
			return err
		}
		if err := w.clients.OpenWindow(ctx, target.String()); err != nil {
			w.metrics.RecordHook("notificationclick", "error")
			return err
		}
	}
	w.metrics.RecordHook("notificationclick", "ok")
	return nil
}
