package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"offline_worker/internal/logger"
)

const defaultRecorderHistory = 100

// Recorder is the headless Notifier and Clients: it logs every call and keeps
// a bounded history for the control API.
type Recorder struct {
	mu            sync.Mutex
	limit         int
	notifications []Notification
	windows       []string
	log           *logrus.Entry
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = defaultRecorderHistory
	}
	return &Recorder{limit: limit, log: logger.WithComponent("notifications")}
}

func (r *Recorder) Show(_ context.Context, n Notification) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	if overflow := len(r.notifications) - r.limit; overflow > 0 {
		r.notifications = append([]Notification(nil), r.notifications[overflow:]...)
	}
	r.mu.Unlock()
	r.log.WithFields(logrus.Fields{"id": n.ID, "title": n.Title}).Info(n.Body)
	return nil
}

func (r *Recorder) Close(_ context.Context, id string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Closed = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownNotification, id)
}

func (r *Recorder) OpenWindow(_ context.Context, url string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.windows = append(r.windows, url)
	if overflow := len(r.windows) - r.limit; overflow > 0 {
		r.windows = append([]string(nil), r.windows[overflow:]...)
	}
	r.mu.Unlock()
	r.log.WithField("url", url).Info("open window")
	return nil
}

func (r *Recorder) Notifications() []Notification {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

func (r *Recorder) Windows() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.windows...)
}
