package control

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"offline_worker/internal/logger"
	"offline_worker/internal/worker"
)

// Updater loads the current configuration and registers it with the host.
type Updater func(ctx context.Context) (*worker.Worker, error)

type WorkerController struct {
	host   *worker.Host
	update Updater
}

func NewWorkerController(host *worker.Host, update Updater) *WorkerController {
	return &WorkerController{host: host, update: update}
}

type syncRequest struct {
	Tag string `json:"tag"`
}

type clickRequest struct {
	ID     string `json:"id" binding:"required"`
	Action string `json:"action"`
}

func (wc *WorkerController) Health(c *gin.Context) {
	_, active := wc.host.Active()
	c.JSON(http.StatusOK, gin.H{
		"message": "UP",
		"active":  active,
	})
}

func (wc *WorkerController) Status(c *gin.Context) {
	active, ok := wc.host.Active()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active worker"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":     active.Version(),
		"state":       active.State().String(),
		"generations": active.Generations(),
		"pending":     active.Pending(),
		"retired":     wc.host.Retired(),
	})
}

// Sync dispatches a background-sync event and waits for its report.
func (wc *WorkerController) Sync(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sync request"})
			return
		}
	}
	active, ok := wc.host.Acquire()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active worker"})
		return
	}
	defer wc.host.Release(active)
	if req.Tag == "" {
		req.Tag = active.Config().Sync.Tag
	}

	var report worker.SyncReport
	done := active.WaitUntil(func(ctx context.Context) error {
		var err error
		report, err = active.Sync(ctx, req.Tag)
		return err
	})
	select {
	case err := <-done:
		if err != nil {
			logger.WithComponent("control").WithError(err).Warn("sync failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, gin.H{"tag": req.Tag, "status": "running"})
	}
}

// Push treats the raw request body as the push payload text.
func (wc *WorkerController) Push(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	active, ok := wc.host.Acquire()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active worker"})
		return
	}
	defer wc.host.Release(active)

	n, err := active.Push(c.Request.Context(), payload)
	if err != nil {
		logger.WithComponent("control").WithError(err).Warn("push failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (wc *WorkerController) NotificationClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	active, ok := wc.host.Acquire()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active worker"})
		return
	}
	defer wc.host.Release(active)

	click := worker.NotificationClick{ID: req.ID, Action: strings.TrimSpace(req.Action)}
	if err := active.NotificationClick(c.Request.Context(), click); err != nil {
		if errors.Is(err, worker.ErrUnknownNotification) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "action": click.Action})
}

func (wc *WorkerController) Notifications(c *gin.Context) {
	recorder := wc.host.Recorder()
	notifications := recorder.Notifications()
	if notifications == nil {
		notifications = []worker.Notification{}
	}
	windows := recorder.Windows()
	if windows == nil {
		windows = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"windows":       windows,
	})
}

// Update registers the current configuration. An unchanged version is a
// no-op; a failed install leaves the active version in place.
func (wc *WorkerController) Update(c *gin.Context) {
	if wc.update == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "updates are not configured"})
		return
	}
	w, err := wc.update(c.Request.Context())
	if err != nil {
		logger.WithComponent("control").WithError(err).Warn("update failed")
		status := http.StatusInternalServerError
		if errors.Is(err, worker.ErrInstallFailed) {
			status = http.StatusBadGateway
		}
		if errors.Is(err, worker.ErrUnderPressure) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": w.Version(),
		"state":   w.State().String(),
	})
}
