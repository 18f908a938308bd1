package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"offline_worker/internal/worker"
)

const DefaultTimeout = 30 * time.Second

// SetupRoutes mounts the worker event API and, when metrics is non-nil, the
// prometheus endpoint.
func SetupRoutes(r *gin.Engine, host *worker.Host, update Updater, metrics http.Handler) {
	wc := NewWorkerController(host, update)

	r.GET("/health", wc.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	group := r.Group("/_worker")
	group.Use(RequestTimeout(DefaultTimeout))
	group.GET("status", wc.Status)
	group.GET("notifications", wc.Notifications)
	group.POST("sync", wc.Sync)
	group.POST("push", wc.Push)
	group.POST("notificationclick", wc.NotificationClick)
	group.POST("update", wc.Update)
}

// NewEngine builds the admin gin engine.
func NewEngine(host *worker.Host, update Updater, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	SetupRoutes(r, host, update, metrics)
	return r
}
