package worker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"offline_worker/internal/cache"
	"offline_worker/internal/config"
	"offline_worker/internal/logger"
	"offline_worker/internal/obs"
	"offline_worker/internal/runtime"
)

const retireTimeout = 30 * time.Second

type HostOptions struct {
	Storage  cache.Storage
	Network  http.RoundTripper
	Notifier Notifier
	Clients  Clients
	Metrics  *obs.Metrics
	// MaxRetired bounds how many superseded versions may still be draining
	// before Register refuses new versions.
	MaxRetired int
	// OnActivate runs after a new version has claimed clients.
	OnActivate func(*Worker)
}

// Host keeps the active worker version. Registering a new version installs
// and activates it; the previous version keeps serving until activation
// claims clients, then drains.
type Host struct {
	opts     HostOptions
	store    *runtime.Store[*Worker]
	recorder *Recorder
	regMu    sync.Mutex
	log      *logrus.Entry
}

func NewHost(opts HostOptions) *Host {
	h := &Host{opts: opts, log: logger.WithComponent("host")}
	if opts.Notifier == nil || opts.Clients == nil {
		h.recorder = NewRecorder(0)
		if h.opts.Notifier == nil {
			h.opts.Notifier = h.recorder
		}
		if h.opts.Clients == nil {
			h.opts.Clients = h.recorder
		}
	}
	if h.opts.Metrics == nil {
		h.opts.Metrics = obs.DefaultMetrics()
	}
	h.store = runtime.NewStore(h.retire)
	h.store.SetMaxRetired(opts.MaxRetired)
	return h
}

// Register loads cfg as a worker version. Registering the active version is
// a no-op. On failure the previously active worker keeps serving.
func (h *Host) Register(ctx context.Context, cfg *config.Config) (*Worker, error) {
	if h == nil {
		return nil, ErrNoActive
	}
	if cfg == nil {
		return nil, errors.New("worker config is required")
	}
	h.regMu.Lock()
	defer h.regMu.Unlock()

	if current, ok := h.store.Get(); ok && current.Version() == cfg.Version {
		h.log.WithField("version", cfg.Version).Debug("version already active")
		return current, nil
	}
	if h.store.UnderPressure() {
		h.store.Reap()
		if h.store.UnderPressure() {
			return nil, ErrUnderPressure
		}
	}

	w, err := New(Options{
		Config:   cfg,
		Storage:  h.opts.Storage,
		Network:  h.opts.Network,
		Notifier: h.opts.Notifier,
		Clients:  h.opts.Clients,
		Metrics:  h.opts.Metrics,
		OnClaim:  h.claim,
	})
	if err != nil {
		return nil, err
	}
	if err := w.Install(ctx); err != nil {
		w.cancelBase()
		return nil, err
	}
	if err := w.Activate(ctx); err != nil {
		w.cancelBase()
		return nil, err
	}
	return w, nil
}

func (h *Host) claim(w *Worker) {
	h.store.Swap(w)
	h.opts.Metrics.SetActiveVersion(w.Version())
	h.log.WithField("version", w.Version()).Info("worker version active")
	if h.opts.OnActivate != nil {
		h.opts.OnActivate(w)
	}
}

func (h *Host) retire(w *Worker) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), retireTimeout)
		defer cancel()
		if err := w.Shutdown(ctx); err != nil {
			h.log.WithError(err).WithField("version", w.Version()).Warn("retired worker did not drain")
		}
	}()
}

func (h *Host) Active() (*Worker, bool) {
	if h == nil {
		return nil, false
	}
	return h.store.Get()
}

// Acquire pins the active worker until Release so a concurrent upgrade does
// not shut it down mid-request.
func (h *Host) Acquire() (*Worker, bool) {
	if h == nil {
		return nil, false
	}
	return h.store.Acquire()
}

func (h *Host) Release(w *Worker) {
	if h == nil {
		return
	}
	h.store.Release(w)
}

// Recorder returns the built-in notification history, or nil when custom
// Notifier and Clients were supplied.
func (h *Host) Recorder() *Recorder {
	if h == nil {
		return nil
	}
	return h.recorder
}

func (h *Host) Retired() int {
	if h == nil {
		return 0
	}
	return h.store.RetiredCount()
}

// Shutdown waits for async work of the active and every draining version.
func (h *Host) Shutdown(ctx context.Context) error {
	if h == nil {
		return nil
	}
	workers := h.store.Drain()
	if active, ok := h.store.Get(); ok {
		workers = append(workers, active)
	}
	var errs []error
	for _, w := range workers {
		if err := w.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
