package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"offline_worker/internal/cache"
	"offline_worker/internal/classify"
	"offline_worker/internal/config"
	"offline_worker/internal/logger"
	"offline_worker/internal/obs"
	"offline_worker/internal/offline"
	"offline_worker/internal/runtime"
)

type Options struct {
	Config  *config.Config
	Storage cache.Storage
	// Network performs every outbound fetch. Defaults to http.DefaultTransport.
	Network  http.RoundTripper
	Notifier Notifier
	Clients  Clients
	Metrics  *obs.Metrics
	// OnClaim runs once activation has converged the generations.
	OnClaim func(*Worker)
}

// Worker is one loaded version of the offline worker. It moves through its
// lifecycle once; a new version is a new Worker.
type Worker struct {
	runtime.Lease

	cfg        *config.Config
	origin     *url.URL
	allowed    map[string]struct{}
	storage    cache.Storage
	network    http.RoundTripper
	classifier *classify.Classifier
	coalescer  *cache.Coalescer
	generation *GenerationManager
	notifier   Notifier
	clients    Clients
	metrics    *obs.Metrics
	onClaim    func(*Worker)
	page       offline.Page
	log        *logrus.Entry

	state atomic.Int32

	mu      sync.RWMutex
	static  cache.Generation
	dynamic cache.Generation

	tasks      *runtime.Tasks
	baseCtx    context.Context
	cancelBase context.CancelFunc
	notifySeq  atomic.Uint64
}

func New(opts Options) (*Worker, error) {
	if opts.Config == nil {
		return nil, errors.New("worker config is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("worker storage is required")
	}
	cfg := opts.Config
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("worker origin %q must be an absolute URL", cfg.Origin)
	}
	network := opts.Network
	if network == nil {
		network = http.DefaultTransport
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = obs.DefaultMetrics()
	}
	log := logger.WithComponent("worker").WithField("version", cfg.Version)

	recorder := NewRecorder(0)
	notifier := opts.Notifier
	if notifier == nil {
		notifier = recorder
	}
	clients := opts.Clients
	if clients == nil {
		clients = recorder
	}

	var coalescer *cache.Coalescer
	if cfg.Interceptor.Coalesce {
		coalescer = cache.NewCoalescer(cfg.Interceptor.MaxFlights)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		cfg:     cfg,
		origin:  origin,
		allowed: allowedOrigins(cfg),
		storage: opts.Storage,
		network: network,
		classifier: classify.New(classify.Rules{
			StaticSegments:   cfg.Routes.StaticSegments,
			StaticExtensions: cfg.Routes.StaticExtensions,
			ImageCDNOrigins:  cfg.Routes.ImageCDNOrigins,
			APIPrefixes:      cfg.Routes.APIPrefixes,
		}),
		coalescer: coalescer,
		notifier:  notifier,
		clients:   clients,
		metrics:   metrics,
		onClaim:   opts.OnClaim,
		page: offline.Page{
			Title:      cfg.Offline.Title,
			Heading:    cfg.Offline.Heading,
			Message:    cfg.Offline.Message,
			RetryLabel: cfg.Offline.RetryLabel,
			Available:  cfg.Offline.Available,
		},
		log:        log,
		tasks:      runtime.NewTasks(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	w.generation = &GenerationManager{
		storage:       opts.Storage,
		client:        &http.Client{Transport: network},
		origin:        origin,
		manifest:      append([]string(nil), cfg.Manifest...),
		staticName:    cfg.StaticGeneration(),
		dynamicName:   cfg.DynamicGeneration(),
		roles:         []string{cfg.Generations.StaticRole, cfg.Generations.DynamicRole},
		deleteForeign: cfg.DeleteForeignGenerations(),
		metrics:       metrics,
		log:           log,
	}
	w.state.Store(int32(StateParsed))
	return w, nil
}

func (w *Worker) Version() string {
	if w == nil {
		return ""
	}
	return w.cfg.Version
}

func (w *Worker) State() State {
	if w == nil {
		return StateRedundant
	}
	return State(w.state.Load())
}

func (w *Worker) Config() *config.Config {
	if w == nil {
		return nil
	}
	return w.cfg
}

func (w *Worker) Origin() *url.URL {
	if w == nil {
		return nil
	}
	copied := *w.origin
	return &copied
}

// Generations returns the names of the generations this version owns.
func (w *Worker) Generations() []string {
	if w == nil {
		return nil
	}
	return []string{w.generation.staticName, w.generation.dynamicName}
}

func (w *Worker) Notifier() Notifier {
	if w == nil {
		return nil
	}
	return w.notifier
}

func (w *Worker) transition(from State, to State) bool {
	return w.state.CompareAndSwap(int32(from), int32(to))
}

// Install populates the static generation from the manifest. Any failure
// leaves the worker redundant.
func (w *Worker) Install(ctx context.Context) error {
	if w == nil {
		return ErrNotInstalled
	}
	if !w.transition(StateParsed, StateInstalling) {
		return fmt.Errorf("install from state %s: %w", w.State(), ErrInstallFailed)
	}
	w.log.WithField("manifest", len(w.cfg.Manifest)).Info("installing")
	static, err := w.generation.Install(ctx)
	if err != nil {
		w.state.Store(int32(StateRedundant))
		w.metrics.RecordLifecycle("install", "error")
		w.log.WithError(err).Error("install failed")
		return err
	}
	w.mu.Lock()
	w.static = static
	w.mu.Unlock()
	w.state.Store(int32(StateInstalled))
	w.metrics.RecordLifecycle("install", "ok")
	w.log.WithField("generation", static.Name()).Info("installed, skipping wait")
	return nil
}

// Activate removes every stale generation and claims clients.
func (w *Worker) Activate(ctx context.Context) error {
	if w == nil {
		return ErrNotInstalled
	}
	if !w.transition(StateInstalled, StateActivating) {
		return fmt.Errorf("activate from state %s: %w", w.State(), ErrNotInstalled)
	}
	static, dynamic, err := w.generation.Activate(ctx)
	if err != nil {
		w.state.Store(int32(StateRedundant))
		w.metrics.RecordLifecycle("activate", "error")
		w.log.WithError(err).Error("activate failed")
		return err
	}
	w.mu.Lock()
	w.static = static
	w.dynamic = dynamic
	w.mu.Unlock()
	w.state.Store(int32(StateReady))
	w.metrics.RecordLifecycle("activate", "ok")
	if w.onClaim != nil {
		w.onClaim(w)
	}
	w.log.Info("activated, clients claimed")
	return nil
}

func (w *Worker) generations() (cache.Generation, cache.Generation) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.static, w.dynamic
}

// WaitUntil runs fn in the background and keeps Shutdown waiting until it
// returns. The returned channel receives fn's result.
func (w *Worker) WaitUntil(fn func(ctx context.Context) error) <-chan error {
	if w == nil || fn == nil {
		result := make(chan error, 1)
		result <- ErrNotReady
		return result
	}
	return w.tasks.Go(w.baseCtx, fn)
}

func (w *Worker) Pending() int64 {
	if w == nil {
		return 0
	}
	return w.tasks.Pending()
}

// Shutdown waits for outstanding WaitUntil work, then cancels whatever is
// still running if ctx ends first.
func (w *Worker) Shutdown(ctx context.Context) error {
	if w == nil {
		return nil
	}
	err := w.tasks.Wait(ctx)
	w.cancelBase()
	return err
}

func allowedOrigins(cfg *config.Config) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, origin := range cfg.Routes.ImageCDNOrigins {
		if normalized, ok := classify.NormalizeOrigin(origin); ok {
			allowed[normalized] = struct{}{}
		}
	}
	for _, prefix := range cfg.Routes.APIPrefixes {
		if normalized, ok := classify.NormalizeOrigin(prefix); ok {
			allowed[normalized] = struct{}{}
		}
	}
	return allowed
}
