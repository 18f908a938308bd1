package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"offline_worker/internal/cache"
	"offline_worker/internal/config"
	"offline_worker/internal/control"
	"offline_worker/internal/health"
	"offline_worker/internal/logger"
	"offline_worker/internal/obs"
	"offline_worker/internal/proxy"
	"offline_worker/internal/runtime"
	"offline_worker/internal/scheduler"
	"offline_worker/internal/server"
	"offline_worker/internal/transport"
	"offline_worker/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker in front of the configured origin",
	Long: `Install and activate the configured worker version, then serve.

The proxy listener answers site traffic cache-first. The admin listener carries
the control API under /_worker, /health and /metrics. When grpc_addr is set the
standard gRPC health service reports SERVING once a version is active.

Examples:
  offline-worker serve --config worker.yaml
  OFFLINE_WORKER_STORAGE_DRIVER=badger OFFLINE_WORKER_STORAGE_PATH=/var/lib/ow offline-worker serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, warnings, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	log := logger.WithComponent("serve")
	for _, warning := range warnings {
		log.Warn(warning)
	}
	shutdownCfg, err := runtime.ShutdownFromConfig(cfg.Shutdown)
	if err != nil {
		return err
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return fmt.Errorf("parse origin: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics()
	obs.SetDefaultMetrics(metrics)

	storage, err := cache.OpenStorage(storageOptions(cfg))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()

	network := transport.NewTransport(transport.OptionsFromConfig(cfg.Transport))
	healthSrv := health.NewServer()
	host := worker.NewHost(worker.HostOptions{
		Storage: storage,
		Network: network,
		Metrics: metrics,
		OnActivate: func(*worker.Worker) {
			healthSrv.SetServing(true)
		},
	})

	if _, err := host.Register(ctx, cfg); err != nil {
		log.WithError(err).Error("initial install failed, forwarding without a worker until the next update")
	}

	update := func(ctx context.Context) (*worker.Worker, error) {
		next, _, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return host.Register(ctx, next)
	}

	var stoppers []server.Stopper
	if cfg.Sync.Schedule != "" {
		syncScheduler, err := scheduler.NewSyncScheduler(cfg.Sync.Schedule, cfg.Sync.Tag, host)
		if err != nil {
			return err
		}
		syncScheduler.Start()
		stoppers = append(stoppers, server.StopFunc(syncScheduler.Stop))
	}
	if cfg.GRPCAddr != "" {
		if _, err := healthSrv.Start(cfg.GRPCAddr); err != nil {
			return fmt.Errorf("start grpc health: %w", err)
		}
		stoppers = append(stoppers, server.StopFunc(healthSrv.Stop))
	}
	if cfgFile != "" {
		err := config.Watch(ctx, cfgFile, func(next *config.Config) {
			if _, err := host.Register(ctx, next); err != nil {
				log.WithError(err).Warn("reloaded version not activated")
			}
		})
		if err != nil {
			log.WithError(err).Warn("config watch disabled")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.Start([]server.Listener{
		{
			Name: "proxy",
			Addr: cfg.ListenAddr,
			Handler: &proxy.Handler{
				Host:    host,
				Engine:  proxy.NewEngine(network, origin),
				Metrics: metrics,
			},
		},
		{
			Name:    "admin",
			Addr:    cfg.AdminAddr,
			Handler: control.NewEngine(host, update, metrics.Handler()),
		},
	}, server.Options{
		Shutdown:  shutdownCfg,
		Stoppers:  stoppers,
		CloseIdle: []func(){func() { transport.CloseIdle(network) }},
	})
	if err != nil {
		return fmt.Errorf("start servers: %w", err)
	}

	<-ctx.Done()
	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	hostCtx, cancel := context.WithTimeout(context.Background(), shutdownCfg.GracefulTimeout)
	defer cancel()
	if err := host.Shutdown(hostCtx); err != nil {
		log.WithError(err).Warn("worker async work did not finish")
	}
	return nil
}
