package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"offline_worker/internal/logger"
	"offline_worker/internal/runtime"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
)

// Listener is one named HTTP surface, such as the proxy or the admin API.
type Listener struct {
	Name    string
	Addr    string
	Handler http.Handler
}

type Server struct {
	servers      []*listening
	shutdown     runtime.ShutdownConfig
	stoppers     []Stopper
	closeIdle    []func()
	shutdownOnce sync.Once
	shutdownErr  error
}

type listening struct {
	name   string
	server *http.Server
	ln     net.Listener
}

type Stopper interface {
	Stop(ctx context.Context) error
}

type StopFunc func(ctx context.Context) error

func (s StopFunc) Stop(ctx context.Context) error {
	return s(ctx)
}

type Options struct {
	Shutdown runtime.ShutdownConfig
	// Stoppers run after listeners close and before connections drain.
	Stoppers  []Stopper
	CloseIdle []func()
}

// Start binds every listener with a non-empty address. If any bind fails the
// ones already bound are closed.
func Start(listeners []Listener, options Options) (*Server, error) {
	s := &Server{
		shutdown:  runtime.ApplyShutdownDefaults(options.Shutdown),
		stoppers:  options.Stoppers,
		closeIdle: options.CloseIdle,
	}
	for _, l := range listeners {
		if l.Addr == "" {
			continue
		}
		if l.Handler == nil {
			s.closeListeners()
			return nil, errors.New("handler is nil for listener " + l.Name)
		}
		ln, err := net.Listen("tcp", l.Addr)
		if err != nil {
			s.closeListeners()
			return nil, err
		}
		srv := &http.Server{
			Handler:           l.Handler,
			MaxHeaderBytes:    defaultMaxHeaderBytes,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			IdleTimeout:       defaultIdleTimeout,
		}
		s.servers = append(s.servers, &listening{name: l.Name, server: srv, ln: ln})
	}
	if len(s.servers) == 0 {
		return nil, errors.New("no listeners configured")
	}
	for _, l := range s.servers {
		go serve(l)
	}
	return s, nil
}

func serve(l *listening) {
	log := logger.WithComponent("server").WithField("listener", l.name)
	log.WithField("addr", l.ln.Addr().String()).Info("listening")
	if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server error")
	}
}

// Addr returns the bound address of the named listener.
func (s *Server) Addr(name string) string {
	if s == nil {
		return ""
	}
	for _, l := range s.servers {
		if l.name == name {
			return l.ln.Addr().String()
		}
	}
	return ""
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	if s == nil {
		return nil
	}
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdownSequence()
	})
	return s.shutdownErr
}

func (s *Server) shutdownSequence() error {
	s.closeListeners()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.shutdown.GracefulTimeout)
	for _, stopper := range s.stoppers {
		if stopper == nil {
			continue
		}
		if err := stopper.Stop(stopCtx); err != nil {
			logger.WithComponent("server").WithError(err).Warn("stopper failed")
		}
	}
	stopCancel()

	if s.shutdown.Drain > 0 {
		time.Sleep(s.shutdown.Drain)
	}

	for _, closeIdle := range s.closeIdle {
		if closeIdle != nil {
			closeIdle()
		}
	}

	gracefulCtx, gracefulCancel := context.WithTimeout(context.Background(), s.shutdown.GracefulTimeout)
	defer gracefulCancel()
	var firstErr error
	for _, l := range s.servers {
		if err := l.server.Shutdown(gracefulCtx); err != nil && !errors.Is(err, http.ErrServerClosed) && firstErr == nil {
			firstErr = err
		}
	}
	if gracefulCtx.Err() == nil {
		return firstErr
	}

	if s.shutdown.ForceClose > 0 {
		time.Sleep(s.shutdown.ForceClose)
	}
	for _, l := range s.servers {
		_ = l.server.Close()
	}
	if firstErr != nil {
		return firstErr
	}
	return gracefulCtx.Err()
}

func (s *Server) closeListeners() {
	for _, l := range s.servers {
		_ = l.ln.Close()
	}
}
