package health

import (
	"context"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"offline_worker/internal/logger"
)

// ServiceName reports whether a worker version is active and serving.
const ServiceName = "offline_worker.Worker"

// Server exposes the standard gRPC health service. Both the empty service
// name and ServiceName follow SetServing.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	mu     sync.Mutex
	ln     net.Listener
}

func NewServer() *Server {
	s := &Server{grpc: grpc.NewServer(), health: grpchealth.NewServer()}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

func (s *Server) SetServing(serving bool) {
	if s == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Start listens on addr and serves in the background. It returns the bound
// address.
func (s *Server) Start(addr string) (string, error) {
	if s == nil {
		return "", errors.New("health server is nil")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log := logger.WithComponent("health")
	log.WithField("addr", ln.Addr().String()).Info("grpc health listening")
	go func() {
		if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.WithError(err).Error("grpc health server error")
		}
	}()
	return ln.Addr().String(), nil
}

// Stop marks every service NOT_SERVING, then stops gracefully, forcing the
// stop if ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
