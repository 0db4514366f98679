package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type Server struct {
	addr   string
	gs     *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// New builds the gRPC server with the health service and the presence
// inspection service. stats may be nil.
func New(addr string, presence Presence, stats PersistStats, log *slog.Logger) *Server {
	log = logger.Component(log, "grpc")

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			requestIDInterceptor(),
			unaryInterceptor(log, 10*time.Second),
		),
		grpc.ChainStreamInterceptor(streamInterceptor(log)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	RegisterPresenceServer(gs, NewPresenceService(presence, stats))
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(presenceServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{addr: addr, gs: gs, health: hs, log: log}
}

// Run listens on the configured address and serves until Stop.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("grpc listening", "addr", ln.Addr().String())
	if err := s.gs.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls, forcing a stop when ctx ends first.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Error("grpc graceful stop timeout; forcing stop")
		s.gs.Stop()
		<-done
	}
	s.log.Info("grpc stopped")
}

func statusFromErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
