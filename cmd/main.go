package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/persist"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	shutdownTracing := logger.InitTracing()
	defer func() { _ = shutdownTracing(context.Background()) }()

	lg.Info("starting chat-service", "env", cfg.Logging.Env, "version", cfg.Logging.Version)

	if err := run(cfg, lg); err != nil {
		lg.Error("chat-service stopped", logger.Err(err))
		_ = shutdownTracing(context.Background())
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	db, err := postgres.New(ctx, postgres.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	if cfg.Postgres.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	store := postgres.NewStore(db.Pool)

	// --- persistence bridge ---
	worker := persist.New(store, persist.Config{
		QueueSize:    cfg.Persistence.QueueSize,
		Workers:      cfg.Persistence.Workers,
		WriteTimeout: cfg.Persistence.WriteTimeout,
		MaxAttempts:  cfg.Persistence.MaxAttempts,
	}, lg)
	worker.Start()

	// --- identity ---
	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// --- realtime ---
	hub := realtime.NewHub(realtime.Config{
		AuthTimeout:       cfg.Realtime.AuthTimeout,
		RoomLookupTimeout: cfg.Realtime.RoomLookupTimeout,
		MaxContentLength:  cfg.Realtime.MaxContentLength,
	}, verifier, store, worker, lg)
	wsServer := ws.NewServer(hub, ws.Config{
		PingInterval:   cfg.Realtime.PingInterval,
		WriteWait:      cfg.Realtime.WriteWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, lg)

	// --- HTTP ---
	chatSvc := service.NewChatService(store)
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(chatSvc, hub),
		Verifier:       verifier,
		WS:             wsServer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Log:            lg,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	grpcSrv := grpcx.New(cfg.GRPC.Addr, hub, worker, lg)

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := grpcSrv.Run(); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// live sockets first so their last messages still reach the queue
		hub.Shutdown()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("http shutdown", logger.Err(err))
		}
		grpcSrv.Stop(shutdownCtx)

		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Persistence.DrainTimeout)
		defer cancelDrain()
		if err := worker.Close(drainCtx); err != nil {
			lg.Warn("persistence drain", logger.Err(err))
		}
		return nil
	})

	return g.Wait()
}

func newVerifier(cfg config.Auth) (*security.Verifier, error) {
	switch strings.ToUpper(cfg.Alg) {
	case "RS256":
		pub, err := security.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		return security.NewRSAVerifier(pub, cfg.Issuer, cfg.Audience, cfg.ClockSkew), nil
	case "", "HS256":
		return security.NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer, cfg.Audience, cfg.ClockSkew), nil
	default:
		return nil, fmt.Errorf("unsupported alg %q", cfg.Alg)
	}
}
