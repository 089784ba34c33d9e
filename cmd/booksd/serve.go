package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookstore/services/books/internal/books"
	"github.com/bookstore/services/books/internal/config"
	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/events"
	grpcserver "github.com/bookstore/services/books/internal/grpc"
	"github.com/bookstore/services/books/internal/httpapi"
	"github.com/bookstore/services/books/internal/metrics"
	"github.com/bookstore/services/books/internal/repo"
	"github.com/bookstore/services/books/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC health endpoint (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}
}

// serve runs the service until ctx is canceled, then shuts everything down.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Books service starting", zap.String("version", Version))

	log.Info("Connecting to database", zap.String("database", redactURL(cfg.DatabaseURL)))
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	log.Info("Running database migrations")
	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	bookRepo := repo.NewBookRepository(database, log)

	m := metrics.New()
	m.RegisterRecordCount(bookRepo, log)

	opts := []books.Option{books.WithRecorder(m)}
	checks := []httpapi.HealthCheck{{Name: "database", Check: database.Ping}}

	// The broker is optional; without it the service runs with events disabled.
	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		log.Info("Connecting to RabbitMQ")
		publisher, err = events.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
			publisher = nil
		}
	}
	if publisher != nil {
		defer publisher.Close()
		opts = append(opts, books.WithPublisher(publisher))
		checks = append(checks, httpapi.HealthCheck{Name: "rabbitmq", Check: brokerCheck(publisher)})
	}

	svc := books.NewService(bookRepo, log, opts...)
	api := httpapi.New(svc, log, httpapi.Options{
		Version:        Version,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Metrics:        m,
	}, checks...)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort("", cfg.HTTPPort),
		Handler:      api.Handler(),
		ErrorLog:     zap.NewStdLog(log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errs := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPCPort != "" {
		grpcServer = grpc.NewServer(
			grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(log)),
		)

		var broker grpcserver.Broker
		if publisher != nil {
			broker = publisher
		}
		grpc_health_v1.RegisterHealthServer(grpcServer, grpcserver.NewHealthServer(database, broker, log))

		// Enable reflection for grpcurl/grpcui
		reflection.Register(grpcServer)

		grpcListener, err := net.Listen("tcp", net.JoinHostPort("", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen on gRPC port: %w", err)
		}

		go func() {
			log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
			if err := grpcServer.Serve(grpcListener); err != nil {
				errs <- fmt.Errorf("serve gRPC: %w", err)
			}
		}()
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case runErr = <-errs:
		log.Error("Server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	// Let in-flight event publishes finish before the broker connection closes.
	svc.Wait()

	log.Info("Server stopped")
	return runErr
}

func brokerCheck(publisher *events.Publisher) func(context.Context) error {
	return func(context.Context) error {
		if !publisher.IsHealthy() {
			return errors.New("rabbitmq connection is closed")
		}
		return nil
	}
}

// redactURL hides the password of a database URL before it is logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
