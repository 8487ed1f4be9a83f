// Package server assembles the storage backends, the services and the gRPC
// endpoint into a runnable application.
package server

import (
	"context"
	"net"
	"time"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"mosaicod/internal/api/actions"
	"mosaicod/internal/api/flight"
	"mosaicod/internal/application/services"
	"mosaicod/internal/config"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/chunkstore"
	"mosaicod/internal/infrastructure/locks"
	"mosaicod/internal/infrastructure/repositories"
	"mosaicod/internal/infrastructure/telemetry"
)

// GracefulTimeout bounds how long Run waits for in-flight streams on shutdown
const GracefulTimeout = 15 * time.Second

// Backends are the storage collaborators of the application
type Backends struct {
	Registry ports.Registry
	Store    ports.ChunkStore
	Locker   ports.Locker
	Codec    *chunkstore.Codec
}

// App is an assembled server
type App struct {
	cfg      *config.Config
	backends Backends
	notify   *services.NotifyService
	grpc     *grpc.Server
	health   *health.Server
	logger   logr.Logger
}

// Build opens the configured backends and assembles the application
func Build(ctx context.Context, cfg *config.Config, logger logr.Logger) (*App, error) {
	var (
		b   Backends
		err error
	)
	cleanup := func() {
		b.Codec.Close()
		for _, c := range []interface{ Close() error }{b.Registry, b.Store, b.Locker} {
			if c != nil {
				_ = c.Close()
			}
		}
	}

	b.Codec, err = chunkstore.NewCodec(cfg.Store.Codec)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create chunk codec")
	}
	b.Registry, err = repositories.NewFactory(cfg.Repository, logger).CreateRegistry(ctx)
	if err != nil {
		b.Codec.Close()
		return nil, errors.WithMessage(err, "failed to create registry")
	}
	if b.Store, err = chunkstore.New(ctx, cfg.Store, logger); err != nil {
		cleanup()
		return nil, errors.WithMessage(err, "failed to open chunk store")
	}
	if b.Locker, err = locks.New(ctx, cfg.Locks, logger); err != nil {
		cleanup()
		return nil, errors.WithMessage(err, "failed to create locker")
	}

	app, err := Assemble(cfg, b, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	return app, nil
}

// Assemble wires services and the gRPC endpoint over already opened backends.
// The application owns the backends afterwards and closes them in Close.
func Assemble(cfg *config.Config, b Backends, logger logr.Logger) (*App, error) {
	tel, err := telemetry.New(cfg.App.Version)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create telemetry instruments")
	}

	lockManager := services.NewLockManager(b.Locker, cfg.Locks.LeaseTTL, logger)
	payloads := services.NewPayloadStore(b.Store, b.Codec)
	resources := services.NewResourceService(b.Registry, lockManager, payloads, logger)
	query := services.NewQueryResolver(b.Registry)
	ingest := services.NewIngestService(b.Registry, lockManager, payloads, tel, logger)
	notify, err := services.NewNotifyService(b.Registry, logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create notify service")
	}

	catalog, err := actions.NewDefaultCatalog(actions.Services{
		Resources:     resources,
		Query:         query,
		Notify:        notify,
		QueryPageSize: cfg.Server.QueryPageSize,
	},
		actions.WithRateLimit(cfg.Server.ActionRateLimit, cfg.Server.ActionRateBurst),
		actions.WithTelemetry(tel),
	)
	if err != nil {
		_ = notify.Close()
		return nil, errors.WithMessage(err, "failed to register actions")
	}

	creds, err := cfg.ServerCredentials()
	if err != nil {
		_ = notify.Close()
		return nil, err
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(creds),
		grpc.MaxRecvMsgSize(cfg.Server.MaxMessageSizeBytes),
		grpc.MaxSendMsgSize(cfg.Server.MaxMessageSizeBytes),
	)
	arrowflight.RegisterFlightServiceServer(grpcServer, flight.NewService(flight.Deps{
		Catalog:   catalog,
		Resources: resources,
		Query:     query,
		Ingest:    ingest,
		Payloads:  payloads,
		Telemetry: tel,
	}, logger))

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &App{
		cfg:      cfg,
		backends: b,
		notify:   notify,
		grpc:     grpcServer,
		health:   healthServer,
		logger:   logger.WithName("server"),
	}, nil
}

// Serve accepts connections on lis until the server stops
func (a *App) Serve(lis net.Listener) error {
	a.logger.Info("serving", "addr", lis.Addr().String(), "tls", a.cfg.Server.TLS.Type)
	return a.grpc.Serve(lis)
}

// Run listens on the configured address and serves until ctx is done
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", a.cfg.Server.GRPCAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return errors.WithMessage(err, "failed to serve gRPC")
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	a.Stop()
	return nil
}

// Stop drains in-flight calls, forcing them closed after GracefulTimeout
func (a *App) Stop() {
	a.health.Shutdown()

	done := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(GracefulTimeout):
		a.logger.Info("graceful stop timed out, closing remaining streams")
		a.grpc.Stop()
	}
}

// Close releases services and backends. Call it after Stop.
func (a *App) Close() error {
	var errs []error
	if err := a.notify.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range []interface{ Close() error }{a.backends.Locker, a.backends.Store, a.backends.Registry} {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.backends.Codec.Close()
	if len(errs) > 0 {
		return errors.Errorf("failed to close application: %v", errs)
	}
	return nil
}

// Migrate prepares the schema of the configured repository
func Migrate(ctx context.Context, cfg *config.Config, logger logr.Logger) error {
	return repositories.NewFactory(cfg.Repository, logger).Migrate(ctx)
}
