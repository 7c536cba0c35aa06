// Package app provides the unified application lifecycle management for meetEasy.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "github.com/aabubakar17/meetEasy/internal/api/grpc"
	httpapi "github.com/aabubakar17/meetEasy/internal/api/http"
	"github.com/aabubakar17/meetEasy/internal/calendar"
	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/featured"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/notify"
	"github.com/aabubakar17/meetEasy/internal/observability"
	"github.com/aabubakar17/meetEasy/internal/payment"
	"github.com/aabubakar17/meetEasy/internal/registration"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/server"
	"github.com/aabubakar17/meetEasy/internal/storage"
	"github.com/aabubakar17/meetEasy/internal/store"
	"github.com/aabubakar17/meetEasy/internal/ticketing"
)

// statsPruneInterval is how often expired search terms are dropped.
const statsPruneInterval = 5 * time.Minute

// App manages all meetEasy service lifecycles.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Shared resources
	store    *store.SQLStore
	images   *storage.Images
	payments *payment.Service
	shutdown *server.Manager

	// Service components
	search   *search.Service
	carousel *featured.Carousel
	mailer   *notify.Mailer
	stats    *observability.SearchStats

	apiServer      *http.Server
	paymentsServer *http.Server
	grpcServer     *grpc.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		metrics: metrics.New(),
	}, nil
}

// Start initializes shared resources and starts all configured services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdown = server.NewManager(server.DefaultConfig(), a.logger)

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup(context.Background())
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.ShouldRunAPI() {
		if err := a.startAPIService(ctx); err != nil {
			a.cleanup(context.Background())
			return fmt.Errorf("failed to start api service: %w", err)
		}
	}

	if a.cfg.ShouldRunPayments() {
		if err := a.startPaymentsService(); err != nil {
			a.cleanup(context.Background())
			return fmt.Errorf("failed to start payments service: %w", err)
		}
	}

	a.logger.Info("meetEasy started", zap.String("mode", string(a.cfg.Mode)))
	return nil
}

// initSharedResources opens the payment provider and, for the API, the
// event store and image storage.
func (a *App) initSharedResources(ctx context.Context) error {
	if a.cfg.Payments.StripeSecretKey != "" {
		a.payments = payment.NewService(
			payment.NewStripeCreator(a.cfg.Payments.StripeSecretKey),
			a.cfg.Payments.Currency,
			a.logger.Named("payment"),
		)
		a.logger.Info("Payments initialized", zap.String("currency", a.payments.Currency()))
	}

	if !a.cfg.ShouldRunAPI() {
		return nil
	}

	var err error
	a.store, err = store.Open(a.cfg.Store.Driver, a.cfg.Store.DSN)
	if err != nil {
		return err
	}
	a.shutdown.OnShutdown("store", func(context.Context) error { return a.store.Close() })
	a.logger.Info("Event store initialized", zap.String("driver", a.cfg.Store.Driver))

	a.images, err = storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	fields := []zap.Field{zap.String("type", a.cfg.Storage.Type)}
	if a.cfg.Storage.Type == "s3" {
		fields = append(fields,
			zap.String("bucket", a.cfg.Storage.S3.Bucket),
			zap.String("region", a.cfg.Storage.S3.Region),
			zap.String("endpoint", a.cfg.Storage.S3.Endpoint))
	}
	a.logger.Info("Image storage initialized", fields...)
	return nil
}

// startAPIService builds the search pipeline and starts the API listener
// and, when enabled, the gRPC search server.
func (a *App) startAPIService(ctx context.Context) error {
	client := ticketing.New(a.cfg.Ticketing,
		ticketing.WithLogger(a.logger.Named("ticketing")),
		ticketing.WithMetrics(a.metrics),
	)

	a.stats = observability.NewSearchStats(a.cfg.Search.StatsWindow)
	go a.stats.RunPruner(ctx, statsPruneInterval)

	local := search.NewLocalSource(a.store, a.cfg.Search.KeywordConcurrency, a.logger.Named("store"))
	a.search = search.NewService(client, local,
		search.WithLogger(a.logger.Named("search")),
		search.WithMetrics(a.metrics),
		search.WithRecorder(a.stats),
		search.WithCategoryPageSize(a.cfg.Search.CategoryPageSize),
		search.WithRetries(client.MaxRetries()),
	)

	builder, err := calendar.NewBuilder(a.cfg.Calendar)
	if err != nil {
		return err
	}
	google := calendar.NewGoogle(a.cfg.Calendar.GoogleBaseURL, &http.Client{Timeout: 10 * time.Second}, builder)

	a.mailer = notify.NewMailer(a.cfg.Email, &http.Client{Timeout: 10 * time.Second}, a.logger.Named("notify"), a.metrics)
	if !a.cfg.Email.Enabled() {
		a.logger.Warn("Confirmation emails disabled: email service not configured")
	}

	// A nil *payment.Service must not be stored in the interface.
	var payments registration.Payments
	if a.payments != nil {
		payments = a.payments
	}
	reg := registration.NewService(a.store, payments, a.mailer, a.logger.Named("registration"))

	a.carousel = featured.New(client, a.cfg.Featured, a.logger.Named("featured"), a.metrics)
	if err := a.carousel.Start(); err != nil {
		return err
	}

	handler := httpapi.NewAPIRouter(httpapi.APIDeps{
		Search:       a.search,
		External:     client,
		Store:        a.store,
		Images:       a.images,
		MaxUploadMB:  a.cfg.HTTP.MaxUploadMB,
		Registration: reg,
		Calendar:     builder,
		Google:       google,
		Featured:     a.carousel,
		Stats:        a.stats,
		Health:       a.store,
		Metrics:      a.metrics,
		Shutdown:     a.shutdown,
		Logger:       a.logger.Named("http"),
	})

	// Hooks run in reverse order: listeners stop before the store closes.
	a.shutdown.OnShutdown("mailer", func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			a.mailer.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	a.shutdown.OnShutdown("featured", func(ctx context.Context) error {
		a.carousel.Stop(ctx)
		return nil
	})

	a.apiServer = a.newHTTPServer(a.cfg.HTTP.APIAddr, handler)
	ln, err := net.Listen("tcp", a.cfg.HTTP.APIAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on api address: %w", err)
	}
	a.shutdown.ServeHTTP("api", a.apiServer, ln)

	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			return err
		}
	}
	return nil
}

// startGRPC serves the search service over gRPC.
func (a *App) startGRPC() error {
	a.grpcServer = grpcapi.NewServer(grpcapi.NewSearchServer(a.search, a.logger.Named("grpc")), a.logger.Named("grpc"))

	ln, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}

	a.shutdown.OnShutdown("grpc", func(ctx context.Context) error {
		stopped := make(chan struct{})
		go func() {
			a.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			a.grpcServer.Stop()
		}
		return nil
	})
	a.shutdown.Go("grpc", func() error { return a.grpcServer.Serve(ln) })
	a.logger.Info("Listening", zap.String("server", "grpc"), zap.String("addr", a.cfg.GRPC.Addr))
	return nil
}

// startPaymentsService starts the payment-intent listener.
func (a *App) startPaymentsService() error {
	if a.payments == nil {
		return fmt.Errorf("payments are not configured")
	}

	handler := httpapi.NewPaymentsRouter(a.payments, a.metrics, a.shutdown, a.logger.Named("http"))
	a.paymentsServer = a.newHTTPServer(a.cfg.HTTP.PaymentsAddr, handler)

	ln, err := net.Listen("tcp", a.cfg.HTTP.PaymentsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on payments address: %w", err)
	}
	a.shutdown.ServeHTTP("payments", a.paymentsServer, ln)
	return nil
}

func (a *App) newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
		ErrorLog:     zap.NewStdLog(a.logger.Named("http")),
	}
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.logger.Info("meetEasy stopped")
	return err
}

// WaitForShutdown blocks until a shutdown signal, ctx cancellation or a
// listener failure, then stops every service.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.shutdown.Wait(ctx)

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	return err
}

// cleanup releases resources after a failed start. Anything already
// registered with the shutdown manager is released through it.
func (a *App) cleanup(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.shutdown != nil {
		if err := a.shutdown.Shutdown(ctx, "startup failed"); err != nil {
			a.logger.Warn("Cleanup failed", zap.Error(err))
		}
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// Handler returns the API handler for in-process use. It is nil until Start
// has run in a mode that serves the API.
func (a *App) Handler() http.Handler {
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.Handler
}

// Metrics returns the metrics registry shared by all services.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}
