// Package server wires configuration, storage, repositories and transports
// into the delivery application, and runs it until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/config"
	"github.com/dmitrijs2005/docdelivery/internal/server/credential"
	"github.com/dmitrijs2005/docdelivery/internal/server/delivery"
	"github.com/dmitrijs2005/docdelivery/internal/server/events"
	"github.com/dmitrijs2005/docdelivery/internal/server/httpapi"
	"github.com/dmitrijs2005/docdelivery/internal/server/locks"
	"github.com/dmitrijs2005/docdelivery/internal/server/metrics"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docdelivery/internal/server/storage"
	"github.com/dmitrijs2005/docdelivery/internal/server/tracing"
	"github.com/dmitrijs2005/docdelivery/internal/server/watermark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	gs "github.com/dmitrijs2005/docdelivery/internal/server/grpc"
)

const serviceName = "docdelivery"

type publisher interface {
	delivery.Publisher
	io.Closer
}

type App struct {
	config       *config.Config
	logger       logging.Logger
	registry     *prometheus.Registry
	orchestrator *delivery.Orchestrator
	consumer     events.Consumer
	publisher    publisher
	closers      []io.Closer
}

// NewApp builds every collaborator described by c. Empty DSN, bucket,
// Redis URL or broker list select the in-process alternative.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.registry)

	db, repos, mem, err := app.initRepositories(ctx)
	if err != nil {
		return nil, err
	}

	store, err := app.initStore(ctx)
	if err != nil {
		return nil, err
	}

	if c.CatalogFixture != "" {
		if err := app.loadFixture(ctx, db, mem, store); err != nil {
			return nil, err
		}
	}

	locker, err := app.initLocker()
	if err != nil {
		return nil, err
	}

	if err := app.initEvents(); err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(c.TraceExporter, serviceName, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.closers = append(app.closers, tp)
	otel.SetTracerProvider(tp)

	clk := clock.Real()
	codec, err := credential.NewCodec(c.SigningSecret, c.TokenMACSecret, c.TokenValidity, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("credential codec init error: %w", err)
	}
	engine := watermark.NewEngine(store, codec, c.Copyright, clk, logger, m)

	app.orchestrator = delivery.New(delivery.Deps{
		DB:             db,
		Repos:          repos,
		Store:          store,
		Engine:         engine,
		Credentials:    codec,
		Locker:         locker,
		Events:         app.publisher,
		Clock:          clk,
		Logger:         logger,
		Metrics:        m,
		TracerProvider: tp,
	}, delivery.Config{
		HandleValidity: c.HandleValidity,
		LockTTL:        c.LockTTL,
		RecentLimit:    c.RecentLimit,
		Thresholds:     c.Thresholds(),
	})

	return app, nil
}

func (app *App) initRepositories(ctx context.Context) (*sql.DB, repomanager.RepositoryManager, *catalog.Memory, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "No database DSN configured, using in-memory repositories")
		mem := catalog.NewMemory()
		return nil, repomanager.NewMemoryRepositoryManager(mem), mem, nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db open error: %w", err)
	}
	app.closers = append(app.closers, db)

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, repos, nil, nil
}

func (app *App) initStore(ctx context.Context) (storage.BlobStore, error) {
	c := app.config
	if c.S3Bucket == "" {
		app.logger.Warn(ctx, "No S3 bucket configured, using in-memory blob store")
		return storage.WithTimeout(storage.NewMemoryStore(), c.StorageTimeout), nil
	}

	s3, err := storage.NewS3Store(ctx, storage.S3Config{
		User:         c.S3User,
		Password:     c.S3Password,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	return storage.WithTimeout(s3, c.StorageTimeout), nil
}

// loadFixture seeds the catalog and uploads any local source files.
func (app *App) loadFixture(ctx context.Context, db *sql.DB, mem *catalog.Memory, store storage.BlobStore) error {
	f, err := catalog.LoadFixture(app.config.CatalogFixture)
	if err != nil {
		return err
	}

	if db != nil {
		if err := catalog.SeedPostgres(ctx, db, f); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	} else {
		mem.Load(f)
	}

	for _, d := range f.Documents {
		if d.SourceFile == "" || d.SourcePath == "" {
			continue
		}
		data, err := os.ReadFile(d.SourceFile)
		if err != nil {
			return fmt.Errorf("read source for %s: %w", d.ID, err)
		}
		if err := store.Write(ctx, d.SourcePath, data, d.ContentType, nil); err != nil {
			return fmt.Errorf("upload source for %s: %w", d.ID, err)
		}
	}

	app.logger.Info(ctx, "Catalog fixture loaded",
		"purchasers", len(f.Purchasers), "documents", len(f.Documents), "purchases", len(f.Purchases))
	return nil
}

func (app *App) initLocker() (locks.Locker, error) {
	if app.config.RedisURL == "" {
		return locks.NewLocal(), nil
	}
	locker, client, err := locks.NewRedisFromURL(app.config.RedisURL, "")
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, client)
	return locker, nil
}

func (app *App) initEvents() error {
	c := app.config
	if len(c.KafkaBrokers) == 0 {
		app.publisher = events.NewLoggingPublisher(app.logger)
		app.consumer = events.NewNoopConsumer()
		return nil
	}

	p, err := events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaDeliveryTopic)
	if err != nil {
		return fmt.Errorf("kafka publisher init error: %w", err)
	}
	app.publisher = p

	consumer, err := events.NewKafkaConsumer(c.KafkaBrokers, c.KafkaGroupID, []string{c.KafkaPurchaseTopic})
	if err != nil {
		return fmt.Errorf("kafka consumer init error: %w", err)
	}
	app.consumer = consumer
	return nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Shutdown signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.orchestrator, app.config.AdminSecret)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.orchestrator, app.registry)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startPurchaseWorker(ctx context.Context) {
	w := events.NewPurchaseWorker(app.logger, app.consumer, app.orchestrator, app.config.KafkaPurchaseTopic, 0)

	if err := w.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}

// Run starts the gRPC and HTTP servers and the purchase worker, and blocks
// until ctx is cancelled, a shutdown signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startPurchaseWorker(ctx)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	var errs []error
	if app.consumer != nil {
		errs = append(errs, app.consumer.Close())
	}
	if app.publisher != nil {
		errs = append(errs, app.publisher.Close())
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.consumer, app.publisher, app.closers = nil, nil, nil

	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "shutdown cleanup failed", "error", err.Error())
	}
}
