// Package delivery ties purchases to watermarked copies, issues download
// tokens and mediates every download through the usage ledger.
package delivery

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/abuse"
	"github.com/dmitrijs2005/docdelivery/internal/server/credential"
	"github.com/dmitrijs2005/docdelivery/internal/server/locks"
	"github.com/dmitrijs2005/docdelivery/internal/server/metrics"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docdelivery/internal/server/storage"
	"github.com/dmitrijs2005/docdelivery/internal/server/watermark"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/dmitrijs2005/docdelivery/internal/server/delivery"

// Generator produces a watermarked copy for one purchase.
type Generator interface {
	Generate(ctx context.Context, req watermark.Request) (*models.WatermarkedCopy, error)
}

// Credentials issues and verifies download tokens.
type Credentials interface {
	Issue(purchaserID, documentID, purchaseID, deviceFingerprint string) (*credential.Issued, error)
	Verify(ctx context.Context, token, requestDevice string) (*credential.Payload, error)
}

// Publisher receives delivery events. Failures are logged and never fail
// the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev models.DeliveryEvent) error
}

// Config holds tunables. Zero values fall back to defaults.
type Config struct {
	HandleValidity  time.Duration
	LockTTL         time.Duration
	ConflictRetries uint64
	// MaxHistory caps stored access records per entry; oldest are dropped.
	MaxHistory int
	// RecentLimit is the analytics feed size used when a filter leaves it unset.
	RecentLimit int
	Thresholds  abuse.Thresholds
}

const (
	DefaultLockTTL    = 2 * time.Minute
	DefaultMaxHistory = 1000
)

// Deps are the collaborators of an Orchestrator. DB may be nil when the
// repository manager serves in-memory stores.
type Deps struct {
	DB             *sql.DB
	Repos          repomanager.RepositoryManager
	Store          storage.BlobStore
	Engine         Generator
	Credentials    Credentials
	Locker         locks.Locker
	Events         Publisher
	Clock          clock.Clock
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
}

// Orchestrator runs the delivery operations over the ledger, blob store and
// watermark engine. It is safe for concurrent use.
type Orchestrator struct {
	db       dbx.DBTX
	repos    repomanager.RepositoryManager
	store    storage.BlobStore
	engine   Generator
	creds    Credentials
	locker   locks.Locker
	events   Publisher
	detector *abuse.Detector
	clock    clock.Clock
	logger   logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	cfg      Config
	group    singleflight.Group
}

// New builds an Orchestrator. Zero values in cfg and nil optional deps take
// their defaults.
func New(d Deps, cfg Config) *Orchestrator {
	if cfg.HandleValidity <= 0 {
		cfg.HandleValidity = common.HandleValidity
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.Thresholds == (abuse.Thresholds{}) {
		cfg.Thresholds = abuse.DefaultThresholds()
	}
	if d.Locker == nil {
		d.Locker = locks.NewLocal()
	}
	if d.Events == nil {
		d.Events = discard{}
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.TracerProvider == nil {
		d.TracerProvider = otel.GetTracerProvider()
	}

	o := &Orchestrator{
		repos:    d.Repos,
		store:    d.Store,
		engine:   d.Engine,
		creds:    d.Credentials,
		locker:   d.Locker,
		events:   d.Events,
		detector: abuse.NewDetector(cfg.Thresholds),
		clock:    d.Clock,
		logger:   d.Logger.With("module", "delivery"),
		metrics:  d.Metrics,
		tracer:   d.TracerProvider.Tracer(tracerName),
		cfg:      cfg,
	}
	if d.DB != nil {
		o.db = d.DB
	}
	return o
}

func (o *Orchestrator) ledger() ledger.Repository { return o.repos.Ledger(o.db) }

func (o *Orchestrator) catalog() catalog.Catalog { return o.repos.Catalog(o.db) }

func (o *Orchestrator) publish(ctx context.Context, ev models.DeliveryEvent) {
	ev.At = o.clock.Now().UTC()
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Warn(ctx, "publish event failed", "type", ev.Type, "entry_id", ev.EntryID, "error", err.Error())
	}
}

type discard struct{}

func (discard) Publish(context.Context, models.DeliveryEvent) error { return nil }

func eventFor(typ string, e *models.LedgerEntry) models.DeliveryEvent {
	return models.DeliveryEvent{
		Type:        typ,
		EntryID:     e.ID,
		PurchaserID: e.Key.PurchaserID,
		DocumentID:  e.Key.DocumentID,
		PurchaseID:  e.Key.PurchaseID,
	}
}
