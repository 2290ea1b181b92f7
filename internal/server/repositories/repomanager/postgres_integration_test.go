//go:build integration

package repomanager

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("docdelivery"),
		tcpostgres.WithUsername("docdelivery"),
		tcpostgres.WithPassword("docdelivery"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	return db
}

func TestPostgres_MigrateSeedAndLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t)
	m := NewPostgresRepositoryManager()
	require.NoError(t, m.RunMigrations(ctx, db))

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := &catalog.Fixture{
		Purchasers: []catalog.FixturePurchaser{{ID: "u1", DisplayName: "Ada", Email: "ada@example.com"}},
		Documents:  []catalog.FixtureDocument{{ID: "d1", Title: "Doc", Kind: "pdf", SourcePath: "sources/d1.pdf"}},
		Purchases:  []catalog.FixturePurchase{{ID: "p1", PurchaserID: "u1", ReferenceNumber: "R-1", CompletedAt: now}},
	}
	require.NoError(t, catalog.SeedPostgres(ctx, db, f))

	doc, err := m.Catalog(db).Document(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Doc", doc.Title)

	repo := m.Ledger(db)
	e := &models.LedgerEntry{
		ID:        "6f1c2b1e-0000-4000-8000-000000000001",
		Key:       models.LedgerKey{PurchaserID: "u1", DocumentID: "d1", PurchaseID: "p1"},
		Copy:      models.WatermarkedCopy{Path: "watermarked/u1/d1/p1.pdf", FileName: "Doc.pdf", CreatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(ctx, e))
	assert.ErrorIs(t, repo.Insert(ctx, e), common.ErrVersionConflict)

	got, err := repo.Get(ctx, e.Key)
	require.NoError(t, err)
	got.AccessCount = 3
	require.NoError(t, repo.Update(ctx, got))

	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, &stale), common.ErrVersionConflict)

	list, err := repo.List(ctx, ledger.Filter{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].AccessCount)
}
