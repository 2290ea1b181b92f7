package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docdelivery/internal/server/migrations"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/catalog"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/ledger"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresFactories(t *testing.T) {
	db := newDB(t)
	var m RepositoryManager = NewPostgresRepositoryManager()

	_, ok := m.Ledger(db).(*ledger.PostgresRepository)
	assert.True(t, ok)
	_, ok = m.Catalog(db).(*catalog.PostgresRepository)
	assert.True(t, ok)
}

func TestMemoryFactoriesShareState(t *testing.T) {
	c := catalog.NewMemory()
	c.PutPurchaser(models.Purchaser{ID: "u1"})
	var m RepositoryManager = NewMemoryRepositoryManager(c)

	assert.Same(t, m.Ledger(nil), m.Ledger(nil))
	_, err := m.Catalog(nil).Purchaser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, m.RunMigrations(context.Background(), nil))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "00001_init.sql")
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	require.EqualError(t, err, "boom")
}
