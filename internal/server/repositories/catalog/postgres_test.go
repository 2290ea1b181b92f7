package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPurchaser_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT id, display_name, email FROM purchasers WHERE id=\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "email"}).AddRow("u1", "Alice", "alice@example.com"))

	p, err := repo.Purchaser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Purchaser{ID: "u1", DisplayName: "Alice", Email: "alice@example.com"}, *p)
}

func TestPurchaser_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM purchasers`).WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "email"}))

	_, err := repo.Purchaser(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDocument_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT id, title, kind, source_path, content_type, size_bytes FROM documents WHERE id=\$1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "kind", "source_path", "content_type", "size_bytes"}).
			AddRow("d1", "Go Patterns", "digital", "sources/d1.pdf", "application/pdf", int64(2048)))

	d, err := repo.Document(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "sources/d1.pdf", d.SourcePath)
	assert.Equal(t, int64(2048), d.SizeBytes)
}

func TestDocument_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM documents`).WillReturnError(errors.New("db is down"))

	_, err := repo.Document(context.Background(), "d1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "db error")
}

func TestPurchase_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, purchaser_id, reference_number, completed_at FROM purchases WHERE id=\$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "purchaser_id", "reference_number", "completed_at"}).
			AddRow("p1", "u1", "ORD-1001", at))

	p, err := repo.Purchase(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", p.ReferenceNumber)
	assert.True(t, at.Equal(p.CompletedAt))
}

func TestSavePurchase(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO purchases .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("p1", "u1", "ORD-1001", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SavePurchase(context.Background(), &models.Purchase{
		ID: "p1", PurchaserID: "u1", ReferenceNumber: "ORD-1001", CompletedAt: at,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePurchase_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO purchases`).WillReturnError(errors.New("boom"))

	err := repo.SavePurchase(context.Background(), &models.Purchase{ID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: boom")
}
