package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

// PostgresRepository reads catalog tables over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Purchaser(ctx context.Context, id string) (*models.Purchaser, error) {
	query := `SELECT id, display_name, email FROM purchasers WHERE id=$1`
	var p models.Purchaser
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.DisplayName, &p.Email)
	if err := lookupErr(err); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Document(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT id, title, kind, source_path, content_type, size_bytes FROM documents WHERE id=$1`
	var d models.Document
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.Title, &d.Kind, &d.SourcePath, &d.ContentType, &d.SizeBytes)
	if err := lookupErr(err); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) Purchase(ctx context.Context, id string) (*models.Purchase, error) {
	query := `SELECT id, purchaser_id, reference_number, completed_at FROM purchases WHERE id=$1`
	var p models.Purchase
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.PurchaserID, &p.ReferenceNumber, &p.CompletedAt)
	if err := lookupErr(err); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePurchase inserts p unless a purchase with the same id exists. An
// existing row owned by another purchaser is left untouched.
func (r *PostgresRepository) SavePurchase(ctx context.Context, p *models.Purchase) error {
	query := `
		INSERT INTO purchases (id, purchaser_id, reference_number, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.PurchaserID, p.ReferenceNumber, p.CompletedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func lookupErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
