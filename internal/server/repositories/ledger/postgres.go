package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

const columns = `id, purchaser_id, document_id, purchase_id, copy, access_count, tokens, history,
	blocked, blocked_reason, blocked_at, flags, bytes_served, devices, version, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
// Collections are stored as JSONB columns.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads the entry for key or returns common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, key models.LedgerKey) (*models.LedgerEntry, error) {
	query := `SELECT ` + columns + ` FROM ledger_entries
		WHERE purchaser_id=$1 AND document_id=$2 AND purchase_id=$3`
	return r.selectOne(ctx, query, key.PurchaserID, key.DocumentID, key.PurchaseID)
}

// GetByID loads the entry by its id or returns common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.LedgerEntry, error) {
	query := `SELECT ` + columns + ` FROM ledger_entries WHERE id=$1`
	return r.selectOne(ctx, query, id)
}

// Insert creates a new entry at version 1. A row already present for the
// same key yields common.ErrVersionConflict.
func (r *PostgresRepository) Insert(ctx context.Context, e *models.LedgerEntry) error {
	a, err := encode(e)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_entries (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)
		ON CONFLICT (purchaser_id, document_id, purchase_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Key.PurchaserID, e.Key.DocumentID, e.Key.PurchaseID,
		a.copy, e.AccessCount, a.tokens, a.history,
		e.Blocked, e.BlockedReason, e.BlockedAt, a.flags, e.BytesServed, a.devices,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	e.Version = 1
	return nil
}

// Update writes e if the stored version still equals e.Version and then
// advances e.Version. A stale version yields common.ErrVersionConflict.
func (r *PostgresRepository) Update(ctx context.Context, e *models.LedgerEntry) error {
	a, err := encode(e)
	if err != nil {
		return err
	}
	query := `
		UPDATE ledger_entries SET
			copy=$1, access_count=$2, tokens=$3, history=$4,
			blocked=$5, blocked_reason=$6, blocked_at=$7, flags=$8,
			bytes_served=$9, devices=$10, updated_at=$11, version=version+1
		WHERE id=$12 AND version=$13
	`
	res, err := r.db.ExecContext(ctx, query,
		a.copy, e.AccessCount, a.tokens, a.history,
		e.Blocked, e.BlockedReason, e.BlockedAt, a.flags,
		e.BytesServed, a.devices, e.UpdatedAt,
		e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	e.Version++
	return nil
}

// List returns entries matching f ordered by creation time, then id.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DocumentID != "" {
		add("document_id=$%d", f.DocumentID)
	}
	if !f.From.IsZero() {
		add("created_at>=$%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at<=$%d", f.To)
	}

	query := `SELECT ` + columns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select ledger entries: %w", err)
	}
	defer rows.Close()

	var result []*models.LedgerEntry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) selectOne(ctx context.Context, query string, args ...any) (*models.LedgerEntry, error) {
	e, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.LedgerEntry, error) {
	var (
		e                                     models.LedgerEntry
		copyJSON, tokens, history, flags, dev []byte
		blockedAt                             sql.NullTime
	)
	if err := s.Scan(
		&e.ID, &e.Key.PurchaserID, &e.Key.DocumentID, &e.Key.PurchaseID,
		&copyJSON, &e.AccessCount, &tokens, &history,
		&e.Blocked, &e.BlockedReason, &blockedAt, &flags, &e.BytesServed, &dev,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if blockedAt.Valid {
		at := blockedAt.Time
		e.BlockedAt = &at
	}
	for _, c := range []struct {
		raw []byte
		dst any
	}{
		{copyJSON, &e.Copy},
		{tokens, &e.Tokens},
		{history, &e.History},
		{flags, &e.Flags},
		{dev, &e.Devices},
	} {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

type encoded struct {
	copy, tokens, history, flags, devices []byte
}

func encode(e *models.LedgerEntry) (encoded, error) {
	var (
		a   encoded
		err error
	)
	if a.copy, err = json.Marshal(e.Copy); err != nil {
		return a, fmt.Errorf("encode copy: %w", err)
	}
	if a.tokens, err = jsonArray(e.Tokens); err != nil {
		return a, fmt.Errorf("encode tokens: %w", err)
	}
	if a.history, err = jsonArray(e.History); err != nil {
		return a, fmt.Errorf("encode history: %w", err)
	}
	if a.flags, err = jsonArray(e.Flags); err != nil {
		return a, fmt.Errorf("encode flags: %w", err)
	}
	if a.devices, err = jsonArray(e.Devices); err != nil {
		return a, fmt.Errorf("encode devices: %w", err)
	}
	return a, nil
}

// jsonArray encodes nil slices as [] so NOT NULL array columns stay arrays.
func jsonArray[T any](s []T) ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}
