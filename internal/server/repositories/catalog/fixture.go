package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/dbx"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"gopkg.in/yaml.v3"
)

// Fixture is a YAML description of a catalog, used to seed development
// and demo deployments.
//
//	purchasers:
//	  - {id: u1, display_name: Alice, email: alice@example.com}
//	documents:
//	  - {id: d1, title: Go Patterns, kind: digital, source_path: sources/d1.pdf,
//	     content_type: application/pdf, source_file: ./testdata/d1.pdf}
//	purchases:
//	  - {id: p1, purchaser_id: u1, reference_number: ORD-1, completed_at: 2026-01-01T00:00:00Z}
type Fixture struct {
	Purchasers []FixturePurchaser `yaml:"purchasers"`
	Documents  []FixtureDocument  `yaml:"documents"`
	Purchases  []FixturePurchase  `yaml:"purchases"`
}

type FixturePurchaser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

type FixtureDocument struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Kind        string `yaml:"kind"`
	SourcePath  string `yaml:"source_path"`
	ContentType string `yaml:"content_type"`
	SizeBytes   int64  `yaml:"size_bytes"`
	// SourceFile is a local file uploaded to SourcePath at startup.
	SourceFile string `yaml:"source_file"`
}

type FixturePurchase struct {
	ID              string    `yaml:"id"`
	PurchaserID     string    `yaml:"purchaser_id"`
	ReferenceNumber string    `yaml:"reference_number"`
	CompletedAt     time.Time `yaml:"completed_at"`
}

// LoadFixture reads and validates the fixture at path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	f := &Fixture{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks ids are present and every purchase names a known purchaser.
func (f *Fixture) Validate() error {
	purchasers := make(map[string]struct{}, len(f.Purchasers))
	for i, p := range f.Purchasers {
		if p.ID == "" {
			return fmt.Errorf("fixture purchaser #%d: missing id", i)
		}
		purchasers[p.ID] = struct{}{}
	}
	for i, d := range f.Documents {
		if d.ID == "" {
			return fmt.Errorf("fixture document #%d: missing id", i)
		}
	}
	for i, p := range f.Purchases {
		if p.ID == "" {
			return fmt.Errorf("fixture purchase #%d: missing id", i)
		}
		if _, ok := purchasers[p.PurchaserID]; !ok {
			return fmt.Errorf("fixture purchase %s: unknown purchaser %q", p.ID, p.PurchaserID)
		}
	}
	return nil
}

func (d FixtureDocument) model() models.Document {
	return models.Document{
		ID:          d.ID,
		Title:       d.Title,
		Kind:        d.Kind,
		SourcePath:  d.SourcePath,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
	}
}

// Load copies every fixture record into m, replacing records with the same id.
func (m *Memory) Load(f *Fixture) {
	for _, p := range f.Purchasers {
		m.PutPurchaser(models.Purchaser{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email})
	}
	for _, d := range f.Documents {
		m.PutDocument(d.model())
	}
	for _, p := range f.Purchases {
		m.PutPurchase(models.Purchase{ID: p.ID, PurchaserID: p.PurchaserID, ReferenceNumber: p.ReferenceNumber, CompletedAt: p.CompletedAt})
	}
}

// SeedPostgres upserts the fixture in one transaction.
func SeedPostgres(ctx context.Context, db *sql.DB, f *Fixture) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, p := range f.Purchasers {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO purchasers (id, display_name, email) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, email = EXCLUDED.email
			`, p.ID, p.DisplayName, p.Email)
			if err != nil {
				return fmt.Errorf("seed purchaser %s: %w", p.ID, err)
			}
		}
		for _, d := range f.Documents {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO documents (id, title, kind, source_path, content_type, size_bytes) VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, kind = EXCLUDED.kind, source_path = EXCLUDED.source_path,
					content_type = EXCLUDED.content_type, size_bytes = EXCLUDED.size_bytes
			`, d.ID, d.Title, d.Kind, d.SourcePath, d.ContentType, d.SizeBytes)
			if err != nil {
				return fmt.Errorf("seed document %s: %w", d.ID, err)
			}
		}
		for _, p := range f.Purchases {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO purchases (id, purchaser_id, reference_number, completed_at) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING
			`, p.ID, p.PurchaserID, p.ReferenceNumber, p.CompletedAt)
			if err != nil {
				return fmt.Errorf("seed purchase %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
