// Package watermark produces purchaser-specific copies of PDF documents.
//
// Every page receives four low-opacity corner stamps identifying the
// purchaser, the purchase and the copy fingerprint. Every third page also
// carries a large rotated name mark. Identifying tags are written into the
// document information dictionary so they survive stamp removal.
package watermark

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/cryptox"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/metrics"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/storage"
)

// DefaultCopyright is stamped in the footer-right corner when none is configured.
const DefaultCopyright = "Licensed copy. Redistribution prohibited."

// Fingerprinter derives the security fingerprint bound to a triple.
type Fingerprinter interface {
	CopyFingerprint(purchaserID, documentID, purchaseID string) string
}

// Request names the inputs of one generation.
type Request struct {
	Document  models.Document
	Purchaser models.Purchaser
	Purchase  models.Purchase
}

type Engine struct {
	store        storage.BlobStore
	fingerprints Fingerprinter
	copyright    string
	clock        clock.Clock
	logger       logging.Logger
	metrics      *metrics.Metrics
}

func NewEngine(store storage.BlobStore, fp Fingerprinter, copyright string, clk clock.Clock, l logging.Logger, m *metrics.Metrics) *Engine {
	if copyright == "" {
		copyright = DefaultCopyright
	}
	if clk == nil {
		clk = clock.Real()
	}
	if l == nil {
		l = logging.NewNop()
	}
	return &Engine{
		store:        store,
		fingerprints: fp,
		copyright:    copyright,
		clock:        clk,
		logger:       l.With("module", "watermark"),
		metrics:      m,
	}
}

// Generate reads the source, stamps it and uploads the result to the
// purchaser-scoped path. It is safe to retry: the same inputs always write
// to the same path.
//
// Errors: common.ErrNotFound when the source is missing,
// common.ErrCorruptSource when it cannot be parsed and
// common.ErrStorageUnavailable when a blob operation fails.
func (e *Engine) Generate(ctx context.Context, req Request) (*models.WatermarkedCopy, error) {
	start := e.clock.Now()
	c, err := e.generate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	e.metrics.ObserveWatermark(outcome, e.clock.Now().Sub(start))
	return c, err
}

func (e *Engine) generate(ctx context.Context, req Request) (*models.WatermarkedCopy, error) {
	doc, purchaser, purchase := req.Document, req.Purchaser, req.Purchase

	src, err := e.store.Read(ctx, doc.SourcePath)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("source %s: %w", doc.SourcePath, common.ErrNotFound)
		}
		return nil, storageError("read source", err)
	}
	defer common.WipeByteArray(src)

	now := e.clock.Now().UTC()
	fp := e.fingerprints.CopyFingerprint(purchaser.ID, doc.ID, purchase.ID)
	marks := BuildMarks(doc, purchaser, purchase, fp, e.copyright, now)

	out, err := Render(src, marks)
	if err != nil {
		e.logger.Warn(ctx, "render failed", "document_id", doc.ID, "error", err.Error())
		return nil, err
	}
	defer common.WipeByteArray(out)

	path := CopyPath(purchaser.ID, doc.ID, purchase.ID)
	md := map[string]string{
		"purchaser-id": purchaser.ID,
		"document-id":  doc.ID,
		"purchase-id":  purchase.ID,
		"fingerprint":  fp,
	}
	if err := e.store.Write(ctx, path, out, common.PDFContentType, md); err != nil {
		return nil, storageError("upload copy", err)
	}

	e.logger.Info(ctx, "watermarked copy stored", "path", path, "size", len(out), "fingerprint", fp)

	return &models.WatermarkedCopy{
		Path:        path,
		SizeBytes:   int64(len(out)),
		Fingerprint: fp,
		Payload: models.WatermarkPayload{
			DisplayName:       purchaser.DisplayName,
			MaskedEmail:       cryptox.MaskEmail(purchaser.Email),
			PurchaseReference: purchase.ReferenceNumber,
			CreatedAt:         now,
		},
		CreatedAt: now,
		FileName:  FileName(doc.Title, doc.ID),
	}, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, common.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrCorruptSource):
		return "corrupt_source"
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	case errors.Is(err, common.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
