// Package analytics computes read-only rollups over the usage ledger.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/dmitrijs2005/docdelivery/internal/server/repositories/ledger"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
	// MultiDeviceThreshold counts entries seen from more devices than this.
	MultiDeviceThreshold = 3
)

// Lister is the part of the ledger the aggregator reads.
type Lister interface {
	List(ctx context.Context, f ledger.Filter) ([]*models.LedgerEntry, error)
}

// Aggregator builds read-only analytics reports.
type Aggregator struct {
	entries Lister
	clock   clock.Clock
}

// NewAggregator returns an Aggregator over entries. A nil clock means the
// real one.
func NewAggregator(entries Lister, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Aggregator{entries: entries, clock: clk}
}

// Report builds an AnalyticsReport over entries matching f.
func (a *Aggregator) Report(ctx context.Context, f models.AnalyticsFilter) (*models.AnalyticsReport, error) {
	list, err := a.entries.List(ctx, ledger.Filter{From: f.From, To: f.To, DocumentID: f.DocumentID})
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	rep := &models.AnalyticsReport{
		Documents:   []models.DocumentStats{},
		Recent:      []models.RecentAccess{},
		GeneratedAt: a.clock.Now(),
	}

	purchasers := make(map[string]struct{})
	type docAcc struct {
		stats      models.DocumentStats
		purchasers map[string]struct{}
	}
	docs := make(map[string]*docAcc)
	var recent []models.RecentAccess

	for _, e := range list {
		rep.Totals.AccessCount += e.AccessCount
		rep.Totals.BytesServed += e.BytesServed
		purchasers[e.Key.PurchaserID] = struct{}{}

		d, ok := docs[e.Key.DocumentID]
		if !ok {
			d = &docAcc{
				stats:      models.DocumentStats{DocumentID: e.Key.DocumentID},
				purchasers: make(map[string]struct{}),
			}
			docs[e.Key.DocumentID] = d
		}
		d.stats.AccessCount += e.AccessCount
		d.stats.BytesServed += e.BytesServed
		d.purchasers[e.Key.PurchaserID] = struct{}{}
		if last, ok := e.LastAccess(); ok && (d.stats.LastAccess == nil || last.After(*d.stats.LastAccess)) {
			d.stats.LastAccess = &last
		}

		if e.Blocked {
			rep.Security.BlockedEntries++
		}
		rep.Security.FlagOccurrences += len(e.Flags)
		if len(e.Devices) > MultiDeviceThreshold {
			rep.Security.MultiDeviceEntries++
		}

		for _, h := range e.History {
			recent = append(recent, models.RecentAccess{
				EntryID:           e.ID,
				PurchaserID:       e.Key.PurchaserID,
				DocumentID:        e.Key.DocumentID,
				At:                h.At,
				Origin:            h.Origin,
				DeviceFingerprint: h.DeviceFingerprint,
				Success:           h.Success,
			})
		}
	}

	rep.Totals.DistinctPurchasers = len(purchasers)
	rep.Totals.DistinctDocuments = len(docs)
	if n := len(purchasers); n > 0 {
		rep.Totals.AveragePerPurchaser = float64(rep.Totals.AccessCount) / float64(n)
	}

	for _, d := range docs {
		d.stats.DistinctPurchasers = len(d.purchasers)
		rep.Documents = append(rep.Documents, d.stats)
	}
	sort.Slice(rep.Documents, func(i, j int) bool {
		x, y := rep.Documents[i], rep.Documents[j]
		if x.AccessCount != y.AccessCount {
			return x.AccessCount > y.AccessCount
		}
		return x.DocumentID < y.DocumentID
	})

	sort.SliceStable(recent, func(i, j int) bool {
		if !recent[i].At.Equal(recent[j].At) {
			return recent[i].At.After(recent[j].At)
		}
		return recent[i].EntryID < recent[j].EntryID
	})
	if limit := recentLimit(f.RecentLimit); len(recent) > limit {
		recent = recent[:limit]
	}
	rep.Recent = append(rep.Recent, recent...)

	return rep, nil
}

func recentLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultRecentLimit
	case n > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return n
	}
}
