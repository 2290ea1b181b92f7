// Package abuse holds the named predicates that flag suspicious usage of a
// ledger entry. Predicates never block access; they only label the entry
// for review.
package abuse

import (
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/server/models"
)

const (
	LabelExcessiveDownloads = "excessive_downloads"
	LabelMultipleDevices    = "multiple_devices"
	LabelRapidDownloads     = "rapid_downloads"
)

// Thresholds tunes the predicates. A label is raised when the observed
// value is strictly greater than its threshold.
type Thresholds struct {
	MaxAccessCount int64
	MaxDevices     int
	RapidWindow    time.Duration
	RapidCount     int
}

// DefaultThresholds returns the production limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxAccessCount: 10,
		MaxDevices:     5,
		RapidWindow:    60 * time.Minute,
		RapidCount:     3,
	}
}

// Predicate inspects an entry at the time of the current access.
type Predicate struct {
	Label string
	Match func(e *models.LedgerEntry, now time.Time, t Thresholds) bool
}

// ExcessiveDownloads reports an access count above MaxAccessCount.
func ExcessiveDownloads(e *models.LedgerEntry, _ time.Time, t Thresholds) bool {
	return e.AccessCount > t.MaxAccessCount
}

// MultipleDevices reports more distinct devices than MaxDevices.
func MultipleDevices(e *models.LedgerEntry, _ time.Time, t Thresholds) bool {
	return len(e.Devices) > t.MaxDevices
}

// RapidDownloads counts successful accesses in the trailing window ending
// at now, including now itself.
func RapidDownloads(e *models.LedgerEntry, now time.Time, t Thresholds) bool {
	since := now.Add(-t.RapidWindow)
	n := 0
	for _, r := range e.History {
		if r.Success && !r.At.Before(since) && !r.At.After(now) {
			n++
		}
	}
	return n > t.RapidCount
}

// Predicates lists every check in evaluation order.
var Predicates = []Predicate{
	{Label: LabelExcessiveDownloads, Match: ExcessiveDownloads},
	{Label: LabelMultipleDevices, Match: MultipleDevices},
	{Label: LabelRapidDownloads, Match: RapidDownloads},
}

// Detector evaluates all predicates with fixed thresholds.
type Detector struct {
	thresholds Thresholds
}

// NewDetector returns a Detector using t.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// Evaluate returns the labels whose predicates match. It does not mutate e.
func (d *Detector) Evaluate(e *models.LedgerEntry, now time.Time) []string {
	var labels []string
	for _, p := range Predicates {
		if p.Match(e, now, d.thresholds) {
			labels = append(labels, p.Label)
		}
	}
	return labels
}
