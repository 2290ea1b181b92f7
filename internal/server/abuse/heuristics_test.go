package abuse

import (
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func accesses(offsets ...time.Duration) []models.AccessRecord {
	out := make([]models.AccessRecord, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, models.AccessRecord{At: now.Add(-o), Success: true})
	}
	return out
}

func TestExcessiveDownloads(t *testing.T) {
	th := DefaultThresholds()
	assert.False(t, ExcessiveDownloads(&models.LedgerEntry{AccessCount: 10}, now, th))
	assert.True(t, ExcessiveDownloads(&models.LedgerEntry{AccessCount: 11}, now, th))
}

func TestMultipleDevices(t *testing.T) {
	th := DefaultThresholds()
	e := &models.LedgerEntry{}
	for i := 0; i < 5; i++ {
		e.TouchDevice(fmt.Sprintf("dev-%d", i), now)
	}
	assert.False(t, MultipleDevices(e, now, th))
	e.TouchDevice("dev-5", now)
	assert.True(t, MultipleDevices(e, now, th))
}

func TestRapidDownloads(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		history []models.AccessRecord
		want    bool
	}{
		{"three in window", accesses(0, 10*time.Minute, 20*time.Minute), false},
		{"four in window", accesses(0, 10*time.Minute, 20*time.Minute, 59*time.Minute), true},
		{"boundary is inclusive", accesses(0, 1*time.Minute, 2*time.Minute, 60*time.Minute), true},
		{"old accesses ignored", accesses(0, 61*time.Minute, 62*time.Minute, 63*time.Minute, 64*time.Minute), false},
		{"failed attempts ignored", append(accesses(0, time.Minute, 2*time.Minute),
			models.AccessRecord{At: now, Success: false}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RapidDownloads(&models.LedgerEntry{History: tt.history}, now, th))
		})
	}
}

func TestDetector_Evaluate(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	assert.Empty(t, d.Evaluate(&models.LedgerEntry{AccessCount: 1, History: accesses(0)}, now))

	e := &models.LedgerEntry{AccessCount: 11, History: accesses(0, time.Minute, 2*time.Minute, 3*time.Minute)}
	before := e.Clone()
	assert.Equal(t, []string{LabelExcessiveDownloads, LabelRapidDownloads}, d.Evaluate(e, now))
	assert.Equal(t, before, e, "evaluation is read-only")
}

func TestDetector_CustomThresholds(t *testing.T) {
	d := NewDetector(Thresholds{MaxAccessCount: 2, MaxDevices: 0, RapidWindow: time.Minute, RapidCount: 0})
	e := &models.LedgerEntry{AccessCount: 3, History: accesses(0)}
	e.TouchDevice("a", now)
	assert.ElementsMatch(t, []string{LabelExcessiveDownloads, LabelMultipleDevices, LabelRapidDownloads}, d.Evaluate(e, now))
}
