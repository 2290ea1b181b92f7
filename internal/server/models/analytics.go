package models

import "time"

// AnalyticsFilter narrows the entries an analytics report covers. From and
// To apply to entry creation time and are inclusive; zero values are open.
type AnalyticsFilter struct {
	From        time.Time
	To          time.Time
	DocumentID  string
	RecentLimit int
}

type AnalyticsTotals struct {
	AccessCount         int64   `json:"access_count"`
	DistinctPurchasers  int     `json:"distinct_purchasers"`
	DistinctDocuments   int     `json:"distinct_documents"`
	AveragePerPurchaser float64 `json:"average_per_purchaser"`
	BytesServed         int64   `json:"bytes_served"`
}

type DocumentStats struct {
	DocumentID         string     `json:"document_id"`
	AccessCount        int64      `json:"access_count"`
	DistinctPurchasers int        `json:"distinct_purchasers"`
	LastAccess         *time.Time `json:"last_access,omitempty"`
	BytesServed        int64      `json:"bytes_served"`
}

type SecuritySummary struct {
	BlockedEntries     int `json:"blocked_entries"`
	FlagOccurrences    int `json:"flag_occurrences"`
	MultiDeviceEntries int `json:"multi_device_entries"`
}

type RecentAccess struct {
	EntryID           string    `json:"entry_id"`
	PurchaserID       string    `json:"purchaser_id"`
	DocumentID        string    `json:"document_id"`
	At                time.Time `json:"at"`
	Origin            string    `json:"origin"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	Success           bool      `json:"success"`
}

// AnalyticsReport is a read-only rollup over ledger entries.
type AnalyticsReport struct {
	Totals      AnalyticsTotals `json:"totals"`
	Documents   []DocumentStats `json:"documents"`
	Security    SecuritySummary `json:"security"`
	Recent      []RecentAccess  `json:"recent"`
	GeneratedAt time.Time       `json:"generated_at"`
}
