package models

import (
	"fmt"
	"slices"
	"time"
)

// LedgerKey identifies one usage ledger entry.
type LedgerKey struct {
	PurchaserID string
	DocumentID  string
	PurchaseID  string
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PurchaserID, k.DocumentID, k.PurchaseID)
}

// WatermarkPayload is the identifying text stamped into a copy.
type WatermarkPayload struct {
	DisplayName       string    `json:"display_name"`
	MaskedEmail       string    `json:"masked_email"`
	PurchaseReference string    `json:"purchase_reference"`
	CreatedAt         time.Time `json:"created_at"`
}

// WatermarkedCopy is a purchaser-specific derivative stored in blob storage.
type WatermarkedCopy struct {
	Path        string           `json:"path"`
	SizeBytes   int64            `json:"size_bytes"`
	Fingerprint string           `json:"fingerprint"`
	Payload     WatermarkPayload `json:"payload"`
	CreatedAt   time.Time        `json:"created_at"`
	FileName    string           `json:"file_name"`
}

// IssuedToken records that a download token was handed out. The token
// string itself is never stored.
type IssuedToken struct {
	ID        string    `json:"id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// AccessRecord is one entry of the access history.
type AccessRecord struct {
	At                time.Time `json:"at"`
	Origin            string    `json:"origin"`
	ClientSignature   string    `json:"client_signature"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	Success           bool      `json:"success"`
	// Reason is set on failed attempts, e.g. "blocked".
	Reason string `json:"reason,omitempty"`
}

// DeviceUsage aggregates accesses from one device.
type DeviceUsage struct {
	Fingerprint string    `json:"fingerprint"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Count       int64     `json:"count"`
}

// LedgerEntry is the durable record of all delivery activity for one
// (purchaser, document, purchase) triple.
//
// Version is bumped by the repository on every successful update and is
// used for compare-and-swap writes.
type LedgerEntry struct {
	ID            string
	Key           LedgerKey
	Copy          WatermarkedCopy
	AccessCount   int64
	Tokens        []IssuedToken
	History       []AccessRecord
	Blocked       bool
	BlockedReason string
	BlockedAt     *time.Time
	Flags         []string
	BytesServed   int64
	Devices       []DeviceUsage
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy of e.
func (e *LedgerEntry) Clone() *LedgerEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Tokens = slices.Clone(e.Tokens)
	c.History = slices.Clone(e.History)
	c.Flags = slices.Clone(e.Flags)
	c.Devices = slices.Clone(e.Devices)
	if e.BlockedAt != nil {
		at := *e.BlockedAt
		c.BlockedAt = &at
	}
	return &c
}

// HasFlag reports whether label is already present.
func (e *LedgerEntry) HasFlag(label string) bool {
	return slices.Contains(e.Flags, label)
}

// AddFlags appends labels not yet present and returns the ones it added.
func (e *LedgerEntry) AddFlags(labels ...string) []string {
	var added []string
	for _, l := range labels {
		if l == "" || e.HasFlag(l) {
			continue
		}
		e.Flags = append(e.Flags, l)
		added = append(added, l)
	}
	return added
}

// TokenActive reports whether id names an issued token that has not been
// deactivated.
func (e *LedgerEntry) TokenActive(id string) bool {
	for _, t := range e.Tokens {
		if t.ID == id {
			return t.Active
		}
	}
	return false
}

// DeactivateTokens marks every issued token inactive and returns how many
// changed state.
func (e *LedgerEntry) DeactivateTokens() int {
	n := 0
	for i := range e.Tokens {
		if e.Tokens[i].Active {
			e.Tokens[i].Active = false
			n++
		}
	}
	return n
}

// TouchDevice records one access from device at the given time.
func (e *LedgerEntry) TouchDevice(device string, at time.Time) {
	for i := range e.Devices {
		if e.Devices[i].Fingerprint == device {
			e.Devices[i].Count++
			e.Devices[i].LastSeen = at
			return
		}
	}
	e.Devices = append(e.Devices, DeviceUsage{Fingerprint: device, FirstSeen: at, LastSeen: at, Count: 1})
}

// LastAccess returns the time of the most recent successful access.
func (e *LedgerEntry) LastAccess() (time.Time, bool) {
	for i := len(e.History) - 1; i >= 0; i-- {
		if e.History[i].Success {
			return e.History[i].At, true
		}
	}
	return time.Time{}, false
}
