// Package models defines the records exchanged between the delivery core,
// its catalog collaborators and the usage ledger.
package models

import "time"

// DocumentKindDigital marks a document that can be delivered as a file.
const DocumentKindDigital = "digital"

// Purchaser is the identity that bought access to a document.
type Purchaser struct {
	ID          string
	DisplayName string
	Email       string
}

// Document is a catalog item. Only digital documents with a bound PDF source
// are deliverable.
type Document struct {
	ID    string
	Title string
	// Kind is the deliverable type, e.g. "digital" or "physical".
	Kind string
	// SourcePath is the blob storage path of the original file. Empty when
	// no file has been uploaded yet.
	SourcePath  string
	ContentType string
	SizeBytes   int64
}

// Purchase is a completed order for a document.
type Purchase struct {
	ID              string
	PurchaserID     string
	ReferenceNumber string
	CompletedAt     time.Time
}
