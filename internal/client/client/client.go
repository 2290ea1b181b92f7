// Package client is a thin gRPC client for the delivery service.
//
// Requests and responses travel as structpb.Struct values, matching the
// server's hand-registered service descriptor. Results are returned as plain
// maps so callers can print or inspect them without generated types.
package client

import "context"

// DeliveryClient is the set of remote operations docctl drives.
type DeliveryClient interface {
	CreateDelivery(ctx context.Context, req CreateRequest) (map[string]any, error)
	ResolveDelivery(ctx context.Context, req ResolveRequest) (map[string]any, error)
	GetAnalytics(ctx context.Context, req AnalyticsRequest) (map[string]any, error)
	SetBlocked(ctx context.Context, req BlockRequest) (map[string]any, error)
	Close() error
}

type CreateRequest struct {
	PurchaserID       string
	DocumentID        string
	PurchaseID        string
	DeviceFingerprint string
}

type ResolveRequest struct {
	Token             string
	Origin            string
	ClientSignature   string
	DeviceFingerprint string
}

// AnalyticsRequest bounds are RFC 3339 strings; empty means unbounded.
type AnalyticsRequest struct {
	From        string
	To          string
	DocumentID  string
	RecentLimit int
}

type BlockRequest struct {
	PurchaserID string
	DocumentID  string
	PurchaseID  string
	Blocked     bool
	Reason      string
}
