package models

import "time"

// DeliveryOptions tunes CreateDelivery.
type DeliveryOptions struct {
	// DeviceFingerprint binds the token to a device when set.
	DeviceFingerprint string
}

// RequestInfo describes the client presenting a download token.
type RequestInfo struct {
	Origin            string
	ClientSignature   string
	DeviceFingerprint string
}

// DeliveryGrant is returned to the caller after a purchase is confirmed.
type DeliveryGrant struct {
	DownloadID string    `json:"download_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DeliveryResult is returned when a token is redeemed.
type DeliveryResult struct {
	RetrievalHandle string    `json:"retrieval_handle"`
	FileName        string    `json:"file_name"`
	FileSize        int64     `json:"file_size"`
	AccessCount     int64     `json:"access_count"`
	HandleExpiresAt time.Time `json:"handle_expires_at"`
}
