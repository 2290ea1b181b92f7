package common

import "time"

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// administrative access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceFingerprintHeader carries the caller's device fingerprint on HTTP
// download requests.
const DeviceFingerprintHeader = "X-Device-Fingerprint"

const (
	// TokenValidity is how long a download token stays valid after issuance.
	TokenValidity = 24 * time.Hour
	// HandleValidity is the lifetime of a minted retrieval handle.
	HandleValidity = 5 * time.Minute
)

// PDFContentType is the only content type the watermark engine accepts.
const PDFContentType = "application/pdf"
