// Package credential issues and verifies signed, time-boxed download tokens.
//
// A token is base64url(payload "." mac) where payload is deterministic CBOR
// and mac is HMAC-SHA256 over payload under a key distinct from the signing
// secret. The payload embeds a fingerprint that can only be recomputed with
// the signing secret.
package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/clock"
	"github.com/dmitrijs2005/docdelivery/internal/codec"
	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/dmitrijs2005/docdelivery/internal/cryptox"
	"github.com/dmitrijs2005/docdelivery/internal/logging"
	"github.com/dmitrijs2005/docdelivery/internal/server/models"
	"github.com/google/uuid"
)

const (
	separator = '.'
	macInfo   = "docdelivery/token-mac/v1"
)

var encoding = base64.RawURLEncoding.Strict()

// Payload is the signed body of a download token.
type Payload struct {
	TokenID           string `cbor:"1,keyasint"`
	PurchaserID       string `cbor:"2,keyasint"`
	DocumentID        string `cbor:"3,keyasint"`
	PurchaseID        string `cbor:"4,keyasint"`
	IssuedAtMillis    int64  `cbor:"5,keyasint"`
	ExpiresAtMillis   int64  `cbor:"6,keyasint"`
	Fingerprint       string `cbor:"7,keyasint"`
	DeviceFingerprint string `cbor:"8,keyasint,omitempty"`
}

// IssuedAt returns the issue instant in UTC.
func (p *Payload) IssuedAt() time.Time { return time.UnixMilli(p.IssuedAtMillis).UTC() }

// ExpiresAt returns the expiry instant in UTC.
func (p *Payload) ExpiresAt() time.Time { return time.UnixMilli(p.ExpiresAtMillis).UTC() }

// Key returns the ledger key the token is bound to.
func (p *Payload) Key() models.LedgerKey {
	return models.LedgerKey{PurchaserID: p.PurchaserID, DocumentID: p.DocumentID, PurchaseID: p.PurchaseID}
}

// Issued is a freshly minted token together with its decoded payload.
type Issued struct {
	Token   string
	Payload Payload
}

// Codec issues and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	signingSecret []byte
	macKey        []byte
	validity      time.Duration
	clock         clock.Clock
	logger        logging.Logger
}

// NewCodec builds a Codec. When macSecret is empty the MAC key is derived
// from signingSecret with HKDF; an explicit macSecret must differ from
// signingSecret.
func NewCodec(signingSecret, macSecret string, validity time.Duration, clk clock.Clock, l logging.Logger) (*Codec, error) {
	if signingSecret == "" {
		return nil, errors.New("signing secret is required")
	}
	if macSecret == signingSecret {
		return nil, errors.New("token mac secret must differ from signing secret")
	}
	if validity <= 0 {
		validity = common.TokenValidity
	}
	if clk == nil {
		clk = clock.Real()
	}
	if l == nil {
		l = logging.NewNop()
	}

	macKey := []byte(macSecret)
	if macSecret == "" {
		k, err := cryptox.DeriveKey([]byte(signingSecret), macInfo, cryptox.MACSize)
		if err != nil {
			return nil, err
		}
		macKey = k
	}

	return &Codec{
		signingSecret: []byte(signingSecret),
		macKey:        macKey,
		validity:      validity,
		clock:         clk,
		logger:        l.With("module", "credential"),
	}, nil
}

// CopyFingerprint returns the security fingerprint of a watermarked copy.
// It depends only on the triple and the signing secret.
func (c *Codec) CopyFingerprint(purchaserID, documentID, purchaseID string) string {
	return cryptox.Fingerprint(c.signingSecret, purchaserID, documentID, purchaseID)
}

func (c *Codec) tokenFingerprint(p *Payload) string {
	return cryptox.Fingerprint(c.signingSecret, p.PurchaserID, p.DocumentID, p.PurchaseID, strconv.FormatInt(p.IssuedAtMillis, 10))
}

// Issue mints a token for the triple. deviceFingerprint may be empty.
func (c *Codec) Issue(purchaserID, documentID, purchaseID, deviceFingerprint string) (*Issued, error) {
	if purchaserID == "" || documentID == "" || purchaseID == "" {
		return nil, errors.New("purchaser, document and purchase ids are required")
	}

	now := c.clock.Now()
	p := Payload{
		TokenID:           uuid.NewString(),
		PurchaserID:       purchaserID,
		DocumentID:        documentID,
		PurchaseID:        purchaseID,
		IssuedAtMillis:    now.UnixMilli(),
		ExpiresAtMillis:   now.Add(c.validity).UnixMilli(),
		DeviceFingerprint: deviceFingerprint,
	}
	p.Fingerprint = c.tokenFingerprint(&p)

	body, err := codec.Marshal(p)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, len(body)+1+cryptox.MACSize)
	raw = append(raw, body...)
	raw = append(raw, separator)
	raw = append(raw, cryptox.Sign(c.macKey, body)...)

	return &Issued{Token: encoding.EncodeToString(raw), Payload: p}, nil
}

// Verify checks token and returns its payload. requestDevice is compared
// with the embedded device fingerprint when both are present.
//
// Every failure returns common.ErrInvalidToken; the specific reason is only
// written to the debug log.
func (c *Codec) Verify(ctx context.Context, token, requestDevice string) (*Payload, error) {
	p, reason := c.verify(token, requestDevice)
	if reason != "" {
		c.logger.Debug(ctx, "token rejected", "reason", reason, "token", Fragment(token))
		return nil, common.ErrInvalidToken
	}
	return p, nil
}

func (c *Codec) verify(token, requestDevice string) (*Payload, string) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return nil, "malformed encoding"
	}

	split := len(raw) - cryptox.MACSize - 1
	if split < 1 || raw[split] != separator {
		return nil, "malformed layout"
	}
	body, mac := raw[:split], raw[split+1:]

	if !cryptox.VerifyMAC(c.macKey, body, mac) {
		return nil, "mac mismatch"
	}

	var p Payload
	if err := codec.Unmarshal(body, &p); err != nil {
		return nil, "malformed payload"
	}
	if p.TokenID == "" || p.PurchaserID == "" || p.DocumentID == "" || p.PurchaseID == "" {
		return nil, "incomplete payload"
	}

	if c.clock.Now().UnixMilli() > p.ExpiresAtMillis {
		return nil, "expired"
	}

	if !cryptox.EqualFingerprint(c.tokenFingerprint(&p), p.Fingerprint) {
		return nil, "fingerprint mismatch"
	}

	if p.DeviceFingerprint != "" && requestDevice != "" &&
		!cryptox.EqualFingerprint(p.DeviceFingerprint, requestDevice) {
		return nil, "device mismatch"
	}

	return &p, ""
}

// Fragment returns a loggable prefix of token.
func Fragment(token string) string {
	const keep = 8
	if len(token) <= keep {
		return "…"
	}
	return token[:keep] + "…"
}
