// Package cryptox holds the hashing and keyed-MAC primitives behind download
// credentials and copy fingerprints.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// FingerprintLength is the number of hex characters kept from a fingerprint hash.
const FingerprintLength = 16

// MACSize is the size in bytes of a MAC produced by Sign.
const MACSize = sha256.Size

const fieldSeparator = "\x1f"

// Fingerprint hashes the given fields together with secret using BLAKE3 and
// returns the first FingerprintLength hex characters.
//
// Fields are joined with a unit separator so that ("ab","c") and ("a","bc")
// produce different digests. The secret is always hashed last.
//
// Example:
//
//	fp := Fingerprint([]byte(signingSecret), purchaserID, documentID, purchaseID)
func Fingerprint(secret []byte, fields ...string) string {
	h := blake3.New()
	for _, f := range fields {
		_, _ = io.WriteString(h, f)
		_, _ = io.WriteString(h, fieldSeparator)
	}
	_, _ = h.Write(secret)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:FingerprintLength]
}

// EqualFingerprint compares two fingerprints in constant time.
func EqualFingerprint(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Sign returns HMAC-SHA256(key, data).
func Sign(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// VerifyMAC recomputes the MAC over data and compares it with mac using
// hmac.Equal, which does not exit early on the first differing byte.
func VerifyMAC(key, data, mac []byte) bool {
	return hmac.Equal(Sign(key, data), mac)
}

// DeriveKey expands secret into a size-byte subkey bound to info using
// HKDF-SHA256.
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// MaskEmail hides most of the local part of an address:
// "alice@example.com" becomes "a***e@example.com". Local parts of two
// characters or fewer keep only the first character.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + domain
}

// EmailHash returns a short BLAKE3 digest of the masked form of email, used
// as a metadata tag that does not reveal the address.
func EmailHash(email string) string {
	sum := blake3.Sum256([]byte(strings.ToLower(MaskEmail(email))))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
