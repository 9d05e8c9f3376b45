// Package signature implements the HMAC request authentication shared by the
// gateway and its satellites. The canonical string is
// METHOD|route|domain|timestamp|body and the MAC is hex-encoded HMAC-SHA256
// under the per-domain shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrMissingTimestamp = errors.New("missing_timestamp")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidTimestamp = errors.New("invalid_timestamp")
)

// Sign computes the request signature for the canonical parts.
func Sign(method, route, domain string, timestamp int64, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(route))
	mac.Write([]byte{'|'})
	mac.Write([]byte(domain))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'|'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a caller-supplied signature constant-time. It fails closed:
// an empty signature or secret is a rejection, never a pass.
func Verify(method, route, domain string, timestamp int64, body []byte, secret, provided string) error {
	if strings.TrimSpace(provided) == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return ErrInvalidSignature
	}
	expected := Sign(method, route, domain, timestamp, body, secret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(provided)))) {
		return ErrInvalidSignature
	}
	return nil
}

// CheckTimestamp enforces the replay window: the timestamp must fall within
// skew of now in either direction.
func CheckTimestamp(raw string, now time.Time, skew time.Duration) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingTimestamp
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return 0, ErrInvalidTimestamp
	}
	// Compare in whole seconds; converting an attacker-chosen value to a
	// Duration could wrap.
	delta := now.Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(skew/time.Second) {
		return 0, ErrInvalidTimestamp
	}
	return ts, nil
}
