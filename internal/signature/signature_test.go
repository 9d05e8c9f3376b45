package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerify_RoundTrip(t *testing.T) {
	body := []byte(`{"code":"SUMMER25"}`)
	ts := int64(1700000000)
	sig := Sign("POST", "/v1/validate-code", "shop.example.com", ts, body, "s3cret")

	err := Verify("POST", "/v1/validate-code", "shop.example.com", ts, body, "s3cret", sig)
	assert.NoError(t, err)
}

func TestVerify_AnyByteChangeInvalidates(t *testing.T) {
	body := []byte(`{"code":"SUMMER25","value":100}`)
	ts := int64(1700000000)
	sig := Sign("POST", "/v1/convert", "shop.example.com", ts, body, "s3cret")

	for i := range body {
		mutated := make([]byte, len(body))
		copy(mutated, body)
		mutated[i] ^= 0x01

		err := Verify("POST", "/v1/convert", "shop.example.com", ts, mutated, "s3cret", sig)
		assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d", i)
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	ts := int64(1700000000)
	sig := Sign("GET", "/v1/config", "shop.example.com", ts, nil, "s3cret")

	assert.ErrorIs(t, Verify("GET", "/v1/config", "shop.example.com", ts, nil, "s3cret", ""), ErrMissingSignature)
	assert.ErrorIs(t, Verify("GET", "/v1/config", "shop.example.com", ts, nil, "", sig), ErrInvalidSignature)
	assert.ErrorIs(t, Verify("GET", "/v1/config", "other.example.com", ts, nil, "s3cret", sig), ErrInvalidSignature)
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	skew := 300 * time.Second

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"current", "1700000000", nil},
		{"past within skew", "1699999701", nil},
		{"future within skew", "1700000299", nil},
		{"too old", "1699999699", ErrInvalidTimestamp},
		{"too far ahead", "1700000301", ErrInvalidTimestamp},
		{"empty", "", ErrMissingTimestamp},
		{"garbage", "not-a-number", ErrInvalidTimestamp},
		{"zero", "0", ErrInvalidTimestamp},
		{"negative", "-1700000000", ErrInvalidTimestamp},
		{"min int64", "-9223372036854775808", ErrInvalidTimestamp},
		{"max int64", "9223372036854775807", ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckTimestamp(tt.raw, now, skew)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
