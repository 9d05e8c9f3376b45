package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name         string
		apiKeyPrefix string
		forwardedFor string
		remoteAddr   string
		want         string
	}{
		{
			name:         "api key prefix wins",
			apiKeyPrefix: "affcd_live_abcd",
			forwardedFor: "203.0.113.9",
			remoteAddr:   "198.51.100.7:4431",
			want:         "key:affcd_live_abcd",
		},
		{
			name:         "first public forwarded ip",
			forwardedFor: "10.0.0.1, 192.168.1.5, 203.0.113.9, 198.51.100.7",
			remoteAddr:   "127.0.0.1:9000",
			want:         "ip:203.0.113.9",
		},
		{
			name:         "loopback and link-local skipped",
			forwardedFor: "127.0.0.1, 169.254.10.10, 2001:db8::1",
			remoteAddr:   "127.0.0.1:9000",
			want:         "ip:2001:db8::1",
		},
		{
			name:         "all private falls back to remote addr",
			forwardedFor: "10.1.2.3, 172.16.0.4",
			remoteAddr:   "198.51.100.7:55012",
			want:         "ip:198.51.100.7",
		},
		{
			name:       "no headers at all",
			remoteAddr: "198.51.100.7:55012",
			want:       "ip:198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.apiKeyPrefix, tt.forwardedFor, tt.remoteAddr))
		})
	}
}
