package cors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowed_Wildcard(t *testing.T) {
	allowlist := ParseAllowlist([]string{"*.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://sub.example.com", true},
		{"https://deep.sub.example.com", true},
		{"https://example.com", false}, // bare root never matches a wildcard
		{"https://notexample.com", false},
		{"https://example.com.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.origin, allowlist))
		})
	}
}

func TestIsAllowed_SchemeAndPort(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []string
		origin    string
		want      bool
	}{
		{"scheme pinned match", []string{"https://shop.example.com"}, "https://shop.example.com", true},
		{"scheme pinned mismatch", []string{"https://shop.example.com"}, "http://shop.example.com", false},
		{"no scheme inherits request", []string{"shop.example.com"}, "http://shop.example.com", true},
		{"port pinned match", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"port pinned mismatch", []string{"http://localhost:3000"}, "http://localhost:4000", false},
		{"entry without port matches any", []string{"shop.example.com"}, "https://shop.example.com:8443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.origin, ParseAllowlist(tt.allowlist)))
		})
	}
}

func TestIsAllowed_BadOrigins(t *testing.T) {
	allowlist := ParseAllowlist([]string{"*.example.com", "shop.example.com"})

	assert.False(t, IsAllowed("", allowlist))
	assert.False(t, IsAllowed("shop.example.com", allowlist)) // no scheme
	assert.False(t, IsAllowed("https://", allowlist))
}
