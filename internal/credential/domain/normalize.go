package domain

import (
	"net/url"
	"strings"
)

// NormalizeDomain reduces any domain spelling to the canonical bare host:
// lowercase, no scheme, no www prefix, no port, no path or trailing slash.
// The function is idempotent; every boundary that accepts a domain applies it.
func NormalizeDomain(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}

	if strings.Contains(value, "://") {
		if parsed, err := url.Parse(value); err == nil && parsed.Host != "" {
			value = parsed.Host
		} else {
			value = value[strings.Index(value, "://")+3:]
		}
	}

	if idx := strings.IndexAny(value, "/?#"); idx >= 0 {
		value = value[:idx]
	}
	if idx := strings.LastIndex(value, ":"); idx >= 0 && !strings.Contains(value, "]") {
		value = value[:idx]
	}
	value = strings.TrimPrefix(value, "www.")
	return strings.TrimSuffix(value, ".")
}
