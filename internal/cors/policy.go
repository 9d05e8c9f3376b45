// Package cors matches request origins against the gateway allow-list,
// including wildcard subdomain entries of the form *.example.com.
package cors

import (
	"strings"
)

// Entry is one parsed allow-list item.
type Entry struct {
	Scheme   string // empty means "match the request scheme"
	Host     string
	Port     string // empty means "match any port"
	Wildcard bool   // host matches strict subdomains only
}

// ParseAllowlist parses raw allow-list strings. Invalid entries are skipped.
func ParseAllowlist(raw []string) []Entry {
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if entry, ok := parseEntry(item); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseEntry(raw string) (Entry, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return Entry{}, false
	}

	var entry Entry
	if idx := strings.Index(value, "://"); idx >= 0 {
		entry.Scheme = value[:idx]
		value = value[idx+3:]
	}
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		entry.Port = value[idx+1:]
		value = value[:idx]
	}
	if rest, ok := strings.CutPrefix(value, "*."); ok {
		entry.Wildcard = true
		value = rest
	}
	if value == "" {
		return Entry{}, false
	}
	entry.Host = value
	return entry, true
}

// IsAllowed reports whether origin (a browser Origin header value) matches
// any allow-list entry. Wildcard entries match strict subdomains only, never
// the bare root. Scheme must match; entries without a scheme inherit the
// request's. Port must match when the entry pins one.
func IsAllowed(origin string, allowlist []Entry) bool {
	scheme, host, port, ok := splitOrigin(origin)
	if !ok {
		return false
	}

	for _, entry := range allowlist {
		if entry.Scheme != "" && entry.Scheme != scheme {
			continue
		}
		if entry.Port != "" && entry.Port != port {
			continue
		}
		if entry.Wildcard {
			if strings.HasSuffix(host, "."+entry.Host) {
				return true
			}
			continue
		}
		if host == entry.Host {
			return true
		}
	}
	return false
}

func splitOrigin(origin string) (scheme, host, port string, ok bool) {
	value := strings.ToLower(strings.TrimSpace(origin))
	idx := strings.Index(value, "://")
	if idx <= 0 {
		return "", "", "", false
	}
	scheme = value[:idx]
	rest := value[idx+3:]
	if rest == "" {
		return "", "", "", false
	}
	if colon := strings.LastIndex(rest, ":"); colon >= 0 {
		host = rest[:colon]
		port = rest[colon+1:]
	} else {
		host = rest
	}
	return scheme, host, port, true
}
