package pipeline

import (
	"net/url"
	"strings"

	"github.com/formrelay/formrelay/internal/form"
)

// validateOrigin checks the submitting origin against the form's
// allowed-domain set. An empty set, or a "*" entry, allows any origin;
// this permissive default exists for backward compatibility. Matching is
// case-insensitive and accepts exact hosts and subdomains of a configured
// domain. No side effects.
func validateOrigin(origin string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}

	host := originHost(origin)
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if domain == "*" {
			return nil
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}

	return form.ErrOriginRejected(origin)
}

// originHost extracts the lowercase host from an Origin or Referer header
// value. Bare hostnames are accepted as-is.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}

	if strings.Contains(origin, "://") {
		if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}

	// Bare host, possibly with a port or path.
	host := origin
	if i := strings.IndexAny(host, "/"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	return strings.ToLower(host)
}
