// Package targets validates and prepares the URL set workers browse.
package targets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoTargets is returned when no usable URL remains.
var ErrNoTargets = errors.New("no target URLs")

// Validate checks that raw is an absolute http or https URL with a host.
func Validate(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("url is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", trimmed, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s does not have the full url; include http:// or https://", trimmed)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%s has no host", trimmed)
	}
	if strings.ContainsAny(u.Hostname(), " \t") {
		return fmt.Errorf("%s has an invalid host", trimmed)
	}
	return nil
}

// ValidateAll returns one issue per invalid entry, or nil when all pass.
func ValidateAll(urls []string) []string {
	var issues []string
	for idx, raw := range urls {
		if err := Validate(raw); err != nil {
			issues = append(issues, fmt.Sprintf("urls[%d]: %v", idx, err))
		}
	}
	return issues
}

// Hostname reduces a URL to a bare hostname suitable for DNS resolution:
// scheme, leading "www.", port, path and query are dropped.
func Hostname(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "//" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	return strings.TrimPrefix(host, "www.")
}

// Normalize trims whitespace and drops empty and duplicate entries while
// keeping order.
func Normalize(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
