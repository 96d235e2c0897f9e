package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// EnvVar holds a Cookie-header style list, e.g. "cf_clearance=abc; PHPSESSID=xyz".
const EnvVar = "FIDEMATCH_COOKIES"

// EnvSource reads cookies from the FIDEMATCH_COOKIES environment variable.
type EnvSource struct{}

// Cookies parses the environment variable, if set.
func (EnvSource) Cookies(context.Context) (map[string]string, error) {
	raw := strings.TrimSpace(os.Getenv(EnvVar))
	if raw == "" {
		return nil, nil //nolint:nilnil // unset env var is not an error
	}
	return ParseCookieHeader(raw)
}

// ParseCookieHeader parses a Cookie-header style string into a name/value map.
func ParseCookieHeader(raw string) (map[string]string, error) {
	parsed, err := http.ParseCookie(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	cookies := make(map[string]string, len(parsed))
	for _, c := range parsed {
		cookies[c.Name] = c.Value
	}
	return cookies, nil
}
