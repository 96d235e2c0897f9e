package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/firefox"
)

// essentialCookies are the session cookies the registry's bot filter looks at.
var essentialCookies = []string{"cf_clearance", "__cf_bm", "PHPSESSID"}

// BrowserSource reads registry cookies from local browser cookie stores.
type BrowserSource struct {
	logger *slog.Logger
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger}
}

// Cookies returns registry cookies from the first browser store that has any.
func (s *BrowserSource) Cookies(ctx context.Context) (map[string]string, error) {
	s.logger.DebugContext(ctx, "reading browser cookies", "domain", Domain)

	// Firefox-family profiles in non-default locations are not auto-detected by kooky.
	if cookies := s.tryFirefoxProfiles(ctx); len(cookies) > 0 {
		return cookies, nil
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(Domain))
	if err != nil {
		s.logger.DebugContext(ctx, "failed to read browser cookies", "error", err)
		return nil, nil //nolint:nilnil // failed browser read is not a fatal error
	}
	if len(kookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}
	return s.filterEssential(ctx, kookies), nil
}

// firefoxProfileGlobs lists profile locations for Firefox and its forks.
func firefoxProfileGlobs(home string) []string {
	return []string{
		filepath.Join(home, "Library", "Application Support", "zen", "Profiles", "*", "cookies.sqlite"),
		filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
		filepath.Join(home, ".mozilla", "firefox", "*", "cookies.sqlite"),
		filepath.Join(home, ".zen", "*", "cookies.sqlite"),
	}
}

func (s *BrowserSource) tryFirefoxProfiles(ctx context.Context) map[string]string {
	home := os.Getenv("HOME")
	if home == "" {
		return nil
	}

	for _, pattern := range firefoxProfileGlobs(home) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, f := range matches {
			kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(Domain))
			if err != nil {
				s.logger.DebugContext(ctx, "failed to read Firefox cookies",
					"profile", filepath.Base(filepath.Dir(f)), "error", err)
				continue
			}
			if len(kookies) > 0 {
				s.logger.DebugContext(ctx, "found Firefox cookies",
					"profile", filepath.Base(filepath.Dir(f)), "count", len(kookies))
				return s.filterEssential(ctx, kookies)
			}
		}
	}
	return nil
}

// filterEssential keeps only the cookies the bot filter checks, falling back to all
// registry cookies when none of the known names are present.
func (s *BrowserSource) filterEssential(ctx context.Context, kookies []*kooky.Cookie) map[string]string {
	all := make(map[string]string, len(kookies))
	for _, c := range kookies {
		all[c.Name] = c.Value
	}

	cookies := make(map[string]string)
	var missing []string
	for _, name := range essentialCookies {
		if v, ok := all[name]; ok {
			cookies[name] = v
		} else {
			missing = append(missing, name)
		}
	}
	if len(cookies) == 0 {
		return all
	}
	if len(missing) > 0 {
		s.logger.InfoContext(ctx, "browser cookies missing", "keys", strings.Join(missing, ","))
	}
	return cookies
}
