package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/google/uuid"
)

const (
	BuiltinSubtitlesID   = "builtin.subtitles.opensubtitles"
	builtinSubtitlesName = "OpenSubtitles v3"
	builtinSubtitlesURL  = "https://opensubtitles-v3.strem.io/manifest.json"
	manifestFile         = "/manifest.json"
)

var manifestTypo = regexp.MustCompile(`(?i)/(?:manifest|manfest|manifets|mainfest|manifset)(?:\.[a-z]{0,5})?$`)

// NormalizeURL rewrites user input into a canonical manifest URL. Bare hosts and stremio://
// deep links become https; an explicit http:// is kept for LAN addons.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)

	switch {
	case s == "":
		return "", fmt.Errorf("%w: empty", addon.ErrInvalidAddonURL)
	case strings.HasPrefix(lower, "stremio://"):
		s = "https://" + s[len("stremio://"):]
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
	case strings.Contains(s, "://"):
		return "", fmt.Errorf("%w: unsupported scheme in %q", addon.ErrInvalidAddonURL, raw)
	default:
		s = "https://" + strings.TrimLeft(s, "/")
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", addon.ErrInvalidAddonURL, err)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("%w: missing host in %q", addon.ErrInvalidAddonURL, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.Fragment = ""

	p := strings.TrimRight(u.EscapedPath(), "/")
	p = manifestTypo.ReplaceAllString(p, manifestFile)
	if !strings.HasSuffix(p, manifestFile) {
		p += manifestFile
	}
	u.Path, err = url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", addon.ErrInvalidAddonURL, err)
	}
	u.RawPath = p

	return u.String(), nil
}

// DeriveID returns a stable id for a custom addon, so re-adding the same provider from an
// equivalent URL replaces the existing entry.
func DeriveID(manifestID, normalizedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(normalizedURL+"#"+manifestID)).String()
}

// BuiltinSubtitles is the canonical reserved subtitle addon.
func BuiltinSubtitles() addon.Addon {
	return addon.Addon{
		ID:           BuiltinSubtitlesID,
		Name:         builtinSubtitlesName,
		Version:      "1.0.0",
		IsInstalled:  true,
		IsEnabled:    true,
		Type:         addon.TypeSubtitle,
		URL:          builtinSubtitlesURL,
		TransportURL: builtinSubtitlesURL,
	}
}

// Normalize applies the list invariants to any loaded addon list: exactly one reserved
// subtitle addon, always first and enabled, and no duplicate ids. The input is not modified.
func Normalize(addons []addon.Addon) []addon.Addon {
	out := make([]addon.Addon, 0, len(addons)+1)
	out = append(out, BuiltinSubtitles())

	seen := map[string]bool{BuiltinSubtitlesID: true}
	for _, a := range addons {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}

	return out
}
