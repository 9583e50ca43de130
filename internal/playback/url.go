package playback

import (
	"net/url"
	"strings"

	"github.com/dbytex91/addonx/internal/addon"
)

// SplitPipeHeaders splits "url|Key=Value&Key2=Value2" into the url and its sanitized headers.
// Keys and values are percent-decoded; a pair that fails to decode is kept raw.
func SplitPipeHeaders(raw string) (string, map[string]string) {
	link, encoded, found := strings.Cut(raw, "|")
	link = strings.TrimSpace(link)
	if !found {
		return link, nil
	}

	headers := map[string]string{}
	for _, pair := range strings.Split(encoded, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[unescape(k)] = unescape(v)
	}
	return link, addon.MergeHeaders(headers)
}

func unescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// CoerceScheme gives scheme-less links an https scheme: "//host/x" and "host.tld/x".
func CoerceScheme(link string) string {
	switch {
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case !strings.Contains(link, "://") && !hasScheme(link):
		return "https://" + link
	}
	return link
}

// hasScheme catches opaque forms such as "magnet:?xt=..." that carry no "//".
func hasScheme(link string) bool {
	scheme, rest, ok := strings.Cut(link, ":")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "./") {
		return false
	}
	// host:port is not a scheme
	return !startsWithDigit(rest)
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func IsMagnet(link string) bool {
	return len(link) >= 7 && strings.EqualFold(link[:7], "magnet:")
}

// OriginFromReferer derives "scheme://host" from a Referer value, or "".
func OriginFromReferer(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
