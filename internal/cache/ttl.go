package cache

import (
	"net/url"
	"strings"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
)

const (
	EmptyTTL     = 120 * time.Second
	P2PTTL       = 120 * time.Second
	EphemeralTTL = 10 * time.Second
	StableTTL    = 30 * time.Second
)

// ephemeralParams are query keys of signed or expiring links, compared lowercase.
var ephemeralParams = map[string]struct{}{
	"token":            {},
	"sig":              {},
	"signature":        {},
	"expires":          {},
	"expiry":           {},
	"exp":              {},
	"hmac":             {},
	"auth":             {},
	"policy":           {},
	"key-pair-id":      {},
	"x-amz-signature":  {},
	"x-amz-expires":    {},
	"x-goog-signature": {},
	"x-goog-expires":   {},
	"hdnts":            {},
}

// TTL picks the lifetime of a result from its content. Each stream maps to a bucket and the
// shortest bucket wins.
func TTL(result addon.StreamResult) time.Duration {
	if len(result.Streams) == 0 {
		return EmptyTTL
	}

	ttl := P2PTTL
	for i := range result.Streams {
		s := &result.Streams[i]
		if !IsHTTP(s.URL) {
			continue
		}
		if IsEphemeral(s) {
			return EphemeralTTL
		}
		ttl = min(ttl, StableTTL)
	}
	return ttl
}

func IsHTTP(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsEphemeral reports whether an http stream is expected to stop working soon: a signed or
// expiring query, a notWebReady hint or required proxy headers.
func IsEphemeral(s *addon.StreamSource) bool {
	if s.BehaviorHints != nil {
		if s.BehaviorHints.NotWebReady || len(s.RequestHeaders()) > 0 {
			return true
		}
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return false
	}
	for key := range u.Query() {
		if _, ok := ephemeralParams[strings.ToLower(key)]; ok {
			return true
		}
	}
	return false
}
