package torrent

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/multiformats/go-multihash"
)

var ErrInvalidMagnet = errors.New("invalid magnet uri")

// Magnet is the part of a magnet link the bridge needs.
type Magnet struct {
	Name     string
	InfoHash [20]byte
	Trackers [][]string
}

// ParseMagnetURI reads the info hash from an xt parameter. v1 hashes (urn:btih, hex or
// base32) are taken as is; a v2 multihash (urn:btmh) is truncated to 20 bytes, the form
// hybrid swarms announce under.
func ParseMagnetURI(uri string) (*Magnet, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMagnet, err)
	}
	if !strings.EqualFold(u.Scheme, "magnet") {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidMagnet, u.Scheme)
	}

	// keep whatever parsed even if one pair is badly escaped
	params, _ := url.ParseQuery(u.RawQuery)

	m := &Magnet{Name: params.Get("dn")}
	found := false
	for key, values := range params {
		if key != "xt" && !strings.HasPrefix(key, "xt.") {
			continue
		}
		for _, xt := range values {
			hash, ok := parseExactTopic(xt)
			if !ok {
				continue
			}
			// a v1 hash beats a truncated v2 one
			if !found || strings.HasPrefix(strings.ToLower(xt), "urn:btih:") {
				m.InfoHash = hash
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no usable xt parameter", ErrInvalidMagnet)
	}

	for _, tr := range params["tr"] {
		if tr = strings.TrimSpace(tr); tr != "" {
			m.Trackers = append(m.Trackers, []string{tr})
		}
	}
	return m, nil
}

func parseExactTopic(xt string) ([20]byte, bool) {
	var hash [20]byte
	lower := strings.ToLower(xt)

	switch {
	case strings.HasPrefix(lower, "urn:btih:"):
		value := xt[len("urn:btih:"):]
		switch len(value) {
		case 40:
			b, err := hex.DecodeString(value)
			if err != nil {
				return hash, false
			}
			copy(hash[:], b)
			return hash, true
		case 32:
			b, err := base32.StdEncoding.DecodeString(strings.ToUpper(value))
			if err != nil || len(b) != 20 {
				return hash, false
			}
			copy(hash[:], b)
			return hash, true
		}
	case strings.HasPrefix(lower, "urn:btmh:"):
		mh, err := multihash.FromHexString(xt[len("urn:btmh:"):])
		if err != nil {
			return hash, false
		}
		decoded, err := multihash.Decode(mh)
		if err != nil || decoded.Code != multihash.SHA2_256 || len(decoded.Digest) < 20 {
			return hash, false
		}
		copy(hash[:], decoded.Digest[:20])
		return hash, true
	}
	return hash, false
}

// InfoHashStr is the lowercase hex info hash.
func (m *Magnet) InfoHashStr() string {
	return hex.EncodeToString(m.InfoHash[:])
}

func (m *Magnet) String() string {
	b := &strings.Builder{}
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(m.InfoHashStr())
	if m.Name != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(m.Name))
	}
	for _, tier := range m.Trackers {
		for _, tr := range tier {
			b.WriteString("&tr=")
			b.WriteString(url.QueryEscape(tr))
		}
	}
	return b.String()
}

// IsInfoHash reports whether s is a 40 character hex v1 info hash.
func IsInfoHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NewMagnet builds a magnet for a known info hash.
func NewMagnet(infoHash string, name string, trackers []string) (*Magnet, error) {
	if !IsInfoHash(infoHash) {
		return nil, fmt.Errorf("%w: bad info hash %q", ErrInvalidMagnet, infoHash)
	}
	m := &Magnet{Name: name}
	b, _ := hex.DecodeString(infoHash)
	copy(m.InfoHash[:], b)
	for _, tr := range trackers {
		// providers list DHT nodes next to trackers
		if strings.HasPrefix(tr, "tracker:") {
			tr = strings.TrimPrefix(tr, "tracker:")
		} else if strings.HasPrefix(tr, "dht:") {
			continue
		}
		m.Trackers = append(m.Trackers, []string{tr})
	}
	return m, nil
}
