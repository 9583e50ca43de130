// Package torrent turns a magnet or info hash into an HTTP URL served by a torrent helper
// daemon running on the same device (TorrServer or a Stremio streaming server).
package torrent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dbytex91/addonx/internal/store"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultM3UTimeout    = 1500 * time.Millisecond
	defaultDirectTimeout = 1000 * time.Millisecond
	maxPlaylistBody      = 256 << 10
)

// DefaultFallbacks are the loopback ports the common helpers listen on.
var DefaultFallbacks = []string{
	"http://127.0.0.1:8090",
	"http://127.0.0.1:11470",
}

var ErrNoHelper = errors.New("no torrent helper answered")

type Bridge struct {
	transport     transport.Transport
	prefs         store.Store
	baseURL       string
	fallbacks     []string
	m3uTimeout    time.Duration
	directTimeout time.Duration
}

type Option func(*Bridge)

// WithBaseURL pins the helper location ahead of the stored preference.
func WithBaseURL(baseURL string) Option {
	return func(b *Bridge) {
		b.baseURL = baseURL
	}
}

// WithPreferences reads the helper location from the preference store on every call.
func WithPreferences(prefs store.Store) Option {
	return func(b *Bridge) {
		b.prefs = prefs
	}
}

func WithFallbacks(fallbacks ...string) Option {
	return func(b *Bridge) {
		b.fallbacks = fallbacks
	}
}

func WithTimeouts(m3u, direct time.Duration) Option {
	return func(b *Bridge) {
		b.m3uTimeout = m3u
		b.directTimeout = direct
	}
}

func NewBridge(tr transport.Transport, opts ...Option) *Bridge {
	b := &Bridge{
		transport:     tr,
		fallbacks:     DefaultFallbacks,
		m3uTimeout:    defaultM3UTimeout,
		directTimeout: defaultDirectTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Candidates lists the helper base URLs in the order they are tried.
func (b *Bridge) Candidates() []string {
	candidates := []string{}
	add := func(raw string) {
		base := strings.TrimRight(strings.TrimSpace(raw), "/")
		if base == "" {
			return
		}
		if !strings.Contains(base, "://") {
			base = "http://" + base
		}
		if slices.Contains(candidates, base) {
			return
		}
		candidates = append(candidates, base)
	}

	add(b.baseURL)
	if b.prefs != nil {
		value, ok, err := b.prefs.Get(store.KeyTorrentHelperURL)
		if err != nil {
			log.Warnf("Failed to read the torrent helper url: %v", err)
		} else if ok {
			add(value)
		}
	}
	for _, fallback := range b.fallbacks {
		add(fallback)
	}
	return candidates
}

// Resolve asks each helper in turn for an HTTP URL of the given file. fileIdx is the
// zero-based index providers publish; nil means the first file.
func (b *Bridge) Resolve(ctx context.Context, magnet *Magnet, fileIdx *int) (string, error) {
	link := url.QueryEscape(magnet.String())
	file := 0
	if fileIdx != nil && *fileIdx >= 0 {
		file = *fileIdx
	}

	for _, base := range b.Candidates() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		streamURL, err := b.fromPlaylist(ctx, base, link, file)
		if err == nil {
			log.Debugf("Torrent %s bridged through the playlist of %s", magnet.InfoHashStr(), base)
			return streamURL, nil
		}
		log.Debugf("Playlist endpoint of %s failed: %v", base, err)

		streamURL, err = b.direct(ctx, base, link, file)
		if err == nil {
			log.Debugf("Torrent %s bridged directly through %s", magnet.InfoHashStr(), base)
			return streamURL, nil
		}
		log.Debugf("Direct endpoint of %s failed: %v", base, err)
	}

	return "", fmt.Errorf("%w for %s", ErrNoHelper, magnet.InfoHashStr())
}

func (b *Bridge) fromPlaylist(ctx context.Context, base string, link string, fileIdx int) (string, error) {
	playlistURL := base + "/stream?link=" + link + "&m3u"
	resp, err := b.transport.Get(ctx, transport.Request{
		URL:     playlistURL,
		Timeout: b.m3uTimeout,
		MaxBody: maxPlaylistBody,
	})
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	entry, ok := PickPlaylistEntry(resp.Body, base, fileIdx)
	if !ok {
		return "", errors.New("empty playlist")
	}
	return entry, nil
}

// direct uses the TorrServer play endpoint, whose file index is 1-based.
func (b *Bridge) direct(ctx context.Context, base string, link string, fileIdx int) (string, error) {
	streamURL := base + "/stream?link=" + link + "&index=" + strconv.Itoa(fileIdx+1) + "&play"
	resp, err := b.transport.Get(ctx, transport.Request{
		URL:     streamURL,
		Headers: map[string]string{"Range": "bytes=0-1"},
		Timeout: b.directTimeout,
		MaxBody: 2,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 && resp.StatusCode != 206 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return streamURL, nil
}

// PickPlaylistEntry returns the M3U entry that refers to the zero-based file index, else the
// first entry. TorrServer entries carry a 1-based index query, Stremio server entries carry
// the zero-based index as a path segment. Relative entries are resolved against base.
func PickPlaylistEntry(playlist []byte, base string, fileIdx int) (string, bool) {
	baseURL, err := url.Parse(base + "/")
	if err != nil {
		return "", false
	}

	entries := []*url.URL{}
	scanner := bufio.NewScanner(bytes.NewReader(playlist))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := url.Parse(line)
		if err != nil {
			continue
		}
		entries = append(entries, baseURL.ResolveReference(ref))
	}
	if len(entries) == 0 {
		return "", false
	}

	queryIndex := strconv.Itoa(fileIdx + 1)
	for _, entry := range entries {
		if entry.Query().Get("index") == queryIndex {
			return entry.String(), true
		}
	}
	pathIndex := strconv.Itoa(fileIdx)
	for _, entry := range entries {
		if slices.Contains(strings.Split(entry.Path, "/"), pathIndex) {
			return entry.String(), true
		}
	}
	return entries[0].String(), true
}
