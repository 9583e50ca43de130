// Package engine wires the addon registry, the stream fan-out, the result cache, playback
// resolution and the subtitle fan-out into one object the host application talks to.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cache"
	"github.com/dbytex91/addonx/internal/playback"
	"github.com/dbytex91/addonx/internal/registry"
	"github.com/dbytex91/addonx/internal/store"
	"github.com/dbytex91/addonx/internal/streams"
	"github.com/dbytex91/addonx/internal/subtitles"
	"github.com/dbytex91/addonx/internal/torrent"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
)

type Engine struct {
	prefs     store.Store
	transport transport.Transport

	registry  *registry.Registry
	results   *cache.ResultCache
	streams   *streams.Resolver
	playback  *playback.Resolver
	subtitles *subtitles.FanOut
	bridge    *torrent.Bridge
	vod       VODLookup
	metadata  MetadataLookup

	mu      sync.RWMutex
	profile string

	concurrency int
	helperURL   string
	mapper      streams.AnimeMapper
	clock       cache.Clock
}

type Option func(*Engine)

func WithTransport(tr transport.Transport) Option {
	return func(e *Engine) {
		e.transport = tr
	}
}

func WithProfile(profile string) Option {
	return func(e *Engine) {
		e.profile = profile
	}
}

// WithConcurrency caps the number of addons queried at once by both fan-outs.
func WithConcurrency(concurrency int) Option {
	return func(e *Engine) {
		e.concurrency = concurrency
	}
}

// WithTorrentHelperURL seeds the helper daemon location when the user has not picked one.
func WithTorrentHelperURL(helperURL string) Option {
	return func(e *Engine) {
		e.helperURL = helperURL
	}
}

func WithAnimeMapper(mapper streams.AnimeMapper) Option {
	return func(e *Engine) {
		e.mapper = mapper
	}
}

func WithVODLookup(vod VODLookup) Option {
	return func(e *Engine) {
		e.vod = vod
	}
}

// WithMetadata sets where FindVOD looks up titles it was not given.
func WithMetadata(metadata MetadataLookup) Option {
	return func(e *Engine) {
		e.metadata = metadata
	}
}

func WithClock(clock cache.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func New(prefs store.Store, opts ...Option) *Engine {
	e := &Engine{
		prefs:       prefs,
		profile:     streams.DefaultProfile,
		concurrency: 8,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.transport == nil {
		e.transport = transport.New()
	}
	if e.profile == "" {
		e.profile = streams.DefaultProfile
	}
	if e.helperURL != "" {
		e.seedTorrentHelper(e.helperURL)
	}

	var cacheOpts []cache.Option
	if e.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(e.clock))
	}
	e.results = cache.New(cacheOpts...)

	e.registry = registry.New(prefs, e.transport, registry.WithOnChange(e.results.Clear))

	streamOpts := []streams.Option{
		streams.WithProfile(e.Profile),
		streams.WithConcurrency(e.concurrency),
	}
	if e.mapper != nil {
		streamOpts = append(streamOpts, streams.WithAnimeMapper(e.mapper))
	}
	e.streams = streams.NewResolver(e.registry, e.transport, e.results, streamOpts...)

	e.bridge = torrent.NewBridge(e.transport, torrent.WithPreferences(prefs))
	e.playback = playback.New(e.transport, playback.WithBridge(e.bridge))
	e.subtitles = subtitles.New(e.registry, e.transport, subtitles.WithConcurrency(e.concurrency))

	return e
}

func (e *Engine) seedTorrentHelper(helperURL string) {
	current, ok, err := e.prefs.Get(store.KeyTorrentHelperURL)
	if err != nil {
		log.Warnf("Failed to read the torrent helper preference: %v", err)
		return
	}
	if ok && strings.TrimSpace(current) != "" {
		return
	}
	if err := e.prefs.Set(store.KeyTorrentHelperURL, helperURL); err != nil {
		log.Warnf("Failed to store the torrent helper url: %v", err)
	}
}

func (e *Engine) Profile() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// SetProfile switches the active profile. Cached results of the previous profile are dropped.
func (e *Engine) SetProfile(profile string) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = streams.DefaultProfile
	}

	e.mu.Lock()
	changed := e.profile != profile
	e.profile = profile
	e.mu.Unlock()

	if changed {
		log.Infof("Switched to profile %s", profile)
		e.results.Clear()
	}
}

func (e *Engine) ClearCache() {
	e.results.Clear()
}

func (e *Engine) Addons() []addon.Addon {
	return e.registry.List()
}

func (e *Engine) AddAddon(ctx context.Context, rawURL, displayName string) (addon.Addon, error) {
	return e.registry.Add(ctx, rawURL, displayName)
}

func (e *Engine) RemoveAddon(id string) error {
	return e.registry.Remove(id)
}

func (e *Engine) ToggleAddon(id string) (addon.Addon, error) {
	return e.registry.Toggle(id)
}

func (e *Engine) ReplaceAddons(addons []addon.Addon) error {
	return e.registry.ReplaceAll(addons)
}

// ResolveMovie returns the ranked streams every eligible addon knows for a movie.
func (e *Engine) ResolveMovie(ctx context.Context, imdbID string, forceRefresh bool) (addon.StreamResult, error) {
	result, err := e.streams.ResolveMovie(ctx, imdbID, forceRefresh)
	if err != nil {
		return result, err
	}
	result.Streams = streams.Rank(result.Streams)
	return result, nil
}

func (e *Engine) ResolveEpisode(ctx context.Context, imdbID string, season, episode int, hints streams.AnimeHints, forceRefresh bool) (addon.StreamResult, error) {
	result, err := e.streams.ResolveEpisode(ctx, imdbID, season, episode, hints, forceRefresh)
	if err != nil {
		return result, err
	}
	result.Streams = streams.Rank(result.Streams)
	return result, nil
}

// Resolve turns a stream into something a player can open, or nil.
func (e *Engine) Resolve(ctx context.Context, stream addon.StreamSource) *addon.StreamSource {
	return e.playback.Resolve(ctx, stream)
}

func (e *Engine) IsReachable(ctx context.Context, stream addon.StreamSource, timeout time.Duration) bool {
	return e.playback.IsReachable(ctx, stream, timeout)
}

func (e *Engine) FetchSubtitles(ctx context.Context, mediaType addon.ContentType, imdbID string, season, episode int, selected *addon.StreamSource) []addon.Subtitle {
	return e.subtitles.FetchFor(ctx, mediaType, imdbID, season, episode, selected)
}

// TorrentHelperURL returns the helper daemon locations tried in order.
func (e *Engine) TorrentHelperURL() []string {
	return e.bridge.Candidates()
}

// SetTorrentHelperURL persists the user's helper daemon location. An empty value restores the
// built-in fallbacks.
func (e *Engine) SetTorrentHelperURL(helperURL string) error {
	return e.prefs.Set(store.KeyTorrentHelperURL, strings.TrimSpace(helperURL))
}
