// Package streams fans a content request out to every eligible addon and normalizes what
// comes back.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cache"
	"github.com/dbytex91/addonx/internal/metrics"
	"github.com/dbytex91/addonx/internal/pipe"
	"github.com/dbytex91/addonx/internal/router"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProfile        = "default"
	defaultAddonTimeout   = 5000 * time.Millisecond
	defaultMapperTimeout  = 600 * time.Millisecond
	defaultConcurrency    = 8
	animeMemoSize         = 4 * 1024 * 1024
	animeMemoExpiry       = 6 * 60 * 60
	animeMemoMissExpiry   = 10 * 60
	maxStreamResponseBody = 4 << 20
)

// AddonLister is the read side of the addon registry.
type AddonLister interface {
	List() []addon.Addon
}

type Resolver struct {
	addons    AddonLister
	transport transport.Transport
	results   *cache.ResultCache
	group     singleflight.Group

	mapper        AnimeMapper
	animeMemo     *freecache.Cache
	profile       func() string
	concurrency   int
	addonTimeout  time.Duration
	mapperTimeout time.Duration
}

type Option func(*Resolver)

func WithAnimeMapper(mapper AnimeMapper) Option {
	return func(r *Resolver) {
		r.mapper = mapper
	}
}

// WithProfile sets where the active profile name is read from. It is part of the cache key.
func WithProfile(profile func() string) Option {
	return func(r *Resolver) {
		r.profile = profile
	}
}

// WithConcurrency caps how many addons are queried at once.
func WithConcurrency(concurrency int) Option {
	return func(r *Resolver) {
		r.concurrency = concurrency
	}
}

func WithAddonTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.addonTimeout = timeout
	}
}

func WithMapperTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.mapperTimeout = timeout
	}
}

func NewResolver(addons AddonLister, tr transport.Transport, results *cache.ResultCache, opts ...Option) *Resolver {
	r := &Resolver{
		addons:        addons,
		transport:     tr,
		results:       results,
		animeMemo:     freecache.NewCache(animeMemoSize),
		profile:       func() string { return DefaultProfile },
		concurrency:   defaultConcurrency,
		addonTimeout:  defaultAddonTimeout,
		mapperTimeout: defaultMapperTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type request struct {
	contentType addon.ContentType
	imdbID      string
	season      int
	episode     int
	anime       AnimeHints
}

func (q request) contentID() string {
	if q.contentType == addon.ContentTypeSeries {
		return q.imdbID + ":" + strconv.Itoa(q.season) + ":" + strconv.Itoa(q.episode)
	}
	return q.imdbID
}

// ResolveMovie returns every stream the eligible addons know for a movie. A fresh cached
// result is returned without any network activity unless forceRefresh is set.
func (r *Resolver) ResolveMovie(ctx context.Context, imdbID string, forceRefresh bool) (addon.StreamResult, error) {
	return r.resolve(ctx, request{contentType: addon.ContentTypeMovie, imdbID: imdbID}, forceRefresh)
}

// ResolveEpisode is ResolveMovie for one episode. Anime episodes are also looked up under
// the id the anime mapper returns.
func (r *Resolver) ResolveEpisode(ctx context.Context, imdbID string, season, episode int, hints AnimeHints, forceRefresh bool) (addon.StreamResult, error) {
	return r.resolve(ctx, request{
		contentType: addon.ContentTypeSeries,
		imdbID:      imdbID,
		season:      season,
		episode:     episode,
		anime:       hints,
	}, forceRefresh)
}

func (r *Resolver) resolve(ctx context.Context, req request, forceRefresh bool) (addon.StreamResult, error) {
	key := cache.Key(r.profile(), req.contentType, req.imdbID, req.season, req.episode)

	if !forceRefresh {
		if entry, ok := r.results.Get(key); ok {
			metrics.RecordCacheLookup("hit")
			return copyResult(entry.Result), nil
		}
	}

	v, err, shared := r.group.Do(key, r.flight(ctx, key, req, forceRefresh))
	if err != nil && shared && isContextErr(err) && ctx.Err() == nil {
		// The caller that led the shared flight went away; this one is still waiting.
		v, err, shared = r.group.Do(key, r.flight(ctx, key, req, forceRefresh))
	}
	if err != nil {
		return addon.StreamResult{}, err
	}

	if shared {
		metrics.RecordCacheLookup("shared")
	} else {
		metrics.RecordCacheLookup("miss")
	}
	return copyResult(v.(addon.StreamResult)), nil
}

// flight runs one fan-out for key and caches its result. A Clear that lands while the
// fan-out runs wins: the result is still returned but not stored.
func (r *Resolver) flight(ctx context.Context, key string, req request, forceRefresh bool) func() (any, error) {
	return func() (any, error) {
		if !forceRefresh {
			if entry, ok := r.results.Get(key); ok {
				return entry.Result, nil
			}
		}

		gen := r.results.Generation()
		result := r.fanOut(ctx, req)
		if err := ctx.Err(); err != nil {
			return addon.StreamResult{}, err
		}
		if _, ok := r.results.PutIfGeneration(key, gen, result); !ok {
			log.Debugf("Dropped %s result for %s: cache cleared during fan-out", req.contentType, req.contentID())
		}
		return result, nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type addonTask struct {
	addon    addon.Addon
	id       string
	fallback string
}

func (r *Resolver) fanOut(ctx context.Context, req request) addon.StreamResult {
	start := time.Now()
	installed := r.addons.List()
	canonical := req.contentID()

	altID := ""
	if req.contentType == addon.ContentTypeSeries && req.anime.IsAnime {
		altID = r.animeID(ctx, req)
	}

	tasks := r.plan(installed, req.contentType, canonical, altID)
	if len(tasks) == 0 {
		log.Infof("No addon is eligible for %s %s", req.contentType, canonical)
		return addon.StreamResult{Streams: []addon.StreamSource{}, Subtitles: []addon.Subtitle{}}
	}

	found := pipe.FanOut(ctx, tasks, func(ctx context.Context, t addonTask) ([]addon.StreamSource, error) {
		streams, err := r.fetchStreams(ctx, t.addon, req.contentType, t.id)
		if err != nil || len(streams) > 0 || t.fallback == "" {
			return streams, err
		}

		log.Debugf("Addon %s has nothing for %s, retrying with %s", t.addon.Name, t.id, t.fallback)
		return r.fetchStreams(ctx, t.addon, req.contentType, t.fallback)
	}, pipe.Concurrency(r.concurrency), pipe.Timeout(r.addonTimeout), pipe.OnError(func(i int, err error) {
		if errors.Is(err, pipe.ErrTaskTimeout) {
			metrics.ObserveAddonRequest(string(addon.ResourceStream), metrics.OutcomeTimeout, r.addonTimeout)
			err = fmt.Errorf("%w: %v", addon.ErrPerAddonTimeout, err)
		}
		log.Warnf("Addon %s contributed nothing for %s: %v", tasks[i].addon.Name, tasks[i].id, err)
	}))

	metrics.ObserveFanOut(string(req.contentType), time.Since(start))
	log.Infof("Found %d streams for %s from %d addons in %s", len(found), canonical, len(tasks), time.Since(start))

	// subtitles are fetched once a stream is chosen
	return addon.StreamResult{Streams: found, Subtitles: []addon.Subtitle{}}
}

// plan picks the addons to query and the id each one is asked for. Addons that accept the
// anime id get it first and fall back to the canonical id on an empty answer.
func (r *Resolver) plan(installed []addon.Addon, contentType addon.ContentType, canonical, altID string) []addonTask {
	byCanonical := router.EligibleForStreams(installed, contentType, canonical)
	if altID == "" {
		tasks := make([]addonTask, 0, len(byCanonical))
		for _, a := range byCanonical {
			tasks = append(tasks, addonTask{addon: a, id: canonical})
		}
		return tasks
	}

	byAlt := router.EligibleForStreams(installed, contentType, altID)
	tasks := []addonTask{}
	for _, a := range installed {
		acceptsAlt := slices.ContainsFunc(byAlt, func(e addon.Addon) bool { return e.ID == a.ID })
		acceptsCanonical := slices.ContainsFunc(byCanonical, func(e addon.Addon) bool { return e.ID == a.ID })
		switch {
		case acceptsAlt:
			tasks = append(tasks, addonTask{addon: a, id: altID, fallback: canonical})
		case acceptsCanonical:
			tasks = append(tasks, addonTask{addon: a, id: canonical})
		}
	}
	return tasks
}

func (r *Resolver) fetchStreams(ctx context.Context, a addon.Addon, contentType addon.ContentType, id string) ([]addon.StreamSource, error) {
	start := time.Now()
	reqURL := addon.ResourceURL(a.BaseURL(), addon.ResourceStream, contentType, id, "")

	resp, err := r.transport.Get(ctx, transport.Request{
		URL:     reqURL,
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: r.addonTimeout,
		MaxBody: maxStreamResponseBody,
	})
	if err != nil {
		if ctx.Err() == nil {
			metrics.ObserveAddonRequest(string(addon.ResourceStream), metrics.OutcomeError, time.Since(start))
		}
		return nil, err
	}
	if !resp.IsSuccess() {
		metrics.ObserveAddonRequest(string(addon.ResourceStream), metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("%s answered %d", a.Name, resp.StatusCode)
	}

	body := &addon.GetStreamsResponse{}
	if err := json.Unmarshal(resp.Body, body); err != nil {
		metrics.ObserveAddonRequest(string(addon.ResourceStream), metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("malformed response from %s: %w", a.Name, err)
	}

	streams := Normalize(a, body.Streams)
	outcome := metrics.OutcomeOK
	if len(streams) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveAddonRequest(string(addon.ResourceStream), outcome, time.Since(start))
	return streams, nil
}

// animeID asks the mapper for the anime id of an episode under a short deadline. Answers,
// including "no mapping", are memoized; failures are not.
func (r *Resolver) animeID(ctx context.Context, req request) string {
	if r.mapper == nil {
		return ""
	}

	query := AnimeQuery{
		TMDBID:  req.anime.TMDBID,
		TVDBID:  req.anime.TVDBID,
		Title:   req.anime.Title,
		IMDBID:  req.imdbID,
		Season:  req.season,
		Episode: req.episode,
	}
	key := query.key()
	if v, err := r.animeMemo.Get(key); err == nil {
		return string(v)
	}

	ctx, cancel := context.WithTimeout(ctx, r.mapperTimeout)
	defer cancel()

	type answer struct {
		id  string
		err error
	}
	answerCh := make(chan answer, 1)
	go func() {
		id, err := r.mapper.ResolveAnimeEpisodeQuery(ctx, query)
		answerCh <- answer{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Warnf("Anime mapping for %s timed out, continuing without it", req.contentID())
		return ""
	case a := <-answerCh:
		if a.err != nil {
			log.Warnf("Anime mapping for %s failed: %v", req.contentID(), a.err)
			return ""
		}

		expiry := animeMemoExpiry
		if a.id == "" {
			expiry = animeMemoMissExpiry
		}
		if err := r.animeMemo.Set(key, []byte(a.id), expiry); err != nil {
			log.Warnf("Failed to memoize anime mapping: %v", err)
		}
		return a.id
	}
}

func copyResult(result addon.StreamResult) addon.StreamResult {
	streams := make([]addon.StreamSource, 0, len(result.Streams))
	for _, s := range result.Streams {
		streams = append(streams, s.Clone())
	}
	return addon.StreamResult{
		Streams:   streams,
		Subtitles: slices.Clone(result.Subtitles),
	}
}
