// Package subtitles queries subtitle addons for the stream a user picked.
package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/metrics"
	"github.com/dbytex91/addonx/internal/pipe"
	"github.com/dbytex91/addonx/internal/router"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultTimeout     = 3000 * time.Millisecond
	defaultConcurrency = 8
	maxResponseBody    = 2 << 20
)

type AddonLister interface {
	List() []addon.Addon
}

type FanOut struct {
	addons      AddonLister
	transport   transport.Transport
	timeout     time.Duration
	concurrency int
}

type Option func(*FanOut)

// WithTimeout bounds every subtitle addon independently.
func WithTimeout(timeout time.Duration) Option {
	return func(f *FanOut) {
		f.timeout = timeout
	}
}

func WithConcurrency(concurrency int) Option {
	return func(f *FanOut) {
		f.concurrency = concurrency
	}
}

func New(addons AddonLister, tr transport.Transport, opts ...Option) *FanOut {
	f := &FanOut{
		addons:      addons,
		transport:   tr,
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// FetchFor collects subtitles for a movie or an episode (season and episode > 0). Tracks the
// selected stream already carries come first; the rest are de-duplicated by URL. Failing
// addons contribute nothing.
func (f *FanOut) FetchFor(ctx context.Context, mediaType addon.ContentType, imdbID string, season, episode int, selected *addon.StreamSource) []addon.Subtitle {
	contentID := imdbID
	if mediaType == addon.ContentTypeSeries && season > 0 && episode > 0 {
		contentID = imdbID + ":" + strconv.Itoa(season) + ":" + strconv.Itoa(episode)
	}
	extra := requestExtra(selected)

	eligible := router.EligibleForSubtitles(f.addons.List(), mediaType, contentID)
	fetched := pipe.FanOut(ctx, eligible, func(ctx context.Context, a addon.Addon) ([]addon.Subtitle, error) {
		return f.fetch(ctx, a, mediaType, contentID, extra)
	}, pipe.Concurrency(f.concurrency), pipe.Timeout(f.timeout), pipe.OnError(func(i int, err error) {
		log.Warnf("Subtitle addon %s contributed nothing for %s: %v", eligible[i].Name, contentID, err)
	}))

	out := []addon.Subtitle{}
	seen := map[string]struct{}{}
	add := func(s addon.Subtitle) {
		if _, ok := seen[s.URL]; ok {
			return
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}

	if selected != nil {
		for _, s := range selected.Subtitles {
			lang := NormalizeLanguage(s.Lang)
			s.Lang = lang
			s.Label = Label(lang, s.Label)
			s.IsEmbedded = true
			add(s)
		}
	}
	for _, s := range fetched {
		add(s)
	}

	log.Debugf("Found %d subtitles for %s from %d addons", len(out), contentID, len(eligible))
	return out
}

// requestExtra encodes the hints subtitle providers match files by.
func requestExtra(selected *addon.StreamSource) string {
	if selected == nil || selected.BehaviorHints == nil {
		return ""
	}

	hints := selected.BehaviorHints
	values := url.Values{}
	if hints.FileName != "" {
		values.Set("filename", hints.FileName)
	}
	if hints.VideoHash != "" {
		values.Set("videoHash", hints.VideoHash)
	}
	if hints.VideoSize > 0 {
		values.Set("videoSize", strconv.FormatInt(hints.VideoSize, 10))
	}
	return values.Encode()
}

func (f *FanOut) fetch(ctx context.Context, a addon.Addon, mediaType addon.ContentType, contentID, extra string) ([]addon.Subtitle, error) {
	start := time.Now()
	reqURL := addon.ResourceURL(a.BaseURL(), addon.ResourceSubtitles, mediaType, contentID, extra)

	resp, err := f.transport.Get(ctx, transport.Request{
		URL:     reqURL,
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: f.timeout,
		MaxBody: maxResponseBody,
	})
	if err != nil {
		metrics.ObserveAddonRequest(string(addon.ResourceSubtitles), outcomeOf(ctx), time.Since(start))
		return nil, err
	}
	if !resp.IsSuccess() {
		metrics.ObserveAddonRequest(string(addon.ResourceSubtitles), metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("%s answered %d", a.Name, resp.StatusCode)
	}

	body := &addon.GetSubtitlesResponse{}
	if err := json.Unmarshal(resp.Body, body); err != nil {
		metrics.ObserveAddonRequest(string(addon.ResourceSubtitles), metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("malformed response from %s: %w", a.Name, err)
	}

	subtitles := []addon.Subtitle{}
	for _, raw := range body.Subtitles {
		item := addon.SubtitleItem{}
		if err := json.Unmarshal(raw, &item); err != nil || item.URL == "" {
			continue
		}

		lang := NormalizeLanguage(item.Lang)
		id := item.ID
		if id == "" {
			id = item.URL
		}
		subtitles = append(subtitles, addon.Subtitle{
			ID:    id,
			URL:   item.URL,
			Lang:  lang,
			Label: Label(lang, item.Label),
		})
	}

	outcome := metrics.OutcomeOK
	if len(subtitles) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveAddonRequest(string(addon.ResourceSubtitles), outcome, time.Since(start))
	return subtitles, nil
}

func outcomeOf(ctx context.Context) string {
	if ctx.Err() != nil {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
