// Package playback turns one chosen stream into a URL a player can fetch, and probes whether
// that URL actually serves media.
package playback

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/metrics"
	"github.com/dbytex91/addonx/internal/torrent"
	"github.com/dbytex91/addonx/internal/transport"
	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultResolveTimeout = 3500 * time.Millisecond
	defaultProbeTimeout   = 3 * time.Second
	defaultVerdictTTL     = 5
	verdictCacheSize      = 1 * 1024 * 1024
	defaultAccept         = "*/*"
)

type Resolver struct {
	transport  transport.Transport
	bridge     *torrent.Bridge
	timeout    time.Duration
	verdicts   *freecache.Cache
	verdictTTL int
}

type Option func(*Resolver)

// WithBridge enables bridging info-hash streams through a torrent helper.
func WithBridge(bridge *torrent.Bridge) Option {
	return func(r *Resolver) {
		r.bridge = bridge
	}
}

// WithTimeout sets the overall deadline of Resolve.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithVerdictTTL sets how many seconds a reachability verdict is reused. Zero disables it.
func WithVerdictTTL(seconds int) Option {
	return func(r *Resolver) {
		r.verdictTTL = seconds
	}
}

func New(tr transport.Transport, opts ...Option) *Resolver {
	r := &Resolver{
		transport:  tr,
		timeout:    defaultResolveTimeout,
		verdicts:   freecache.NewCache(verdictCacheSize),
		verdictTTL: defaultVerdictTTL,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns a copy of stream whose URL can be fetched directly, with every header the
// fetch needs in behaviorHints.proxyHeaders.request. It returns nil when the stream can't be
// played: a magnet link, no link at all, or an unsupported scheme.
func (r *Resolver) Resolve(ctx context.Context, stream addon.StreamSource) *addon.StreamSource {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resolved, err := r.resolve(ctx, stream)
	if err != nil {
		log.Debugf("Stream %q from %s not resolved: %v", stream.Source, stream.AddonName, err)
		metrics.RecordPlaybackResolve("failed")
		return nil
	}
	metrics.RecordPlaybackResolve("resolved")
	return resolved
}

func (r *Resolver) resolve(ctx context.Context, stream addon.StreamSource) (*addon.StreamSource, error) {
	out := stream.Clone()
	raw := strings.TrimSpace(out.URL)

	if raw == "" {
		return r.bridgeInfoHash(ctx, out)
	}
	if IsMagnet(raw) {
		return nil, fmt.Errorf("%w: magnet links are not played directly", addon.ErrPlaybackResolutionFailed)
	}

	link, pipeHeaders := SplitPipeHeaders(raw)
	link = CoerceScheme(link)
	u, err := url.Parse(link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: unsupported link %q", addon.ErrPlaybackResolutionFailed, link)
	}
	out.URL = link

	setRequestHeaders(&out, addon.MergeHeaders(pipeHeaders, stream.RequestHeaders()))
	return &out, nil
}

func (r *Resolver) bridgeInfoHash(ctx context.Context, out addon.StreamSource) (*addon.StreamSource, error) {
	if out.InfoHash == "" {
		return nil, fmt.Errorf("%w: stream has no link", addon.ErrPlaybackResolutionFailed)
	}
	if r.bridge == nil {
		return nil, fmt.Errorf("%w: no torrent helper configured", addon.ErrPlaybackResolutionFailed)
	}

	magnet, err := torrent.NewMagnet(strings.ToLower(out.InfoHash), fileName(out), out.TrackerSources)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", addon.ErrPlaybackResolutionFailed, err)
	}
	link, err := r.bridge.Resolve(ctx, magnet, out.FileIdx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", addon.ErrPlaybackResolutionFailed, err)
	}

	metrics.RecordPlaybackResolve("bridged")
	out.URL = link
	return &out, nil
}

func fileName(s addon.StreamSource) string {
	if s.BehaviorHints != nil {
		return s.BehaviorHints.FileName
	}
	return ""
}

func setRequestHeaders(s *addon.StreamSource, headers map[string]string) {
	if len(headers) == 0 {
		if s.BehaviorHints != nil && s.BehaviorHints.ProxyHeaders != nil {
			s.BehaviorHints.ProxyHeaders.Request = nil
		}
		return
	}
	if s.BehaviorHints == nil {
		s.BehaviorHints = &addon.StreamBehaviorHints{}
	}
	if s.BehaviorHints.ProxyHeaders == nil {
		s.BehaviorHints.ProxyHeaders = &addon.ProxyHeaders{}
	}
	s.BehaviorHints.ProxyHeaders.Request = headers
}

// IsReachable fetches the first two bytes of the stream. 200, 206 and 416 count as reachable
// unless the server answered with an HTML page. Verdicts are reused for a few seconds.
func (r *Resolver) IsReachable(ctx context.Context, stream addon.StreamSource, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	link, headers, ok := probeTarget(stream)
	if !ok {
		return false
	}

	key := []byte(verdictKey(link, headers))
	if r.verdictTTL > 0 {
		if v, err := r.verdicts.Get(key); err == nil && len(v) == 1 {
			reachable := v[0] == 1
			metrics.RecordProbe(reachable, true)
			return reachable
		}
	}

	err := r.probe(ctx, link, headers, timeout)
	reachable := err == nil
	if err != nil {
		log.Debugf("Probe of %s failed: %v", redact(link), err)
	}

	if r.verdictTTL > 0 {
		v := byte(0)
		if reachable {
			v = 1
		}
		if err := r.verdicts.Set(key, []byte{v}, r.verdictTTL); err != nil {
			log.Warnf("Failed to memoize probe verdict: %v", err)
		}
	}
	metrics.RecordProbe(reachable, false)
	return reachable
}

func probeTarget(stream addon.StreamSource) (string, map[string]string, bool) {
	raw := strings.TrimSpace(stream.URL)
	if raw == "" || IsMagnet(raw) {
		return "", nil, false
	}

	link, pipeHeaders := SplitPipeHeaders(raw)
	link = CoerceScheme(link)
	headers := addon.MergeHeaders(pipeHeaders, stream.RequestHeaders())
	if headers == nil {
		headers = map[string]string{}
	}

	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = transport.DefaultUserAgent
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = defaultAccept
	}
	if _, ok := headers["Origin"]; !ok {
		if origin := OriginFromReferer(headers["Referer"]); origin != "" {
			headers["Origin"] = origin
		}
	}
	headers["Range"] = "bytes=0-1"

	return link, headers, true
}

func (r *Resolver) probe(ctx context.Context, link string, headers map[string]string, timeout time.Duration) error {
	resp, err := r.transport.Get(ctx, transport.Request{
		URL:     link,
		Headers: headers,
		Timeout: timeout,
		MaxBody: 2,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", addon.ErrReachabilityCheckFailed, err)
	}

	switch resp.StatusCode {
	case 200, 206, 416:
	default:
		return fmt.Errorf("%w: status %d", addon.ErrReachabilityCheckFailed, resp.StatusCode)
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return fmt.Errorf("%w: server answered with a web page", addon.ErrReachabilityCheckFailed)
	}
	return nil
}

func verdictKey(link string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	b := &strings.Builder{}
	b.WriteString(link)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(headers[k])
	}
	return b.String()
}

// redact drops the query, where signed links keep their tokens.
func redact(link string) string {
	before, _, _ := strings.Cut(link, "?")
	return before
}
