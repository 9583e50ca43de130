package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cinemeta"
	"github.com/dbytex91/addonx/internal/engine"
	"github.com/dbytex91/addonx/internal/store"
	"github.com/dbytex91/addonx/internal/streams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provider struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/manifest.json":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":         "org.example.streams",
				"name":       "Example",
				"version":    "1.0.0",
				"resources":  []string{"stream"},
				"types":      []string{"movie", "series"},
				"idPrefixes": []string{"tt"},
			})
		case "/stream/movie/tt0133093.json":
			p.calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"streams": []map[string]any{
					{"name": "Example 720p", "title": "The.Matrix.1999.720p.WEB-DL", "url": "https://cdn.example.org/720.mp4"},
					{"name": "Example 1080p", "title": "The.Matrix.1999.1080p.BluRay", "url": "https://cdn.example.org/1080.mp4"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *provider) {
	t.Helper()
	p := newProvider(t)
	e := engine.New(store.NewMemory(), opts...)
	_, err := e.AddAddon(context.Background(), p.server.URL+"/manifest.json", "")
	require.NoError(t, err)
	return e, p
}

func TestResolveMovieRanksAndCaches(t *testing.T) {
	e, p := newEngine(t)
	ctx := context.Background()

	result, err := e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	require.Len(t, result.Streams, 2)
	assert.Equal(t, "https://cdn.example.org/1080.mp4", result.Streams[0].URL)

	_, err = e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	_, err = e.ResolveMovie(ctx, "tt0133093", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestAddonChangeClearsCache(t *testing.T) {
	e, p := newEngine(t)
	ctx := context.Background()

	_, err := e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)

	addons := e.Addons()
	require.Len(t, addons, 2)
	toggled, err := e.ToggleAddon(addons[1].ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsEnabled)

	result, err := e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	assert.Empty(t, result.Streams)
	assert.Equal(t, int32(1), p.calls.Load())

	_, err = e.ToggleAddon(addons[1].ID)
	require.NoError(t, err)
	result, err = e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	assert.Len(t, result.Streams, 2)
	assert.Equal(t, int32(2), p.calls.Load())

	assert.ErrorIs(t, e.RemoveAddon(addons[0].ID), addon.ErrReservedAddon)
	require.NoError(t, e.RemoveAddon(addons[1].ID))
	assert.Len(t, e.Addons(), 1)
}

func TestSetProfile(t *testing.T) {
	e, p := newEngine(t)
	ctx := context.Background()
	assert.Equal(t, streams.DefaultProfile, e.Profile())

	_, err := e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)

	e.SetProfile(streams.DefaultProfile)
	_, err = e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	e.SetProfile("kids")
	assert.Equal(t, "kids", e.Profile())
	_, err = e.ResolveMovie(ctx, "tt0133093", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())

	e.SetProfile("  ")
	assert.Equal(t, streams.DefaultProfile, e.Profile())
}

func TestTorrentHelperURL(t *testing.T) {
	prefs := store.NewMemory()
	e := engine.New(prefs, engine.WithTorrentHelperURL("127.0.0.1:9000"))
	assert.Equal(t, "http://127.0.0.1:9000", e.TorrentHelperURL()[0])

	require.NoError(t, e.SetTorrentHelperURL(" http://nas.local:8090/ "))
	assert.Equal(t, "http://nas.local:8090", e.TorrentHelperURL()[0])

	again := engine.New(prefs, engine.WithTorrentHelperURL("127.0.0.1:9000"))
	assert.Equal(t, "http://nas.local:8090", again.TorrentHelperURL()[0])
}

func TestResolvePassesThroughHeaders(t *testing.T) {
	e := engine.New(store.NewMemory())

	resolved := e.Resolve(context.Background(), addon.StreamSource{URL: "https://cdn.example.org/v.m3u8|Referer=https://example.org/"})
	require.NotNil(t, resolved)
	assert.Equal(t, "https://cdn.example.org/v.m3u8", resolved.URL)
	assert.Equal(t, "https://example.org/", resolved.RequestHeaders()["Referer"])

	assert.Nil(t, e.Resolve(context.Background(), addon.StreamSource{URL: "magnet:?xt=urn:btih:abc"}))
}

type fakeVOD struct {
	delay   time.Duration
	err     error
	movies  atomic.Int32
	episode atomic.Int32
	titles  chan string
}

func (f *fakeVOD) wait(ctx context.Context) error {
	select {
	case <-time.After(f.delay):
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeVOD) FindMovieVodSource(ctx context.Context, title string, year int, imdbID, tmdbID string) (*addon.StreamSource, error) {
	f.movies.Add(1)
	if f.titles != nil {
		f.titles <- title
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &addon.StreamSource{Source: title, URL: "https://vod.example.org/movie/" + imdbID}, nil
}

func (f *fakeVOD) FindEpisodeVodSource(ctx context.Context, title string, season, episode int, imdbID, tmdbID string) (*addon.StreamSource, error) {
	f.episode.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &addon.StreamSource{Source: title, URL: "https://vod.example.org/episode/" + imdbID}, nil
}

func TestFindVOD(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, engine.New(store.NewMemory()).FindVOD(ctx, engine.VODRequest{Title: "Heat"}, false))

	vod := &fakeVOD{}
	e := engine.New(store.NewMemory(), engine.WithVODLookup(vod))

	movie := e.FindVOD(ctx, engine.VODRequest{Title: "Heat", Year: 1995, IMDBID: "tt0113277"}, false)
	require.NotNil(t, movie)
	assert.Equal(t, "https://vod.example.org/movie/tt0113277", movie.URL)

	episode := e.FindVOD(ctx, engine.VODRequest{Title: "Lost", IMDBID: "tt0411008", Season: 1, Episode: 2}, true)
	require.NotNil(t, episode)
	assert.Equal(t, "https://vod.example.org/episode/tt0411008", episode.URL)
	assert.Equal(t, int32(1), vod.movies.Load())
	assert.Equal(t, int32(1), vod.episode.Load())

	failing := engine.New(store.NewMemory(), engine.WithVODLookup(&fakeVOD{err: errors.New("upstream down")}))
	assert.Nil(t, failing.FindVOD(ctx, engine.VODRequest{Title: "Heat"}, false))
}

func TestFindVODBudget(t *testing.T) {
	e := engine.New(store.NewMemory(), engine.WithVODLookup(&fakeVOD{delay: 10 * time.Second}))

	start := time.Now()
	assert.Nil(t, e.FindVOD(context.Background(), engine.VODRequest{Title: "Heat"}, true))
	assert.Less(t, time.Since(start), 2*time.Second)

	start = time.Now()
	assert.Nil(t, e.FindVOD(context.Background(), engine.VODRequest{Title: "Heat"}, false))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 4*time.Second)
}

type fakeMetadata struct{}

func (fakeMetadata) GetMovieById(ctx context.Context, id string) (*cinemeta.Meta, error) {
	return &cinemeta.Meta{Name: "Heat", IMDBID: id, TMDBID: "949", FromYear: 1995, ToYear: 1995}, nil
}

func (fakeMetadata) GetSeriesById(ctx context.Context, id string) (*cinemeta.Meta, error) {
	return nil, errors.New("not a series")
}

func TestFindVODFillsTitle(t *testing.T) {
	vod := &fakeVOD{titles: make(chan string, 1)}
	e := engine.New(store.NewMemory(), engine.WithVODLookup(vod), engine.WithMetadata(fakeMetadata{}))

	source := e.FindVOD(context.Background(), engine.VODRequest{IMDBID: "tt0113277"}, false)
	require.NotNil(t, source)
	assert.Equal(t, "Heat", source.Source)
	assert.Equal(t, "Heat", <-vod.titles)
}
