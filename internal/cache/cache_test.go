package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func stable(url string) addon.StreamSource {
	return addon.StreamSource{Source: "1080p", AddonID: "a", URL: url}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "default|movie|tt0111161||", cache.Key("default", addon.ContentTypeMovie, "tt0111161", 0, 0))
	assert.Equal(t, "kids|series|tt0903747|1|2", cache.Key("kids", addon.ContentTypeSeries, "tt0903747", 1, 2))
}

func TestRoundTripWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := cache.New(cache.WithClock(clock.Now))

	result := addon.StreamResult{Streams: []addon.StreamSource{stable("https://cdn.example.com/a.mp4")}}
	c.Put("k", result)

	clock.Advance(29 * time.Second)
	entry, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, result, entry.Result)
	assert.Equal(t, cache.StableTTL, entry.TTL)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPutSupersedes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := cache.New(cache.WithClock(clock.Now))

	c.Put("k", addon.StreamResult{})
	clock.Advance(100 * time.Second)
	c.Put("k", addon.StreamResult{Streams: []addon.StreamSource{stable("https://cdn.example.com/b.mp4")}})

	entry, ok := c.Get("k")
	require.True(t, ok)
	assert.Len(t, entry.Result.Streams, 1)
	assert.Equal(t, clock.Now(), entry.CreatedAt)
}

func TestClear(t *testing.T) {
	c := cache.New()
	c.Put("a", addon.StreamResult{})
	c.Put("b", addon.StreamResult{})
	require.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestPutIfGenerationDropsWritesAcrossClear(t *testing.T) {
	c := cache.New()
	result := addon.StreamResult{Streams: []addon.StreamSource{stable("https://cdn.example.com/a.mp4")}}

	gen := c.Generation()
	_, ok := c.PutIfGeneration("a", gen, result)
	require.True(t, ok)
	require.Equal(t, 1, c.Len())

	started := c.Generation()
	c.Clear()
	assert.NotEqual(t, started, c.Generation())

	_, ok = c.PutIfGeneration("a", started, result)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	_, ok = c.PutIfGeneration("a", c.Generation(), result)
	assert.True(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestTTL(t *testing.T) {
	magnet := addon.StreamSource{InfoHash: "c9e15763f722f23e98a29decdfae341b98d53056"}
	signed := stable("https://cdn.example.com/v.mp4?Expires=1700000000&Signature=abc")
	notWebReady := stable("https://cdn.example.com/v.mkv")
	notWebReady.BehaviorHints = &addon.StreamBehaviorHints{NotWebReady: true}
	proxied := stable("https://cdn.example.com/v.mkv")
	proxied.BehaviorHints = &addon.StreamBehaviorHints{
		ProxyHeaders: &addon.ProxyHeaders{Request: map[string]string{"Referer": "https://example.com"}},
	}

	tests := []struct {
		name    string
		streams []addon.StreamSource
		want    time.Duration
	}{
		{name: "empty", want: cache.EmptyTTL},
		{name: "p2p only", streams: []addon.StreamSource{magnet, magnet}, want: cache.P2PTTL},
		{name: "stable http", streams: []addon.StreamSource{stable("https://cdn.example.com/a.mp4")}, want: cache.StableTTL},
		{name: "stable and p2p", streams: []addon.StreamSource{magnet, stable("http://lan.local/a.mkv")}, want: cache.StableTTL},
		{name: "signed query", streams: []addon.StreamSource{signed}, want: cache.EphemeralTTL},
		{name: "not web ready", streams: []addon.StreamSource{notWebReady}, want: cache.EphemeralTTL},
		{name: "proxy headers", streams: []addon.StreamSource{proxied}, want: cache.EphemeralTTL},
		{name: "mixed picks shortest", streams: []addon.StreamSource{magnet, stable("https://cdn.example.com/a.mp4"), signed}, want: cache.EphemeralTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := addon.StreamResult{Streams: tt.streams}
			assert.Equal(t, tt.want, cache.TTL(result))

			reversed := addon.StreamResult{}
			for i := len(tt.streams) - 1; i >= 0; i-- {
				reversed.Streams = append(reversed.Streams, tt.streams[i])
			}
			assert.Equal(t, tt.want, cache.TTL(reversed))
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := cache.New()
	wg := &sync.WaitGroup{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("k", addon.StreamResult{})
				c.Get("k")
				if j%10 == 0 {
					c.Clear()
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 1)
}
