package addon_test

import (
	"encoding/json"
	"testing"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHeadersLaterWins(t *testing.T) {
	got := addon.MergeHeaders(map[string]string{"A": "1"}, map[string]string{"A": "2"})
	assert.Equal(t, map[string]string{"A": "2"}, got)

	got = addon.MergeHeaders(map[string]string{"referer": "https://a.example"}, map[string]string{"Referer": "https://b.example"})
	assert.Equal(t, map[string]string{"Referer": "https://b.example"}, got)

	assert.Nil(t, addon.MergeHeaders(nil, map[string]string{}))
}

func TestSanitizeHeadersCaseCollisionIsStable(t *testing.T) {
	in := map[string]string{
		"referer": "https://lower.example/",
		"Referer": "https://upper.example/",
		"REFERER": "https://shout.example/",
		"Origin":  "https://example.org",
	}
	for i := 0; i < 50; i++ {
		got := addon.SanitizeHeaders(in)
		require.Equal(t, map[string]string{
			"Referer": "https://lower.example/",
			"Origin":  "https://example.org",
		}, got)
	}
}

func TestMergeHeadersDropsInjection(t *testing.T) {
	got := addon.MergeHeaders(
		map[string]string{
			" User-Agent ": " VLC/3.0 ",
			"X-Evil":       "a\r\nSet-Cookie: x=y",
			"X-Bad\nKey":   "v",
			"":             "orphan",
			"X-Empty":      "   ",
			"Cookie":       "session=1",
		},
		map[string]string{"Cookie": "session=2\n"},
	)

	assert.Equal(t, map[string]string{"User-Agent": "VLC/3.0", "Cookie": "session=2"}, got)
	for k, v := range got {
		assert.NotContains(t, k, "\r")
		assert.NotContains(t, k, "\n")
		assert.NotContains(t, v, "\r")
		assert.NotContains(t, v, "\n")
	}
}

func TestStringHeaders(t *testing.T) {
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(`{"Referer":"https://x.example","X-Count":3,"Accept":["video/*","*/*"],"X-Obj":{"a":1}}`), &raw))

	assert.Equal(t, map[string]string{
		"Referer": "https://x.example",
		"X-Count": "3",
		"Accept":  "video/*, */*",
	}, addon.StringHeaders(raw))
	assert.Nil(t, addon.StringHeaders(nil))
}
