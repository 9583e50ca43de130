package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/api"
	"github.com/dbytex91/addonx/internal/engine"
	"github.com/dbytex91/addonx/internal/registry"
	"github.com/dbytex91/addonx/internal/store"
)

func providerServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/manifest.json":
			_, _ = w.Write([]byte(`{"id":"org.example","name":"Example","version":"2.0.0","resources":["stream"],"types":["movie","series"],"idPrefixes":["tt"]}`))
		case "/stream/movie/tt0133093.json":
			_, _ = w.Write([]byte(`{"streams":[{"name":"Example 1080p","url":"https://cdn.example.org/m.mp4"}]}`))
		case "/stream/series/tt0903747:1:2.json":
			_, _ = w.Write([]byte(`{"streams":[{"name":"Example 720p","infoHash":"C9E15763F722F23E98A29DECDFAE341B98D53056"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	api.New(engine.New(store.NewMemory())).Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func TestAddonLifecycle(t *testing.T) {
	server := providerServer(t)
	app := newApp(t)

	resp, body := do(t, app, http.MethodPost, "/addons", map[string]string{"url": server.URL + "/manifest.json"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	installed := addon.Addon{}
	require.NoError(t, json.Unmarshal(body, &installed))
	assert.Equal(t, "Example", installed.Name)

	resp, body = do(t, app, http.MethodGet, "/addons", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	addons := []addon.Addon{}
	require.NoError(t, json.Unmarshal(body, &addons))
	require.Len(t, addons, 2)
	assert.Equal(t, registry.BuiltinSubtitlesID, addons[0].ID)

	resp, body = do(t, app, http.MethodPost, "/addons/"+installed.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := addon.Addon{}
	require.NoError(t, json.Unmarshal(body, &toggled))
	assert.False(t, toggled.IsEnabled)

	resp, _ = do(t, app, http.MethodDelete, "/addons/"+registry.BuiltinSubtitlesID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, app, http.MethodDelete, "/addons/"+installed.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, app, http.MethodDelete, "/addons/"+installed.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddAddonErrors(t *testing.T) {
	server := providerServer(t)
	app := newApp(t)

	resp, _ := do(t, app, http.MethodPost, "/addons", map[string]string{"url": "ftp://nowhere"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/addons", map[string]string{"url": server.URL + "/missing/manifest.json"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestStreams(t *testing.T) {
	server := providerServer(t)
	app := newApp(t)
	resp, _ := do(t, app, http.MethodPost, "/addons", map[string]string{"url": server.URL + "/manifest.json"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, app, http.MethodGet, "/streams/movie/tt0133093", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := addon.StreamResult{}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Streams, 1)
	assert.Equal(t, "https://cdn.example.org/m.mp4", result.Streams[0].URL)

	resp, body = do(t, app, http.MethodGet, "/streams/series/tt0903747/1/2?refresh=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = addon.StreamResult{}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Streams, 1)
	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", result.Streams[0].InfoHash)

	resp, _ = do(t, app, http.MethodGet, "/streams/series/tt0903747/one/2", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolve(t *testing.T) {
	app := newApp(t)

	resp, body := do(t, app, http.MethodPost, "/resolve", addon.StreamSource{URL: "//cdn.example.org/v.mp4|User-Agent=Player"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolved := addon.StreamSource{}
	require.NoError(t, json.Unmarshal(body, &resolved))
	assert.Equal(t, "https://cdn.example.org/v.mp4", resolved.URL)
	assert.Equal(t, "Player", resolved.RequestHeaders()["User-Agent"])

	resp, _ = do(t, app, http.MethodPost, "/resolve", addon.StreamSource{URL: "rtmp://live.example.org/x"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestProfileAndTorrentHelper(t *testing.T) {
	app := newApp(t)

	resp, body := do(t, app, http.MethodPut, "/profile", map[string]string{"profile": "kids"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"profile":"kids"}`, string(body))

	resp, body = do(t, app, http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"profile":"kids"}`, string(body))

	resp, body = do(t, app, http.MethodPut, "/torrent-helper", map[string]string{"url": "nas.local:8090"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	candidates := struct {
		Candidates []string `json:"candidates"`
	}{}
	require.NoError(t, json.Unmarshal(body, &candidates))
	assert.Equal(t, "http://nas.local:8090", candidates.Candidates[0])

	resp, _ = do(t, app, http.MethodPut, "/torrent-helper", map[string]string{"url": "http://bad host"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVODWithoutLookup(t *testing.T) {
	app := newApp(t)

	resp, _ := do(t, app, http.MethodPost, "/vod", map[string]any{"title": "Heat", "year": 1995})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIndexAndMetrics(t *testing.T) {
	app := newApp(t)

	resp, body := do(t, app, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Installed addons")

	resp, _ = do(t, app, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
