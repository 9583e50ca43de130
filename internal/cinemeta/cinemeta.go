package cinemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/transport"
)

const (
	DefaultBaseURL = "https://v3-cinemeta.strem.io"
	defaultTimeout = 2 * time.Second
)

type CineMeta struct {
	transport transport.Transport
	baseURL   string
	timeout   time.Duration
}

type metaResponse struct {
	Meta struct {
		Name        string `json:"name"`
		Year        string `json:"year"`
		ReleaseInfo string `json:"releaseInfo"`
		IMDBID      string `json:"imdb_id"`
		MovieDBID   any    `json:"moviedb_id"`
	} `json:"meta"`
}

// Meta is the little a VOD lookup needs to know about a title.
type Meta struct {
	Name     string
	IMDBID   string
	TMDBID   string
	FromYear int
	ToYear   int
}

type Option func(*CineMeta)

func WithBaseURL(baseURL string) Option {
	return func(c *CineMeta) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *CineMeta) {
		c.timeout = timeout
	}
}

func New(tr transport.Transport, opts ...Option) *CineMeta {
	c := &CineMeta{
		transport: tr,
		baseURL:   DefaultBaseURL,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CineMeta) GetMovieById(ctx context.Context, id string) (*Meta, error) {
	return c.get(ctx, addon.ContentTypeMovie, id)
}

func (c *CineMeta) GetSeriesById(ctx context.Context, id string) (*Meta, error) {
	return c.get(ctx, addon.ContentTypeSeries, id)
}

func (c *CineMeta) get(ctx context.Context, contentType addon.ContentType, id string) (*Meta, error) {
	resp, err := c.transport.Get(ctx, transport.Request{
		URL:     fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, contentType, url.PathEscape(id)),
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("cinemeta answered %d for %s", resp.StatusCode, id)
	}

	result := metaResponse{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("malformed cinemeta response for %s: %w", id, err)
	}
	if result.Meta.Name == "" {
		return nil, fmt.Errorf("cinemeta has no title for %s", id)
	}

	years := result.Meta.Year
	if years == "" {
		years = result.Meta.ReleaseInfo
	}
	fromYear, toYear := parseYears(years)

	imdbID := result.Meta.IMDBID
	if imdbID == "" {
		imdbID = id
	}

	return &Meta{
		Name:     result.Meta.Name,
		IMDBID:   imdbID,
		TMDBID:   stringify(result.Meta.MovieDBID),
		FromYear: fromYear,
		ToYear:   toYear,
	}, nil
}

// parseYears reads "1999", "2008–2013" and the open-ended "2019–", whose end year is 0.
func parseYears(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	tokens := strings.FieldsFunc(raw, func(r rune) bool { return r == '–' || r == '-' })
	fromYear, toYear := 0, 0
	if len(tokens) > 0 {
		fromYear, _ = strconv.Atoi(strings.TrimSpace(tokens[0]))
		toYear = fromYear
	}
	if strings.HasSuffix(raw, "–") || strings.HasSuffix(raw, "-") {
		toYear = 0
	}
	if len(tokens) > 1 {
		toYear, _ = strconv.Atoi(strings.TrimSpace(tokens[1]))
	}
	return fromYear, toYear
}

func stringify(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
