package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cinemeta"
	"github.com/gofiber/fiber/v2/log"
)

const (
	vodColdTimeout = 2500 * time.Millisecond
	vodWarmTimeout = 1 * time.Second
)

// VODLookup finds a first-party VOD source for a title. Either method may return nil.
type VODLookup interface {
	FindMovieVodSource(ctx context.Context, title string, year int, imdbID, tmdbID string) (*addon.StreamSource, error)
	FindEpisodeVodSource(ctx context.Context, title string, season, episode int, imdbID, tmdbID string) (*addon.StreamSource, error)
}

// VODRequest selects an episode lookup when Season and Episode are both positive.
type VODRequest struct {
	Title   string
	Year    int
	IMDBID  string
	TMDBID  string
	Season  int
	Episode int
}

// MetadataLookup fills in the title and year of a VODRequest that only carries an IMDb id.
type MetadataLookup interface {
	GetMovieById(ctx context.Context, id string) (*cinemeta.Meta, error)
	GetSeriesById(ctx context.Context, id string) (*cinemeta.Meta, error)
}

func (r VODRequest) isEpisode() bool {
	return r.Season > 0 && r.Episode > 0
}

// FindVOD asks the VOD lookup for a fallback source. The lookup gets a shorter budget when the
// addons already returned streams, so it never holds the stream list back for long.
func (e *Engine) FindVOD(ctx context.Context, req VODRequest, haveStreams bool) *addon.StreamSource {
	if e.vod == nil {
		return nil
	}

	timeout := vodColdTimeout
	if haveStreams {
		timeout = vodWarmTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		source *addon.StreamSource
		err    error
	}
	done := make(chan answer, 1)
	go func() {
		var a answer
		req := e.completeVODRequest(ctx, req)
		if req.isEpisode() {
			a.source, a.err = e.vod.FindEpisodeVodSource(ctx, req.Title, req.Season, req.Episode, req.IMDBID, req.TMDBID)
		} else {
			a.source, a.err = e.vod.FindMovieVodSource(ctx, req.Title, req.Year, req.IMDBID, req.TMDBID)
		}
		done <- a
	}()

	select {
	case a := <-done:
		if a.err != nil {
			log.Warnf("VOD lookup for %q failed: %v", req.Title, a.err)
			return nil
		}
		return a.source
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Debugf("VOD lookup for %q gave up after %s", req.Title, timeout)
		}
		return nil
	}
}

func (e *Engine) completeVODRequest(ctx context.Context, req VODRequest) VODRequest {
	if e.metadata == nil || req.Title != "" || req.IMDBID == "" {
		return req
	}

	lookup := e.metadata.GetMovieById
	if req.isEpisode() {
		lookup = e.metadata.GetSeriesById
	}
	meta, err := lookup(ctx, req.IMDBID)
	if err != nil {
		log.Debugf("No metadata for %s: %v", req.IMDBID, err)
		return req
	}

	req.Title = meta.Name
	if req.Year == 0 {
		req.Year = meta.FromYear
	}
	if req.TMDBID == "" {
		req.TMDBID = meta.TMDBID
	}
	return req
}
