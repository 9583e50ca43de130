package streams

import (
	"context"
	"strconv"
	"strings"
)

// AnimeHints describe an episode that may be known to anime addons under another id.
type AnimeHints struct {
	IsAnime bool
	TMDBID  string
	TVDBID  string
	Title   string
}

type AnimeQuery struct {
	TMDBID  string
	TVDBID  string
	Title   string
	IMDBID  string
	Season  int
	Episode int
}

// AnimeMapper resolves an episode to the id anime addons use, e.g. "kitsu:1376:5". An empty
// id means there is no mapping.
type AnimeMapper interface {
	ResolveAnimeEpisodeQuery(ctx context.Context, query AnimeQuery) (string, error)
}

// AnimeMapperFunc adapts a function to AnimeMapper.
type AnimeMapperFunc func(ctx context.Context, query AnimeQuery) (string, error)

func (f AnimeMapperFunc) ResolveAnimeEpisodeQuery(ctx context.Context, query AnimeQuery) (string, error) {
	return f(ctx, query)
}

func (q AnimeQuery) key() []byte {
	return []byte(strings.Join([]string{
		"anime", q.IMDBID, q.TMDBID, q.TVDBID, strings.ToLower(q.Title),
		strconv.Itoa(q.Season), strconv.Itoa(q.Episode),
	}, "|"))
}
