package streams

import (
	"cmp"
	"slices"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/titleparser"
)

// Rank returns the streams ordered best first. The order depends only on the streams
// themselves, so the same set always ranks the same way whatever order addons answered in.
func Rank(streams []addon.StreamSource) []addon.StreamSource {
	type scored struct {
		stream addon.StreamSource
		score  float64
		size   int64
	}

	items := make([]scored, 0, len(streams))
	for _, s := range streams {
		var size int64
		if s.SizeBytes != nil {
			size = *s.SizeBytes
		}
		items = append(items, scored{stream: s, score: qualityScore(s), size: size})
	}

	slices.SortStableFunc(items, func(a, b scored) int {
		return cmp.Or(
			cmp.Compare(b.score, a.score),
			cmp.Compare(b.size, a.size),
			cmp.Compare(a.stream.AddonID, b.stream.AddonID),
			cmp.Compare(a.stream.Source, b.stream.Source),
			cmp.Compare(a.stream.URL, b.stream.URL),
			cmp.Compare(a.stream.InfoHash, b.stream.InfoHash),
		)
	})

	out := make([]addon.StreamSource, 0, len(items))
	for _, item := range items {
		out = append(out, item.stream)
	}
	return out
}

// qualityScore weighs resolution (50%), source quality (35%) and how plausible the size is
// for that resolution (15%). Direct links get a small bonus over torrents, which need a helper.
func qualityScore(s addon.StreamSource) float64 {
	release := titleparser.Parse(s.Quality + "\n" + s.Source)

	resolutionScore := min(float64(release.Resolution)/21.6, 100)
	sourceScore := float64(getQualityScore(release.Quality)) * 10

	sizeScore := 0.0
	if s.SizeBytes != nil {
		sizeScore = sizeFitness(release.Resolution, float64(*s.SizeBytes)/(1024*1024*1024))
	}

	score := resolutionScore*0.5 + sourceScore*0.35 + sizeScore*0.15
	if s.URL != "" {
		score += 1
	}
	if s.BehaviorHints != nil && s.BehaviorHints.Cached != nil && *s.BehaviorHints.Cached {
		score += 1
	}
	return score
}

// sizeFitness scores a file size in GiB against the usual size range of its resolution.
func sizeFitness(resolution int, sizeGB float64) float64 {
	type band struct{ low, high float64 }
	var bands [3]band
	switch {
	case resolution >= 2160:
		bands = [3]band{{15, 30}, {10, 40}, {5, 50}}
	case resolution >= 1080:
		bands = [3]band{{4, 15}, {2, 20}, {1, 25}}
	case resolution >= 720:
		bands = [3]band{{1, 8}, {0.5, 12}, {0.3, 15}}
	default:
		bands = [3]band{{0.5, 4}, {0.2, 6}, {0.1, 8}}
	}

	for i, b := range bands {
		if sizeGB >= b.low && sizeGB <= b.high {
			return 100 - float64(i)*20
		}
	}
	return 20
}

// getQualityScore returns a score for quality preference (higher = better)
func getQualityScore(quality string) int {
	switch quality {
	case "bdremux", "brremux":
		return 10
	case "web-dl", "webrip":
		return 9
	case "bluray":
		return 8
	case "hdrip", "brrip", "bdrip":
		return 7
	case "dvdrip":
		return 6
	case "dvd":
		return 5
	case "tvrip", "hdtv":
		return 4
	case "cam", "camrip", "telesync", "tsrip", "tc", "dvdscr", "r5":
		return 1
	default:
		return 3
	}
}
