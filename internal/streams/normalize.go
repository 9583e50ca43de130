package streams

import (
	"encoding/json"
	"strings"

	"github.com/dbytex91/addonx/internal/addon"
	"github.com/dbytex91/addonx/internal/cache"
	"github.com/dbytex91/addonx/internal/metrics"
	"github.com/dbytex91/addonx/internal/titleparser"
	"github.com/dbytex91/addonx/internal/torrent"
	"github.com/gofiber/fiber/v2/log"
)

const (
	verdictKept       = "kept"
	verdictMalformed  = "malformed"
	verdictUnplayable = "unplayable"
	verdictDenylisted = "denylisted"
)

// Normalize decodes every raw provider stream on its own and keeps the playable ones.
func Normalize(a addon.Addon, raws []json.RawMessage) []addon.StreamSource {
	out := make([]addon.StreamSource, 0, len(raws))
	for _, raw := range raws {
		item := &addon.StreamItem{}
		if err := json.Unmarshal(raw, item); err != nil {
			log.Debugf("Skipping malformed stream from %s: %v", a.Name, err)
			metrics.RecordNormalized(verdictMalformed)
			continue
		}

		source, verdict := NormalizeItem(a, item)
		metrics.RecordNormalized(verdict)
		if verdict == verdictKept {
			out = append(out, source)
		}
	}
	return out
}

// NormalizeItem maps one provider stream. The verdict tells why a stream was dropped.
func NormalizeItem(a addon.Addon, item *addon.StreamItem) (addon.StreamSource, string) {
	link := strings.TrimSpace(item.URL)
	infoHash := strings.ToLower(strings.TrimSpace(item.InfoHash))
	if !torrent.IsInfoHash(infoHash) {
		infoHash = ""
	}
	trackers := append([]string{}, item.Sources...)

	if link != "" && strings.HasPrefix(strings.ToLower(link), "magnet:") {
		if magnet, err := torrent.ParseMagnetURI(link); err == nil {
			if infoHash == "" {
				infoHash = magnet.InfoHashStr()
			}
			for _, tier := range magnet.Trackers {
				for _, tr := range tier {
					trackers = append(trackers, "tracker:"+tr)
				}
			}
		}
		// magnets are carried as info hashes so playback can bridge them
		link = ""
	}

	if link != "" && IsDenylisted(link) {
		if infoHash == "" {
			return addon.StreamSource{}, verdictDenylisted
		}
		link = ""
	}
	if link == "" && infoHash == "" {
		return addon.StreamSource{}, verdictUnplayable
	}

	source := addon.StreamSource{
		Source:         displayName(a, item),
		AddonName:      a.Name,
		AddonID:        a.ID,
		URL:            link,
		InfoHash:       infoHash,
		Subtitles:      embeddedSubtitles(item.Subtitles),
		TrackerSources: trackers,
	}
	if item.FileIndex != nil {
		idx := *item.FileIndex
		source.FileIdx = &idx
	}
	source.BehaviorHints = behaviorHints(item)
	source.Quality = quality(item, source.BehaviorHints)
	source.Size = size(item)
	if n, ok := addon.ParseSize(source.Size); ok {
		source.SizeBytes = &n
	}

	return source, verdictKept
}

func displayName(a addon.Addon, item *addon.StreamItem) string {
	for _, text := range []string{item.Title, item.Description, item.Name} {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return a.Name
}

// quality keeps the provider's own wording and appends what the release name reveals when
// the provider did not state a resolution.
func quality(item *addon.StreamItem, hints *addon.StreamBehaviorHints) string {
	provided := strings.Join(strings.Fields(item.Name), " ")
	if titleparser.Parse(provided).Resolution > 0 {
		return provided
	}

	text := item.Title + "\n" + item.Description
	if hints != nil && hints.FileName != "" {
		text += "\n" + hints.FileName
	}
	label := titleparser.Parse(text).Label()
	return strings.TrimSpace(provided + " " + label)
}

func size(item *addon.StreamItem) string {
	for _, text := range []string{item.Title, item.Description, item.Name} {
		if found := addon.FindSize(text); found != "" {
			return found
		}
	}
	if item.Behavior != nil {
		if n, err := item.Behavior.VideoSize.Int64(); err == nil && n > 0 {
			return addon.FormatSize(uint64(n))
		}
	}
	return ""
}

func behaviorHints(item *addon.StreamItem) *addon.StreamBehaviorHints {
	headers := ExtractHeaders(item)
	raw := item.Behavior
	if raw == nil && headers == nil {
		return nil
	}

	hints := &addon.StreamBehaviorHints{}
	if raw != nil {
		hints.NotWebReady = raw.NotWebReady
		hints.Cached = raw.Cached
		hints.BingeGroup = raw.BingeGroup
		hints.CountryWhitelist = raw.CountryWhitelist
		hints.VideoHash = raw.VideoHash
		hints.FileName = raw.FileName
		if n, err := raw.VideoSize.Int64(); err == nil && n > 0 {
			hints.VideoSize = n
		}
	}

	var response map[string]string
	if raw != nil && raw.ProxyHeaders != nil {
		response = addon.MergeHeaders(addon.StringHeaders(raw.ProxyHeaders.Response))
	}
	if headers != nil || response != nil {
		hints.ProxyHeaders = &addon.ProxyHeaders{Request: headers, Response: response}
	}
	return hints
}

func embeddedSubtitles(items []addon.SubtitleItem) []addon.Subtitle {
	out := []addon.Subtitle{}
	for _, item := range items {
		if !cache.IsHTTP(item.URL) {
			continue
		}
		out = append(out, addon.Subtitle{
			ID:         item.ID,
			URL:        item.URL,
			Lang:       item.Lang,
			Label:      item.Label,
			IsEmbedded: true,
		})
	}
	return out
}
