package addon

import "encoding/json"

// StreamItem is a stream as published by a provider. Field shapes vary between providers,
// so everything that is not a plain string is kept loose and interpreted by the normalizer.
type StreamItem struct {
	URL         string           `json:"url,omitempty"`
	YoutubeID   string           `json:"ytId,omitempty"`
	InfoHash    string           `json:"infoHash,omitempty"`
	ExternalURL string           `json:"externalUrl,omitempty"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Title       string           `json:"title,omitempty"`
	FileIndex   *int             `json:"fileIdx,omitempty"`
	Headers     map[string]any   `json:"headers,omitempty"`
	Subtitles   []SubtitleItem   `json:"subtitles,omitempty"`
	Sources     []string         `json:"sources,omitempty"`
	Behavior    *StreamItemHints `json:"behaviorHints,omitempty"`
}

type StreamItemHints struct {
	NotWebReady      bool             `json:"notWebReady,omitempty"`
	Cached           *bool            `json:"cached,omitempty"`
	BingeGroup       string           `json:"bingeGroup,omitempty"`
	CountryWhitelist []string         `json:"countryWhitelist,omitempty"`
	Headers          map[string]any   `json:"headers,omitempty"`
	ProxyHeaders     *RawProxyHeaders `json:"proxyHeaders,omitempty"`
	VideoHash        string           `json:"videoHash,omitempty"`
	VideoSize        json.Number      `json:"videoSize,omitempty"`
	FileName         string           `json:"filename,omitempty"`
}

type RawProxyHeaders struct {
	Request  map[string]any `json:"request,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

type SubtitleItem struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Lang  string `json:"lang"`
	Label string `json:"label,omitempty"`
}

// GetStreamsResponse is the body of /stream/{type}/{id}.json. Streams are decoded one by one
// so a single malformed entry does not discard the whole response.
type GetStreamsResponse struct {
	Streams []json.RawMessage `json:"streams"`
}

type GetSubtitlesResponse struct {
	Subtitles []json.RawMessage `json:"subtitles"`
}

// StreamSource is the normalized form of a provider stream.
type StreamSource struct {
	Source         string               `json:"source"`
	AddonName      string               `json:"addonName"`
	AddonID        string               `json:"addonId"`
	Quality        string               `json:"quality"`
	Size           string               `json:"size"`
	SizeBytes      *int64               `json:"sizeBytes,omitempty"`
	URL            string               `json:"url,omitempty"`
	InfoHash       string               `json:"infoHash,omitempty"`
	FileIdx        *int                 `json:"fileIdx,omitempty"`
	BehaviorHints  *StreamBehaviorHints `json:"behaviorHints,omitempty"`
	Subtitles      []Subtitle           `json:"subtitles"`
	TrackerSources []string             `json:"trackerSources"`
}

type StreamBehaviorHints struct {
	NotWebReady      bool          `json:"notWebReady"`
	Cached           *bool         `json:"cached,omitempty"`
	BingeGroup       string        `json:"bingeGroup,omitempty"`
	CountryWhitelist []string      `json:"countryWhitelist,omitempty"`
	ProxyHeaders     *ProxyHeaders `json:"proxyHeaders,omitempty"`
	VideoHash        string        `json:"videoHash,omitempty"`
	VideoSize        int64         `json:"videoSize,omitempty"`
	FileName         string        `json:"filename,omitempty"`
}

type ProxyHeaders struct {
	Request  map[string]string `json:"request,omitempty"`
	Response map[string]string `json:"response,omitempty"`
}

// RequestHeaders returns the headers required to fetch the stream URL, or nil.
func (s *StreamSource) RequestHeaders() map[string]string {
	if s == nil || s.BehaviorHints == nil || s.BehaviorHints.ProxyHeaders == nil {
		return nil
	}
	return s.BehaviorHints.ProxyHeaders.Request
}

// Clone returns a deep copy, so resolvers can enrich a stream without touching cached data.
func (s StreamSource) Clone() StreamSource {
	out := s
	if s.SizeBytes != nil {
		v := *s.SizeBytes
		out.SizeBytes = &v
	}
	if s.FileIdx != nil {
		v := *s.FileIdx
		out.FileIdx = &v
	}
	if s.BehaviorHints != nil {
		hints := *s.BehaviorHints
		if s.BehaviorHints.Cached != nil {
			v := *s.BehaviorHints.Cached
			hints.Cached = &v
		}
		hints.CountryWhitelist = append([]string(nil), s.BehaviorHints.CountryWhitelist...)
		if s.BehaviorHints.ProxyHeaders != nil {
			hints.ProxyHeaders = &ProxyHeaders{
				Request:  cloneHeaders(s.BehaviorHints.ProxyHeaders.Request),
				Response: cloneHeaders(s.BehaviorHints.ProxyHeaders.Response),
			}
		}
		out.BehaviorHints = &hints
	}
	out.Subtitles = append([]Subtitle{}, s.Subtitles...)
	out.TrackerSources = append([]string{}, s.TrackerSources...)
	return out
}

func cloneHeaders(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// StreamResult is the outcome of one fan-out. Zero streams is a valid result.
type StreamResult struct {
	Streams   []StreamSource `json:"streams"`
	Subtitles []Subtitle     `json:"subtitles"`
}

type Subtitle struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Lang       string `json:"lang"`
	Label      string `json:"label"`
	IsEmbedded bool   `json:"isEmbedded"`
	GroupIndex *int   `json:"groupIndex,omitempty"`
	TrackIndex *int   `json:"trackIndex,omitempty"`
}
