// Package titleparser extracts release attributes from the free-text name and title lines
// providers attach to a stream.
package titleparser

import (
	"regexp"
	"strconv"
	"strings"
)

var parsers = []func(string, *Release){
	parseResolution(`(?i)\b(2160|1440|1080|720|576|480|360)[pi]\b`),
	matchAndSetResolution(`(?i)\b(?:4k|uhd)\b`, 2160),
	matchAndSetResolution(`(?i)\bfhd\b`, 1080),
	matchAndSetQuality(`(?i)\b(?:HD-?)?CAM(?:rip)?\b`, "cam"),
	matchAndSetQuality(`(?i)\b(?:HD-?)?T(?:ELE)?S(?:YNC)?\b`, "telesync"),
	matchAndSetQuality(`(?i)\bTS-?Rip\b`, "telesync"),
	matchAndSetQuality(`(?i)\bBlu-?ray(?:[\s\.]|.+\b)Remux\b`, "bdremux"),
	matchAndSetQuality(`(?i)\b(?:BD|BR)-?REMUX\b`, "bdremux"),
	matchAndSetQuality(`(?i)\bREMUX\b`, "bdremux"),
	matchAndSetQuality(`(?i)\bWEB-?DL\b`, "web-dl"),
	matchAndSetQuality(`(?i)\bWEB-?Rip\b`, "webrip"),
	matchAndSetQuality(`(?i)\bBlu-?ray\b`, "bluray"),
	parseQuality(`(?i)\bHD-?Rip\b`),
	parseQuality(`(?i)\bBRRip\b`),
	parseQuality(`(?i)\bBDRip\b`),
	parseQuality(`(?i)\bDVDRip\b`),
	parseQuality(`(?i)\bDVDscr\b`),
	matchAndSetQuality(`(?i)\bDVD(?:R[0-9])?\b`, "dvd"),
	parseQuality(`(?i)\b(?:HD-?)?TVRip\b`),
	parseQuality(`(?i)\bHDTV\b`),
	parseQuality(`\bTC\b`),
	parseQuality(`(?i)\bR5\b`),
	matchAndSetHDR(`(?i)\b(?:DV|DoVi|Dolby[\s\.]?Vision)\b`, "dv"),
	matchAndSetHDR(`(?i)\bHDR10(?:\+|Plus)`, "hdr10+"),
	matchAndSetHDR(`(?i)\bHDR(?:10)?\b`, "hdr"),
	parseCodec(`(?i)\b(?:[xh][-. ]?26[45]|avc|hevc|av1|xvid|divx|mpeg2)\b`),
	parseAudio(`\b(?:FLAC|Atmos|DTS(?:-HD)?|TrueHD|MP3)\b`),
	matchAndSetAudio(`(?i)\b(?:E-?AC-?3|DDP|DD\+)(?:[. ]?5[. ]1)?`, "eac3"),
	matchAndSetAudio(`(?i)\bAC-?3(?:\.5\.1)?`, "ac3"),
	matchAndSetAudio(`(?i)\bDD5[. ]?1`, "dd5.1"),
	matchAndSetAudio(`(?i)\bAAC(?:[. ]?2[. ]0)?`, "aac"),
	parseContainer(`(?im)\b(MKV|AVI|MP4|M2TS)$`),
	parse3D(`(?i)\b3D\b`),
}

// Release is what could be recognized in a release name. Zero values mean unknown.
type Release struct {
	Resolution int
	Quality    string
	HDR        string
	Codec      string
	Audio      string
	Container  string
	ThreeD     bool
}

// Parse runs every recognizer over text. When a pattern occurs more than once the last
// occurrence wins, which favors file names over leading marketing lines.
func Parse(text string) Release {
	r := Release{}
	for _, parser := range parsers {
		parser(text, &r)
	}
	return r
}

// ResolutionLabel renders the resolution the way providers usually print it.
func (r Release) ResolutionLabel() string {
	switch {
	case r.Resolution <= 0:
		return ""
	case r.Resolution >= 2160:
		return "4K"
	default:
		return strconv.Itoa(r.Resolution) + "p"
	}
}

// Label joins the recognized attributes into a short quality string such as "4K HDR WEB-DL".
func (r Release) Label() string {
	parts := []string{}
	if res := r.ResolutionLabel(); res != "" {
		parts = append(parts, res)
	}
	if r.HDR != "" {
		parts = append(parts, strings.ToUpper(r.HDR))
	}
	if r.ThreeD {
		parts = append(parts, "3D")
	}
	if r.Quality != "" {
		parts = append(parts, strings.ToUpper(r.Quality))
	}
	return strings.Join(parts, " ")
}

func lastMatch(title string, regex *regexp.Regexp) ([]int, bool) {
	matches := regex.FindAllStringSubmatchIndex(title, -1)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[len(matches)-1], true
}

func findValue(value *string, title string, regex *regexp.Regexp) {
	if *value != "" {
		// don't overwrite the existing value
		return
	}
	if loc, ok := lastMatch(title, regex); ok {
		*value = strings.ToLower(title[loc[0]:loc[1]])
	}
}

func findAndSet(value *string, title string, regex *regexp.Regexp, target string) {
	if *value != "" {
		return
	}
	if _, ok := lastMatch(title, regex); ok {
		*value = target
	}
}

func parseResolution(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		if r.Resolution > 0 {
			return
		}
		if loc, ok := lastMatch(title, compiled); ok && len(loc) > 3 {
			r.Resolution, _ = strconv.Atoi(title[loc[2]:loc[3]])
		}
	}
}

func matchAndSetResolution(pattern string, value int) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		if r.Resolution > 0 {
			return
		}
		if compiled.MatchString(title) {
			r.Resolution = value
		}
	}
}

func parseQuality(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findValue(&r.Quality, title, compiled)
	}
}

func matchAndSetQuality(pattern string, value string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findAndSet(&r.Quality, title, compiled, value)
	}
}

func matchAndSetHDR(pattern string, value string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findAndSet(&r.HDR, title, compiled, value)
	}
}

func parseCodec(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findValue(&r.Codec, title, compiled)
		r.Codec = strings.NewReplacer(".", "", "-", "", " ", "").Replace(r.Codec)
	}
}

func parseAudio(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findValue(&r.Audio, title, compiled)
	}
}

func matchAndSetAudio(pattern string, value string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findAndSet(&r.Audio, title, compiled, value)
	}
}

func parseContainer(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		findValue(&r.Container, strings.TrimSpace(title), compiled)
		r.Container = strings.TrimPrefix(r.Container, ".")
	}
}

func parse3D(pattern string) func(string, *Release) {
	compiled := regexp.MustCompile(pattern)
	return func(title string, r *Release) {
		if !r.ThreeD {
			r.ThreeD = compiled.MatchString(title)
		}
	}
}
