package subtitles

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// maxLabelDistance is the edit distance under which a provider label is taken as the
// language name spelled differently.
const maxLabelDistance = 5

var nonWordCharacter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// languageCodes maps ISO 639-2 (bibliographic and terminology) codes and the free-form
// names providers use to ISO 639-1.
var languageCodes = map[string]string{
	"eng": "en", "english": "en",
	"fre": "fr", "fra": "fr", "french": "fr",
	"ger": "de", "deu": "de", "german": "de",
	"spa": "es", "spanish": "es", "spn": "es", "spanish (latin america)": "es", "lat": "es",
	"ita": "it", "italian": "it",
	"por": "pt", "pob": "pt", "pt-br": "pt", "pt_br": "pt", "portuguese": "pt", "brazilian": "pt",
	"portuguese (brazil)": "pt",
	"rus":                 "ru", "russian": "ru",
	"jpn": "ja", "japanese": "ja", "jp": "ja",
	"kor": "ko", "korean": "ko",
	"chi": "zh", "zho": "zh", "chinese": "zh", "zh-cn": "zh", "zh-tw": "zh", "cn": "zh",
	"ara": "ar", "arabic": "ar",
	"hin": "hi", "hindi": "hi",
	"tur": "tr", "turkish": "tr",
	"pol": "pl", "polish": "pl",
	"dut": "nl", "nld": "nl", "dutch": "nl",
	"swe": "sv", "swedish": "sv",
	"nor": "no", "nob": "no", "norwegian": "no",
	"dan": "da", "danish": "da",
	"fin": "fi", "finnish": "fi",
	"gre": "el", "ell": "el", "greek": "el",
	"heb": "he", "hebrew": "he",
	"hun": "hu", "hungarian": "hu",
	"cze": "cs", "ces": "cs", "czech": "cs",
	"slo": "sk", "slk": "sk", "slovak": "sk",
	"rum": "ro", "ron": "ro", "romanian": "ro",
	"bul": "bg", "bulgarian": "bg",
	"hrv": "hr", "scr": "hr", "croatian": "hr",
	"srp": "sr", "scc": "sr", "serbian": "sr",
	"slv": "sl", "slovenian": "sl",
	"ukr": "uk", "ukrainian": "uk",
	"vie": "vi", "vietnamese": "vi",
	"tha": "th", "thai": "th",
	"ind": "id", "indonesian": "id",
	"may": "ms", "msa": "ms", "malay": "ms",
	"per": "fa", "fas": "fa", "persian": "fa", "farsi": "fa",
	"est": "et", "estonian": "et",
	"lav": "lv", "latvian": "lv",
	"lit": "lt", "lithuanian": "lt",
	"ice": "is", "isl": "is", "icelandic": "is",
	"cat": "ca", "catalan": "ca",
	"baq": "eu", "eus": "eu", "basque": "eu",
	"glg": "gl", "galician": "gl",
	"ben": "bn", "bengali": "bn",
	"tam": "ta", "tamil": "ta",
	"tel": "te", "telugu": "te",
	"mal": "ml", "malayalam": "ml",
}

// NormalizeLanguage turns a provider language code into a two letter code when it can. Codes
// it can't map are returned lowercased.
func NormalizeLanguage(code string) string {
	lower := strings.ToLower(strings.TrimSpace(code))
	if lower == "" {
		return ""
	}
	if mapped, ok := languageCodes[lower]; ok {
		return mapped
	}
	if len(lower) == 2 {
		return lower
	}

	if tag, err := language.Parse(lower); err == nil {
		if base, confidence := tag.Base(); confidence != language.No && len(base.String()) == 2 {
			return base.String()
		}
	}
	return lower
}

// LanguageName returns the English name of a normalized code, or the code in upper case.
func LanguageName(code string) string {
	if code == "" {
		return "Unknown"
	}
	tag, err := language.Parse(code)
	if err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(code)
}

// Label names a subtitle track after its language and appends the provider label when it
// says something the language name does not.
func Label(code string, providerLabel string) string {
	name := LanguageName(code)
	extra := strings.TrimSpace(providerLabel)
	if extra == "" || isBareURL(extra) || restatesLanguage(code, name, extra) {
		return name
	}
	return name + " - " + extra
}

func restatesLanguage(code, name, label string) bool {
	if NormalizeLanguage(label) == code {
		return true
	}
	return checkLabelSimilarity(name, label) < maxLabelDistance
}

func checkLabelSimilarity(left, right string) int {
	left = nonWordCharacter.ReplaceAllString(left, "")
	right = nonWordCharacter.ReplaceAllString(right, "")
	levenshtein := &metrics.Levenshtein{
		CaseSensitive: false,
		InsertCost:    2,
		DeleteCost:    3,
		ReplaceCost:   3,
	}
	return levenshtein.Distance(left, right)
}

func isBareURL(s string) bool {
	lower := strings.ToLower(s)
	return !strings.ContainsAny(s, " \t") &&
		(strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "www."))
}
