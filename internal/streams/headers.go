package streams

import "github.com/dbytex91/addonx/internal/addon"

// headerExtractor reads request headers from one of the places providers put them.
type headerExtractor func(item *addon.StreamItem) map[string]string

// headerExtractors run in precedence order; later entries override earlier ones.
var headerExtractors = []headerExtractor{
	func(item *addon.StreamItem) map[string]string {
		return addon.StringHeaders(item.Headers)
	},
	func(item *addon.StreamItem) map[string]string {
		if item.Behavior == nil {
			return nil
		}
		return addon.StringHeaders(item.Behavior.Headers)
	},
	func(item *addon.StreamItem) map[string]string {
		if item.Behavior == nil || item.Behavior.ProxyHeaders == nil {
			return nil
		}
		return addon.StringHeaders(item.Behavior.ProxyHeaders.Request)
	},
}

// ExtractHeaders merges every header shape of item, sanitized. nil when there are none.
func ExtractHeaders(item *addon.StreamItem) map[string]string {
	layers := make([]map[string]string, 0, len(headerExtractors))
	for _, extract := range headerExtractors {
		layers = append(layers, extract(item))
	}
	return addon.MergeHeaders(layers...)
}
