package addon

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// SanitizeHeaders trims keys and values and drops any pair that is empty or contains a CR or LF.
// Keys are canonicalized so that differently cased duplicates collapse; among those the key
// sorting last byte-wise wins.
func SanitizeHeaders(in map[string]string) map[string]string {
	out := map[string]string{}
	for _, k := range slices.Sorted(maps.Keys(in)) {
		v := in[k]
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" || strings.ContainsAny(k, "\r\n") || strings.ContainsAny(v, "\r\n") {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// MergeHeaders layers header maps in order, later layers overriding earlier ones. The result
// is sanitized and nil when nothing survives.
func MergeHeaders(layers ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, layer := range layers {
		for k, v := range SanitizeHeaders(layer) {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// StringHeaders converts a provider header object to strings. Scalars are formatted, arrays
// are joined with ", " and nested objects are dropped.
func StringHeaders(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch value := v.(type) {
		case string:
			out[k] = value
		case float64, bool, int, int64:
			out[k] = fmt.Sprint(value)
		case []any:
			parts := []string{}
			for _, item := range value {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out[k] = strings.Join(parts, ", ")
			}
		}
	}
	return out
}
