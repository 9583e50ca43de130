// Package router picks the addons that can answer a given content request.
package router

import (
	"strings"

	"github.com/dbytex91/addonx/internal/addon"
)

// EligibleForStreams filters addons down to those able to serve streams for contentID.
// Custom addons without a usable manifest are kept: an unknown provider costs one bounded
// request, dropping it could cost every result it would have found.
func EligibleForStreams(addons []addon.Addon, contentType addon.ContentType, contentID string) []addon.Addon {
	eligible := []addon.Addon{}
	for _, a := range addons {
		if !usable(a) || a.Type == addon.TypeSubtitle {
			continue
		}
		if !a.Manifest.HasResources() {
			if a.Type == addon.TypeCustom {
				eligible = append(eligible, a)
			}
			continue
		}
		if supports(a.Manifest, addon.ResourceStream, contentType, contentID) {
			eligible = append(eligible, a)
		}
	}
	return eligible
}

// EligibleForSubtitles is the subtitle counterpart of EligibleForStreams. Subtitle typed
// addons without a manifest are assumed capable.
func EligibleForSubtitles(addons []addon.Addon, contentType addon.ContentType, contentID string) []addon.Addon {
	eligible := []addon.Addon{}
	for _, a := range addons {
		if !usable(a) {
			continue
		}
		if !a.Manifest.HasResources() {
			if a.Type == addon.TypeSubtitle {
				eligible = append(eligible, a)
			}
			continue
		}
		if supports(a.Manifest, addon.ResourceSubtitles, contentType, contentID) {
			eligible = append(eligible, a)
		}
	}
	return eligible
}

func usable(a addon.Addon) bool {
	return a.IsInstalled && a.IsEnabled && a.BaseURL() != ""
}

func supports(m *addon.Manifest, resource addon.Resource, contentType addon.ContentType, contentID string) bool {
	for _, item := range m.Resource(resource) {
		if item.SupportsType(contentType) && matchesPrefix(item.IDPrefixes, contentID) {
			return true
		}
	}
	return false
}

func matchesPrefix(prefixes []string, contentID string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(contentID, prefix) {
			return true
		}
	}
	return false
}
