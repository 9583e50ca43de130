package addon

import (
	"net/url"
	"strings"
)

// ResourceURL builds "{base}/{resource}/{type}/{id}[/{extra}].json" from a manifest URL, where
// base is the manifest URL without "/manifest.json". The manifest query string, which some
// addons use for configuration, is carried over.
func ResourceURL(manifestURL string, resource Resource, contentType ContentType, id string, extra string) string {
	base, query, _ := strings.Cut(manifestURL, "?")
	base = strings.TrimSuffix(strings.TrimRight(base, "/"), "/manifest.json")

	b := &strings.Builder{}
	b.WriteString(base)
	b.WriteString("/")
	b.WriteString(string(resource))
	b.WriteString("/")
	b.WriteString(string(contentType))
	b.WriteString("/")
	b.WriteString(url.PathEscape(id))
	if extra != "" {
		b.WriteString("/")
		b.WriteString(extra)
	}
	b.WriteString(".json")
	if query != "" {
		b.WriteString("?")
		b.WriteString(query)
	}
	return b.String()
}
