package streams

import (
	"net/url"
	"strings"
)

// denylist matches web pages providers sometimes publish in place of media: code hosting and
// video sharing watch pages. Hosts match with or without subdomains; an empty path list
// matches every path of the host.
var denylist = []struct {
	host  string
	paths []string
}{
	{host: "github.com"},
	{host: "gist.github.com"},
	{host: "gitlab.com"},
	{host: "bitbucket.org"},
	{host: "youtube.com", paths: []string{"/watch", "/shorts/", "/embed/", "/playlist", "/channel/", "/@"}},
	{host: "youtu.be"},
	{host: "vimeo.com"},
	{host: "dailymotion.com", paths: []string{"/video/", "/embed/"}},
	{host: "dai.ly"},
}

// IsDenylisted reports whether link points to a known informational page.
func IsDenylisted(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())

	for _, entry := range denylist {
		if host != entry.host && !strings.HasSuffix(host, "."+entry.host) {
			continue
		}
		if len(entry.paths) == 0 {
			return true
		}
		for _, prefix := range entry.paths {
			if strings.HasPrefix(u.Path, prefix) {
				return true
			}
		}
	}
	return false
}
