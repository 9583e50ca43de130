package transport

import (
	"net/http"

	"github.com/go-resty/resty/v2"
)

// NotFollowMagnet stops redirect chains that end in a magnet link; the 3xx response is
// returned to the caller untouched.
func NotFollowMagnet() resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(r1 *http.Request, _ []*http.Request) error {
		if r1.URL.Scheme == "magnet" {
			return http.ErrUseLastResponse
		}

		return nil
	})
}
