package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxBody   = 8 << 20
	defaultTimeout   = 10 * time.Second
	maxRedirects     = 10
)

// Request is a single outbound GET.
type Request struct {
	URL     string
	Headers map[string]string
	// Timeout bounds this call only; zero falls back to the transport default.
	Timeout time.Duration
	// MaxBody caps how much of the body is read; zero uses the default cap.
	MaxBody int64
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs GET requests with arbitrary headers and a per-call timeout.
type Transport interface {
	Get(ctx context.Context, req Request) (*Response, error)
}

type Resty struct {
	client         *resty.Client
	defaultTimeout time.Duration
}

type Option func(*Resty)

func WithUserAgent(userAgent string) Option {
	return func(r *Resty) {
		r.client.SetHeader("User-Agent", userAgent)
	}
}

func WithDefaultTimeout(timeout time.Duration) Option {
	return func(r *Resty) {
		r.defaultTimeout = timeout
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resty) {
		r.client = resty.NewWithClient(hc).
			SetHeader("User-Agent", DefaultUserAgent).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects), NotFollowMagnet())
	}
}

func New(opts ...Option) *Resty {
	r := &Resty{
		client: resty.New().
			SetHeader("User-Agent", DefaultUserAgent).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects), NotFollowMagnet()),
		defaultTimeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Resty) Get(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetDoNotParseResponse(true).
		Get(req.URL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", req.URL, err)
	}

	raw := resp.RawBody()
	defer raw.Close()

	maxBody := req.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(raw, maxBody))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", req.URL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       body,
	}, nil
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
