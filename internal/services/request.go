package services

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ytmp3/internal/proxy"
	"github.com/desertthunder/ytmp3/internal/session"
)

// DefaultMaxRedirects applies when no redirect limit is configured.
const DefaultMaxRedirects = 5

// BaseOptions are merged into every [RequestConfig].
type BaseOptions struct {
	Headers      map[string]string
	MaxRedirects int           // zero means [DefaultMaxRedirects]
	Timeout      time.Duration // zero means no client timeout
}

// RequestConfig is an immutable per-use request configuration.
type RequestConfig struct {
	Headers      http.Header
	Cookie       string   // Cookie header for the session origin at build time
	Proxy        *url.URL // nil means direct connection
	MaxRedirects int
	Timeout      time.Duration
	Jar          http.CookieJar // when set, supplies each request's cookies and records responses
}

// RequestBuilder derives a fresh [RequestConfig] for each use.
type RequestBuilder struct {
	base    BaseOptions
	session *session.Session
	rotator *proxy.Rotator
	rotate  bool
}

// NewRequestBuilder creates a builder. A nil session sends no cookies; a nil rotator or rotate=false connects directly.
func NewRequestBuilder(base BaseOptions, sess *session.Session, rotator *proxy.Rotator, rotate bool) *RequestBuilder {
	if base.MaxRedirects <= 0 {
		base.MaxRedirects = DefaultMaxRedirects
	}
	return &RequestBuilder{base: base, session: sess, rotator: rotator, rotate: rotate}
}

// Build merges base headers, session headers and the current cookie header,
// and advances the proxy rotation when enabled.
func (b *RequestBuilder) Build() RequestConfig {
	headers := make(http.Header)
	cfg := RequestConfig{
		Headers:      headers,
		MaxRedirects: b.base.MaxRedirects,
		Timeout:      b.base.Timeout,
	}

	if b.session != nil {
		for k, v := range b.session.Headers() {
			headers.Set(k, v)
		}
		cfg.Cookie = b.session.CookieHeader(nil)
		cfg.Jar = b.session
	}
	for k, v := range b.base.Headers {
		headers.Set(k, v)
	}

	if b.rotate && b.rotator != nil {
		cfg.Proxy = b.rotator.Next()
	}
	return cfg
}

// Client builds an [http.Client] that applies the configuration to every request.
func (c RequestConfig) Client() *http.Client {
	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if c.Proxy != nil {
		transport.Proxy = http.ProxyURL(c.Proxy)
	}

	limit := c.MaxRedirects
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}

	return &http.Client{
		Transport: &configTransport{base: transport, cfg: c},
		Timeout:   c.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		},
	}
}

type configTransport struct {
	base http.RoundTripper
	cfg  RequestConfig
}

func (t *configTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.cfg.Headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), vs...)
		}
	}
	if t.cfg.Jar != nil {
		for _, c := range t.cfg.Jar.Cookies(req.URL) {
			req.AddCookie(c)
		}
	} else if t.cfg.Cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			req.Header.Set("Cookie", existing+"; "+t.cfg.Cookie)
		} else {
			req.Header.Set("Cookie", t.cfg.Cookie)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if t.cfg.Jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			t.cfg.Jar.SetCookies(req.URL, cookies)
		}
	}
	return resp, nil
}
