// Package session holds the cookie state shared by every request a downloader makes.
//
// A [Session] is passed explicitly to request builders; the cookie header is
// recomputed from the jar on every call so it always reflects the latest
// Set-Cookie responses.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/ytmp3/internal/shared"
	"golang.org/x/net/publicsuffix"
)

// DefaultOrigin is the origin imported cookies are scoped to when none is given.
const DefaultOrigin = "https://www.youtube.com"

// Session wraps a concurrency-safe cookie jar plus headers captured alongside it.
type Session struct {
	jar    *cookiejar.Jar
	origin *url.URL

	mu      sync.RWMutex
	headers map[string]string
}

// New creates an empty session scoped to [DefaultOrigin].
func New() (*Session, error) {
	return NewWithOrigin(DefaultOrigin)
}

// NewWithOrigin creates an empty session whose imported cookies default to origin.
func NewWithOrigin(origin string) (*Session, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: session origin %q", shared.ErrInvalidConfig, origin)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Session{jar: jar, origin: u, headers: map[string]string{}}, nil
}

// Jar exposes the underlying jar so HTTP clients record Set-Cookie responses.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Origin returns the default cookie origin.
func (s *Session) Origin() *url.URL {
	cp := *s.origin
	return &cp
}

// CookieHeader renders the cookies that apply to u as a Cookie header value.
// A nil u uses the session origin.
func (s *Session) CookieHeader(u *url.URL) string {
	if u == nil {
		u = s.origin
	}
	cookies := s.Cookies(u)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Cookies returns the cookies to send to u, or to the session origin when u is nil.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	if u == nil {
		u = s.origin
	}
	return s.jar.Cookies(u)
}

// SetCookies stores cookies for u, or the session origin when u is nil.
func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if u == nil {
		u = s.origin
	}
	s.jar.SetCookies(u, cookies)
}

// Import seeds the jar from a raw "name=value; name2=value2" header.
func (s *Session) Import(cookieHeader string) int {
	cookies := (&shared.CurlHeaders{Cookie: cookieHeader}).Cookies()
	for _, c := range cookies {
		c.Path = "/"
	}
	s.SetCookies(nil, cookies)
	return len(cookies)
}

// ImportCurl seeds cookies and extra headers from a parsed cURL capture.
// Cookies are scoped to the captured URL's host when it shares the session origin's registrable domain.
func (s *Session) ImportCurl(capture *shared.CurlHeaders) int {
	target := s.origin
	if capture.URL != "" {
		if u, err := url.Parse(capture.URL); err == nil && sameSite(u, s.origin) {
			target = u
		}
	}
	cookies := capture.Cookies()
	for _, c := range cookies {
		c.Path = "/"
	}
	s.SetCookies(target, cookies)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range capture.Headers {
		if skipCapturedHeader(k) {
			continue
		}
		s.headers[http.CanonicalHeaderKey(k)] = v
	}
	return len(cookies)
}

// ImportCurlFile parses a saved cURL command and imports it.
func (s *Session) ImportCurlFile(path string) (int, error) {
	capture, err := shared.ParseCurlFile(path)
	if err != nil {
		return 0, err
	}
	return s.ImportCurl(capture), nil
}

// Headers returns a copy of headers captured from imports.
func (s *Session) Headers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

func sameSite(a, b *url.URL) bool {
	da, err := publicsuffix.EffectiveTLDPlusOne(a.Hostname())
	if err != nil {
		return false
	}
	db, err := publicsuffix.EffectiveTLDPlusOne(b.Hostname())
	if err != nil {
		return false
	}
	return da == db
}

// Headers tied to a single request are not replayed.
func skipCapturedHeader(key string) bool {
	switch strings.ToLower(key) {
	case "content-length", "content-type", "host", "cookie", "authorization", "x-goog-visitor-id", "priority":
		return true
	}
	return strings.HasPrefix(strings.ToLower(key), "sec-fetch-")
}
