// Package proxy hands out egress proxies in round-robin order.
package proxy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/ytmp3/internal/shared"
)

// Rotator selects proxy endpoints round-robin. The n-th call to [Rotator.Next]
// returns endpoints[(n-1) mod len]. Safe for concurrent use.
type Rotator struct {
	mu        sync.Mutex
	endpoints []*url.URL
	cursor    int
}

// New parses the endpoint list. Entries without a scheme are treated as http.
func New(endpoints []string) (*Rotator, error) {
	parsed := make([]*url.URL, 0, len(endpoints))
	for _, raw := range endpoints {
		u, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, u)
	}
	return &Rotator{endpoints: parsed}, nil
}

// Parse validates a single proxy endpoint descriptor.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty proxy endpoint", shared.ErrInvalidConfig)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy %q: %v", shared.ErrInvalidConfig, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: proxy %q: unsupported scheme %s", shared.ErrInvalidConfig, raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: proxy %q: missing host", shared.ErrInvalidConfig, raw)
	}
	return u, nil
}

// Next advances the cursor and returns the selected endpoint.
// A nil result means no proxies are configured and the caller should connect directly.
func (r *Rotator) Next() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.endpoints) == 0 {
		return nil
	}
	u := r.endpoints[r.cursor%len(r.endpoints)]
	r.cursor = (r.cursor + 1) % len(r.endpoints)

	cp := *u
	return &cp
}

// Len returns the number of configured endpoints.
func (r *Rotator) Len() int {
	return len(r.endpoints)
}
