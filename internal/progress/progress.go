// Package progress instruments byte streams with rate-limited progress samples.
//
// A [Tracker] wraps an [io.Reader]. It emits at most one [Sample] per window
// while data flows, then exactly one final sample when the reader reports
// [io.EOF]. When the final sample shows the full expected length, a [Summary]
// is produced as well.
package progress

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWindow is the sampling window used when none is configured.
const DefaultWindow = time.Second

// Sample is a point-in-time view of a transfer. Total is -1 when the length is unknown.
type Sample struct {
	Transferred int64         `json:"transferred"`
	Total       int64         `json:"length"`
	Percentage  float64       `json:"percentage"`
	Delta       int64         `json:"delta"`
	Elapsed     time.Duration `json:"runtime"`
	Speed       float64       `json:"speed"` // bytes per second over the last window
	Remaining   int64         `json:"remaining"`
	ETA         time.Duration `json:"eta"`
	Final       bool          `json:"final"`
}

// Complete reports whether the sample covers the full known length.
func (s Sample) Complete() bool {
	return s.Total >= 0 && s.Transferred >= s.Total
}

// Summary is the cumulative outcome of a fully observed transfer.
type Summary struct {
	Transferred  int64         `json:"transferredBytes"`
	Runtime      time.Duration `json:"runtime"`
	AverageSpeed float64       `json:"averageSpeed"`
}

// Options configures a [Tracker]. Zero values select defaults.
type Options struct {
	Window    time.Duration
	Now       func() time.Time
	OnSample  func(Sample)
	OnSummary func(Summary)
}

// Tracker is an [io.Reader] that reports progress of the wrapped reader.
type Tracker struct {
	r       io.Reader
	total   int64
	now     func() time.Time
	limiter *rate.Limiter

	onSample  func(Sample)
	onSummary func(Summary)

	mu              sync.Mutex
	start           time.Time
	lastAt          time.Time
	transferred     int64
	lastTransferred int64
	finished        bool
	summary         *Summary
}

// New wraps r. total is the expected length in bytes, or -1 if unknown.
func New(r io.Reader, total int64, opts Options) *Tracker {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if total < 0 {
		total = -1
	}

	start := opts.Now()
	limiter := rate.NewLimiter(rate.Every(opts.Window), 1)
	limiter.AllowN(start, 1)

	return &Tracker{
		r:         r,
		total:     total,
		now:       opts.Now,
		limiter:   limiter,
		onSample:  opts.OnSample,
		onSummary: opts.OnSummary,
		start:     start,
		lastAt:    start,
	}
}

// Read reads from the wrapped reader and emits samples as time allows.
func (t *Tracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)

	var (
		sample  *Sample
		summary *Summary
	)

	t.mu.Lock()
	if n > 0 {
		t.transferred += int64(n)
	}
	now := t.now()
	switch {
	case errors.Is(err, io.EOF) && !t.finished:
		t.finished = true
		s := t.sampleLocked(now, true)
		sample = &s
		if s.Complete() {
			summary = &Summary{
				Transferred:  t.transferred,
				Runtime:      now.Sub(t.start),
				AverageSpeed: speed(t.transferred, now.Sub(t.start)),
			}
			t.summary = summary
		}
	case n > 0 && !t.reachedTotalLocked() && t.limiter.AllowN(now, 1):
		s := t.sampleLocked(now, false)
		sample = &s
	}
	t.mu.Unlock()

	if sample != nil && t.onSample != nil {
		t.onSample(*sample)
	}
	if summary != nil && t.onSummary != nil {
		t.onSummary(*summary)
	}
	return n, err
}

// Transferred returns the number of bytes read so far.
func (t *Tracker) Transferred() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferred
}

// Summary returns the cumulative summary if the full length was observed.
func (t *Tracker) Summary() (Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.summary == nil {
		return Summary{}, false
	}
	return *t.summary, true
}

// Close closes the wrapped reader when it is an [io.Closer].
func (t *Tracker) Close() error {
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// The sample at the full length is deferred to EOF so it is always the last one.
func (t *Tracker) reachedTotalLocked() bool {
	return t.total >= 0 && t.transferred >= t.total
}

func (t *Tracker) sampleLocked(now time.Time, final bool) Sample {
	delta := t.transferred - t.lastTransferred
	s := Sample{
		Transferred: t.transferred,
		Total:       t.total,
		Delta:       delta,
		Elapsed:     now.Sub(t.start),
		Speed:       speed(delta, now.Sub(t.lastAt)),
		Remaining:   -1,
		Final:       final,
	}
	if t.total >= 0 {
		s.Remaining = max(t.total-t.transferred, 0)
		if t.total == 0 {
			s.Percentage = 100
		} else {
			s.Percentage = round2(float64(t.transferred) / float64(t.total) * 100)
		}
		if s.Speed > 0 {
			s.ETA = time.Duration(float64(s.Remaining) / s.Speed * float64(time.Second))
		}
	}

	t.lastAt = now
	t.lastTransferred = t.transferred
	return s
}

func speed(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return round2(float64(bytes) / d.Seconds())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
