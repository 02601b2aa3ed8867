// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/transcode"
)

// MockSource is a test double for [services.Source].
//
// Resources are served from the map; Acquire streams Payload. A nil Length reports len(Payload).
type MockSource struct {
	Resources  map[string]*models.Resource
	Payload    []byte
	Length     *int64
	ResolveErr error
	AcquireErr error
	StreamErr  error // returned by Read once Payload is exhausted instead of io.EOF

	// BeforeResolve runs first in Resolve; a non-nil error fails the call.
	BeforeResolve func(ctx context.Context, resourceID string) error

	mu           sync.Mutex
	resolveCalls int
	acquireCalls int
	configs      []services.RequestConfig
	streams      []*FailingStream
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Resolve(ctx context.Context, resourceID string, cfg services.RequestConfig) (*models.Resource, error) {
	m.mu.Lock()
	m.resolveCalls++
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	if m.BeforeResolve != nil {
		if err := m.BeforeResolve(ctx, resourceID); err != nil {
			return nil, err
		}
	}
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	res, ok := m.Resources[resourceID]
	if !ok {
		return nil, errors.New("resource not found")
	}
	cp := *res
	return &cp, nil
}

func (m *MockSource) Acquire(ctx context.Context, res *models.Resource, format models.Format, cfg services.RequestConfig) (*models.Stream, error) {
	m.mu.Lock()
	m.acquireCalls++
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	length := int64(len(m.Payload))
	if m.Length != nil {
		length = *m.Length
	}
	body := NewFailingStream(m.Payload, m.StreamErr)
	m.mu.Lock()
	m.streams = append(m.streams, body)
	m.mu.Unlock()
	return &models.Stream{Body: body, Length: length, Format: format}, nil
}

// Calls returns the number of Resolve and Acquire calls.
func (m *MockSource) Calls() (resolve, acquire int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCalls, m.acquireCalls
}

// Configs returns the request configurations passed in call order.
func (m *MockSource) Configs() []services.RequestConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.RequestConfig(nil), m.configs...)
}

// Streams returns every stream handed out by Acquire.
func (m *MockSource) Streams() []*FailingStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FailingStream(nil), m.streams...)
}

// NewResource builds a resolved resource with an mp4 audio format.
func NewResource(id, title string, audioBitrate int) *models.Resource {
	return &models.Resource{
		ID:           id,
		URL:          "http://www.youtube.com/watch?v=" + id,
		Title:        title,
		ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/default.jpg",
		Formats: []models.Format{
			{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioBitrate: audioBitrate, AudioChannels: 2},
			{Itag: 251, MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2},
		},
	}
}

// FailingStream reads from r, then returns err (or io.EOF when err is nil).
type FailingStream struct {
	r      io.Reader
	err    error
	closed bool
	mu     sync.Mutex
}

// NewFailingStream wraps data so that err is returned after it is consumed.
func NewFailingStream(data []byte, err error) *FailingStream {
	return &FailingStream{r: bytes.NewReader(data), err: err}
}

func (f *FailingStream) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) && f.err != nil {
		return n, f.err
	}
	return n, err
}

func (f *FailingStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FailingStream) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MockTranscoder is a test double for [transcode.Transcoder].
//
// It drains the input and writes an ID3v2.4 tagged file followed by the input bytes.
type MockTranscoder struct {
	Err error // returned after the input is drained

	mu   sync.Mutex
	jobs []transcode.Job
}

func (m *MockTranscoder) Transcode(ctx context.Context, in io.Reader, job transcode.Job) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if m.Err != nil {
		return m.Err
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.Output, append(ID3v24(job.Title, job.Artist), data...), 0o644)
}

// Jobs returns the jobs received in call order.
func (m *MockTranscoder) Jobs() []transcode.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transcode.Job(nil), m.jobs...)
}

// ID3v24 encodes a minimal ID3v2.4 tag with UTF-8 TIT2 and TPE1 frames plus padding.
func ID3v24(title, artist string) []byte {
	var frames bytes.Buffer
	for _, f := range []struct{ id, text string }{{"TIT2", title}, {"TPE1", artist}} {
		payload := append([]byte{0x03}, f.text...)
		frames.WriteString(f.id)
		frames.Write(syncsafe(len(payload)))
		frames.Write([]byte{0x00, 0x00})
		frames.Write(payload)
	}
	frames.Write(make([]byte, 16))

	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{0x04, 0x00, 0x00})
	out.Write(syncsafe(frames.Len()))
	out.Write(frames.Bytes())
	return out.Bytes()
}

func syncsafe(n int) []byte {
	return []byte{byte(n>>21) & 0x7f, byte(n>>14) & 0x7f, byte(n>>7) & 0x7f, byte(n) & 0x7f}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
