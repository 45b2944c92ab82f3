// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
)

// MockCatalog is a test double for [services.Catalog] backed by in-memory tracks per source.
type MockCatalog struct {
	mu       sync.Mutex
	Tracks   map[string][]models.Track
	Objects  map[string][]models.ObjectRef
	Err      error
	Searches []models.SearchCriteria
	calls    atomic.Int64
}

func NewMockCatalog(tracks map[string][]models.Track) *MockCatalog {
	return &MockCatalog{Tracks: tracks, Objects: map[string][]models.ObjectRef{}}
}

func (m *MockCatalog) SearchTracks(ctx context.Context, c models.SearchCriteria) ([]models.Track, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.Searches = append(m.Searches, c)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	tracks := append([]models.Track(nil), m.Tracks[c.Source]...)
	if c.Limit > 0 && len(tracks) > c.Limit {
		tracks = tracks[:c.Limit]
	}
	return tracks, nil
}

func (m *MockCatalog) ListSourceObjects(ctx context.Context, sourceID string) ([]models.ObjectRef, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]models.ObjectRef(nil), m.Objects[sourceID]...), nil
}

// Calls returns how many catalog calls were made.
func (m *MockCatalog) Calls() int { return int(m.calls.Load()) }

// SearchedSources returns the sources searched, in call order.
func (m *MockCatalog) SearchedSources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Searches))
	for i, c := range m.Searches {
		out[i] = c.Source
	}
	return out
}

// FakeOutput records engine calls. Loads are left pending until the test reports on them,
// unless AutoReady is set, in which case every load becomes playable immediately.
type FakeOutput struct {
	mu        sync.Mutex
	handler   player.Handler
	Loads     []player.LoadRequest
	Plays     int
	Pauses    int
	AutoReady bool
	// FailURLs makes loads of these URLs error synchronously.
	FailURLs map[string]bool
}

func (f *FakeOutput) Bind(h player.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *FakeOutput) Load(ctx context.Context, req player.LoadRequest) error {
	f.mu.Lock()
	f.Loads = append(f.Loads, req)
	fail := f.FailURLs[req.URL]
	auto := f.AutoReady
	h := f.handler
	f.mu.Unlock()

	if fail {
		return errors.New("load failed")
	}
	if auto && h != nil {
		h.Handle(player.Event{Kind: player.EventCanPlay, Generation: req.Generation})
	}
	return nil
}

func (f *FakeOutput) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Plays++
	return nil
}

func (f *FakeOutput) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pauses++
	return nil
}

// LastLoad returns the most recent load request.
func (f *FakeOutput) LastLoad() player.LoadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Loads) == 0 {
		return player.LoadRequest{}
	}
	return f.Loads[len(f.Loads)-1]
}

// LoadCount returns how many loads were issued.
func (f *FakeOutput) LoadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Loads)
}

// Report sends kind for the given load back to the bound handler.
func (f *FakeOutput) Report(req player.LoadRequest, kind player.EventKind) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h.Handle(player.Event{Kind: kind, Generation: req.Generation})
}

// FailingStore is a session store whose writes always fail.
type FailingStore struct {
	calls atomic.Int64
}

func (s *FailingStore) SaveSession(ctx context.Context, summary models.SessionSummary) error {
	s.calls.Add(1)
	return errors.New("store unavailable")
}

func (s *FailingStore) Calls() int { return int(s.calls.Load()) }

// MemoryStore keeps saved sessions in memory.
type MemoryStore struct {
	mu       sync.Mutex
	Sessions []models.SessionSummary
}

func (s *MemoryStore) SaveSession(ctx context.Context, summary models.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sessions = append(s.Sessions, summary)
	return nil
}

func (s *MemoryStore) Saved() []models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SessionSummary(nil), s.Sessions...)
}

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

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
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
