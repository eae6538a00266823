package speech

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/outloud/speech/platform/mock"
)

// Helpers shared by the adapter and dispatcher tests.

// fakePlayback settles immediately unless created held.
type fakePlayback struct {
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func (pb *fakePlayback) finish(err error) {
	pb.once.Do(func() {
		pb.mu.Lock()
		pb.err = err
		pb.mu.Unlock()
		close(pb.done)
	})
}

func (pb *fakePlayback) Stop()                 { pb.finish(nil) }
func (pb *fakePlayback) Done() <-chan struct{} { return pb.done }

func (pb *fakePlayback) Err() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.err
}

type playedClip struct {
	data   []byte
	format string
}

// fakePlayer records every clip it is handed. Playbacks settle
// immediately, or stay live when hold is set, or fail when scripted.
type fakePlayer struct {
	mu        sync.Mutex
	playErr   error
	deviceErr error
	hold      bool
	clips     []playedClip
	live      []*fakePlayback
}

func (p *fakePlayer) Play(_ context.Context, data []byte, format string) (Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playErr != nil {
		return nil, p.playErr
	}
	p.clips = append(p.clips, playedClip{data: data, format: format})

	pb := &fakePlayback{done: make(chan struct{})}
	p.live = append(p.live, pb)
	if !p.hold {
		pb.finish(p.deviceErr)
	}
	return pb, nil
}

func (p *fakePlayer) plays() []playedClip {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]playedClip, len(p.clips))
	copy(out, p.clips)
	return out
}

// memCache is a map-backed AudioCache.
type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]byte)} }

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.m[key]
	return data, ok
}

func (c *memCache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = data
	return nil
}

// roundTripFunc lets a test fail the moment anything touches the
// network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func noNetworkClient(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected network call to %s", r.URL)
		return nil, http.ErrHandlerTimeout
	})}
}

// newTestDispatcher builds a dispatcher with a mock engine, a fake
// player, and a silent logger.
func newTestDispatcher(cfg Config, opts ...Option) (*Dispatcher, *mock.Engine, *fakePlayer) {
	engine := mock.New()
	player := &fakePlayer{}
	base := []Option{
		WithEngine(engine),
		WithPlayer(player),
		WithLogger(log.New(io.Discard)),
	}
	d := New(cfg, append(base, opts...)...)
	return d, engine, player
}

// waitSignal blocks until ch fires or the test times out.
func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
