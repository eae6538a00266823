package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/outloud/internal/cache"
	"github.com/dgnsrekt/outloud/speech/platform"
)

// FallbackEvent describes one remote failure the dispatcher swallowed
// while rerouting a request to the platform engine.
type FallbackEvent struct {
	// From is the remote provider that failed.
	From Provider
	// Err is the swallowed remote error.
	Err error
	// Recovered reports whether the platform engine accepted the request.
	Recovered bool
	// FallbackErr is the platform engine's error when Recovered is false.
	FallbackErr error
}

// Dispatcher routes speak requests to the active provider and keeps
// every live handle registered so Stop can silence everything at once.
// All methods are safe for concurrent use.
type Dispatcher struct {
	mu     sync.RWMutex
	cfg    Config
	active Provider
	closed bool

	openai *OpenAIAdapter
	eleven *ElevenLabsAdapter
	local  *LocalAdapter
	engine platform.Engine

	handleMu sync.Mutex
	handles  map[Handle]struct{}

	// ownedCache is set when the dispatcher opened the store itself and
	// must close it.
	ownedCache *cache.Store

	log  *log.Logger
	hook func(FallbackEvent)

	// injection points, set by options before the adapters are built
	player     Player
	audioCache AudioCache
	httpClient *http.Client
	openaiOpts []OpenAIOption
	elevenOpts []ElevenLabsOption
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithLogger sets the logger for the dispatcher and its adapters.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) { d.log = logger }
}

// WithEngine replaces the platform speech engine.
func WithEngine(engine platform.Engine) Option {
	return func(d *Dispatcher) { d.engine = engine }
}

// WithPlayer replaces the audio output pipeline the remote adapters use.
func WithPlayer(player Player) Option {
	return func(d *Dispatcher) { d.player = player }
}

// WithCache replaces the audio cache. Overrides the config-driven one.
func WithCache(c AudioCache) Option {
	return func(d *Dispatcher) { d.audioCache = c }
}

// WithHTTPClient sets the HTTP client both remote adapters use.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = client }
}

// WithFallbackHook registers a callback invoked on every remote failure
// the dispatcher handles by falling back, recovered or not.
func WithFallbackHook(fn func(FallbackEvent)) Option {
	return func(d *Dispatcher) { d.hook = fn }
}

// WithOpenAIOptions forwards extra options to the OpenAI adapter.
func WithOpenAIOptions(opts ...OpenAIOption) Option {
	return func(d *Dispatcher) { d.openaiOpts = append(d.openaiOpts, opts...) }
}

// WithElevenLabsOptions forwards extra options to the ElevenLabs adapter.
func WithElevenLabsOptions(opts ...ElevenLabsOption) Option {
	return func(d *Dispatcher) { d.elevenOpts = append(d.elevenOpts, opts...) }
}

// New creates a Dispatcher from cfg. Construction always succeeds:
// invalid parameter records are replaced by defaults with a warning,
// an unknown provider name falls back to credential inference, and a
// cache that cannot be opened just means uncached synthesis. Problems
// that prevent speaking surface from Speak, not from New.
func New(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handles: make(map[Handle]struct{}),
		log:     log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.cfg = d.normalize(cfg)

	active, err := d.cfg.ActiveProvider()
	if err != nil {
		d.log.Warn("unknown provider configured, inferring from credentials", "provider", d.cfg.ProviderName)
		d.cfg.ProviderName = ""
		active, _ = d.cfg.ActiveProvider()
	}
	d.active = active

	if d.engine == nil {
		d.engine = platform.New()
	}
	if d.player == nil {
		d.player = newAudioPlayer()
	}
	if d.audioCache == nil && d.cfg.CacheEnabled {
		d.audioCache = d.openCache()
	}

	openaiOpts := []OpenAIOption{WithOpenAILogger(d.log)}
	elevenOpts := []ElevenLabsOption{WithElevenLabsLogger(d.log)}
	if d.httpClient != nil {
		openaiOpts = append(openaiOpts, WithOpenAIClient(d.httpClient))
		elevenOpts = append(elevenOpts, WithElevenLabsClient(d.httpClient))
	}
	if d.audioCache != nil {
		openaiOpts = append(openaiOpts, WithOpenAICache(d.audioCache))
		elevenOpts = append(elevenOpts, WithElevenLabsCache(d.audioCache))
	}
	if rpm := d.cfg.RequestsPerMinute; rpm > 0 {
		openaiOpts = append(openaiOpts,
			WithOpenAILimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)))
		elevenOpts = append(elevenOpts,
			WithElevenLabsLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)))
	}
	openaiOpts = append(openaiOpts, d.openaiOpts...)
	elevenOpts = append(elevenOpts, d.elevenOpts...)

	d.openai = NewOpenAIAdapter(d.player, openaiOpts...)
	d.eleven = NewElevenLabsAdapter(d.player, elevenOpts...)
	d.local = NewLocalAdapter(d.engine, WithLocalLogger(d.log))

	d.log.Debug("dispatcher initialized", "provider", d.active, "cache", d.audioCache != nil)
	return d
}

// normalize replaces invalid or zero-value parameter records with
// defaults so a sparse hand-built Config still speaks.
func (d *Dispatcher) normalize(cfg Config) Config {
	if err := cfg.OpenAI.Validate(); err != nil {
		if (cfg.OpenAI != OpenAIParams{}) {
			d.log.Warn("invalid openai parameters, using defaults", "error", err)
		}
		cfg.OpenAI = DefaultOpenAIParams()
	}
	if err := cfg.ElevenLabs.Validate(); err != nil {
		if (cfg.ElevenLabs != ElevenLabsParams{}) {
			d.log.Warn("invalid elevenlabs parameters, using defaults", "error", err)
		}
		cfg.ElevenLabs = DefaultElevenLabsParams()
	}
	if err := cfg.Local.Validate(); err != nil {
		if (cfg.Local != LocalParams{}) {
			d.log.Warn("invalid local parameters, using defaults", "error", err)
		}
		cfg.Local = DefaultLocalParams()
	}
	if cfg.RequestsPerMinute < 0 {
		d.log.Warn("negative requests_per_minute, disabling rate limiting")
		cfg.RequestsPerMinute = 0
	}
	return cfg
}

// DefaultCacheDir returns where synthesized audio is cached when no
// directory is configured.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "outloud", "audio"), nil
}

// openCache opens the config-driven audio cache, or returns nil with a
// warning when it cannot be opened.
func (d *Dispatcher) openCache() AudioCache {
	dir := d.cfg.CacheDir
	if dir == "" {
		var err error
		dir, err = DefaultCacheDir()
		if err != nil {
			d.log.Warn("audio cache disabled", "error", err)
			return nil
		}
	}

	store, err := cache.Open(cache.DefaultOptions(dir))
	if err != nil {
		d.log.Warn("audio cache unavailable", "dir", dir, "error", err)
		return nil
	}
	d.ownedCache = store
	return store
}

// Active returns the provider Speak currently routes to.
func (d *Dispatcher) Active() Provider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Config returns a copy of the current configuration.
func (d *Dispatcher) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Speak synthesizes and plays text through the active provider. When a
// remote provider fails in any way, the request is retried once on the
// platform engine without surfacing the remote error to the callbacks;
// the failure is logged and reported through the fallback hook instead.
//
// The callbacks fire at most once each across both attempts, and OnEnd
// and OnError are mutually exclusive. When Speak returns an error, that
// same error has been delivered to OnError.
func (d *Dispatcher) Speak(ctx context.Context, text string, cb Callbacks) (Handle, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrDispatcherClosed
	}
	cfg := d.cfg
	active := d.active
	d.mu.RUnlock()

	wrapped := cb.once()
	req := Request{Text: text, Callbacks: wrapped}

	handle, err := d.dispatch(ctx, req, active, cfg)
	if err != nil && active.Remote() && ctx.Err() == nil {
		handle, err = d.fallback(ctx, req, active, cfg, err)
	}
	if err != nil {
		wrapped.fail(err)
		return nil, err
	}

	d.track(handle)
	return handle, nil
}

// dispatch routes one request to one provider. Every Provider value has
// an arm here; anything else is a corrupted value.
func (d *Dispatcher) dispatch(ctx context.Context, req Request, p Provider, cfg Config) (Handle, error) {
	switch p {
	case ProviderOpenAI:
		return d.openai.Speak(ctx, req, cfg.OpenAIKey, cfg.OpenAI)
	case ProviderElevenLabs:
		return d.eleven.Speak(ctx, req, cfg.ElevenLabsKey, cfg.ElevenLabs)
	case ProviderLocal:
		return d.local.Speak(ctx, req, cfg.Local)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}
}

// fallback reroutes a failed remote request to the platform engine. The
// remote error never reaches the callbacks; when the platform engine
// also fails, that error becomes the request's terminal error.
func (d *Dispatcher) fallback(ctx context.Context, req Request, from Provider, cfg Config, cause error) (Handle, error) {
	d.log.Warn("remote synthesis failed, falling back to platform speech",
		"provider", from, "error", cause)

	event := FallbackEvent{From: from, Err: cause}
	handle, err := d.local.Speak(ctx, req, cfg.Local)
	if err != nil {
		event.FallbackErr = err
		d.notifyFallback(event)
		d.log.Error("platform fallback failed", "provider", from, "error", err)
		return nil, err
	}

	event.Recovered = true
	d.notifyFallback(event)
	return handle, nil
}

func (d *Dispatcher) notifyFallback(event FallbackEvent) {
	if d.hook != nil {
		d.hook(event)
	}
}

// track registers a live handle and removes it once it settles.
func (d *Dispatcher) track(h Handle) {
	d.handleMu.Lock()
	d.handles[h] = struct{}{}
	d.handleMu.Unlock()

	go func() {
		<-h.Done()
		d.handleMu.Lock()
		delete(d.handles, h)
		d.handleMu.Unlock()
	}()
}

// Stop silences every live handle, whichever adapter produced it, and
// discards utterances still queued on the platform engine.
func (d *Dispatcher) Stop() {
	d.handleMu.Lock()
	handles := make([]Handle, 0, len(d.handles))
	for h := range d.handles {
		handles = append(handles, h)
	}
	d.handleMu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	d.engine.Cancel()
}

// SwitchProvider changes the active provider for subsequent speaks.
// A non-empty credential replaces the stored one for remote providers;
// empty keeps whatever is stored. Audio already playing continues.
func (d *Dispatcher) SwitchProvider(p Provider, credential string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	switch p {
	case ProviderOpenAI:
		if credential != "" {
			d.cfg.OpenAIKey = credential
		}
	case ProviderElevenLabs:
		if credential != "" {
			d.cfg.ElevenLabsKey = credential
		}
	case ProviderLocal:
		// no credential to store
	}

	d.active = p
	d.cfg.ProviderName = p.String()
	d.log.Info("provider switched", "provider", p)
	return nil
}

// UpdateConfig shallow-merges a partial parameter update into the named
// provider's record. Fields left nil keep their values; fields that do
// not apply to the provider are ignored. The merged record is validated
// before it replaces the old one.
func (d *Dispatcher) UpdateConfig(p Provider, patch ConfigPatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	switch p {
	case ProviderOpenAI:
		next := d.cfg.OpenAI
		next.apply(patch)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("openai config: %w", err)
		}
		d.cfg.OpenAI = next
	case ProviderElevenLabs:
		next := d.cfg.ElevenLabs
		next.apply(patch)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("elevenlabs config: %w", err)
		}
		d.cfg.ElevenLabs = next
	case ProviderLocal:
		next := d.cfg.Local
		next.apply(patch)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("local config: %w", err)
		}
		d.cfg.Local = next
	default:
		return fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}

	d.log.Debug("provider configuration updated", "provider", p)
	return nil
}

// SupportedVoices lists the voices the active provider offers.
func (d *Dispatcher) SupportedVoices(ctx context.Context) ([]Voice, error) {
	return d.VoicesFor(ctx, d.Active())
}

// VoicesFor lists the voices one provider offers: the fixed catalogs
// for the remote providers, the installed voices for local.
func (d *Dispatcher) VoicesFor(ctx context.Context, p Provider) ([]Voice, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrDispatcherClosed
	}

	switch p {
	case ProviderOpenAI:
		return d.openai.Voices(), nil
	case ProviderElevenLabs:
		return d.eleven.Voices(), nil
	case ProviderLocal:
		return d.local.Voices(ctx)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}
}

// CacheStats reports audio cache counters when the dispatcher owns its
// cache store; ok is false otherwise.
func (d *Dispatcher) CacheStats() (cache.StoreStats, bool) {
	if d.ownedCache == nil {
		return cache.StoreStats{}, false
	}
	return d.ownedCache.Stats(), true
}

// ClearCache empties the owned audio cache store.
func (d *Dispatcher) ClearCache() error {
	if d.ownedCache == nil {
		return errors.New("no audio cache open")
	}
	return d.ownedCache.Clear()
}

// Close stops all playback and releases the engine and cache. Speak
// calls after Close return ErrDispatcherClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.Stop()

	err := d.engine.Close()
	if d.ownedCache != nil {
		if cerr := d.ownedCache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
