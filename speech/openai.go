package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	openAIEndpoint = "/audio/speech"

	openAITimeout = 30 * time.Second

	// maxTextLength mirrors the service-side input limit so oversized
	// requests fail before spending a network call.
	maxTextLength = 4096

	// maxErrorBody caps how much of an error response is kept for
	// diagnostics.
	maxErrorBody = 8 * 1024
)

// OpenAI model identifiers.
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// openAIVoices is the fixed catalog the service offers.
var openAIVoices = []Voice{
	{ID: "alloy", Name: "Alloy", Language: "en", Gender: "neutral"},
	{ID: "echo", Name: "Echo", Language: "en", Gender: "male"},
	{ID: "fable", Name: "Fable", Language: "en", Gender: "female"},
	{ID: "onyx", Name: "Onyx", Language: "en", Gender: "male"},
	{ID: "nova", Name: "Nova", Language: "en", Gender: "female"},
	{ID: "shimmer", Name: "Shimmer", Language: "en", Gender: "female"},
}

// OpenAIAdapter speaks through the OpenAI text-to-speech endpoint. The
// adapter holds transport concerns only; the credential and voice
// parameters arrive with each call so a configuration change never
// races an in-flight request.
type OpenAIAdapter struct {
	baseURL string
	client  *http.Client
	player  Player
	cache   AudioCache
	limiter *rate.Limiter
	log     *log.Logger
}

// OpenAIOption configures the adapter.
type OpenAIOption func(*OpenAIAdapter)

// WithOpenAIBaseURL overrides the service URL, for tests and proxies.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(a *OpenAIAdapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIClient overrides the HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(a *OpenAIAdapter) { a.client = client }
}

// WithOpenAICache attaches an audio cache.
func WithOpenAICache(c AudioCache) OpenAIOption {
	return func(a *OpenAIAdapter) { a.cache = c }
}

// WithOpenAILimiter attaches a client-side rate limiter.
func WithOpenAILimiter(l *rate.Limiter) OpenAIOption {
	return func(a *OpenAIAdapter) { a.limiter = l }
}

// WithOpenAILogger overrides the logger.
func WithOpenAILogger(logger *log.Logger) OpenAIOption {
	return func(a *OpenAIAdapter) { a.log = logger }
}

// NewOpenAIAdapter creates the adapter around the given audio player.
func NewOpenAIAdapter(player Player, opts ...OpenAIOption) *OpenAIAdapter {
	a := &OpenAIAdapter{
		baseURL: openAIBaseURL,
		client:  &http.Client{Timeout: openAITimeout},
		player:  player,
		log:     log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider identifies the backend.
func (a *OpenAIAdapter) Provider() Provider { return ProviderOpenAI }

// Voices returns the service's fixed voice catalog.
func (a *OpenAIAdapter) Voices() []Voice {
	out := make([]Voice, len(openAIVoices))
	copy(out, openAIVoices)
	return out
}

// openAIRequest is the synthesis request body. Speed is a pointer so
// the service default of 1.0 is omitted rather than sent.
type openAIRequest struct {
	Model          string   `json:"model"`
	Input          string   `json:"input"`
	Voice          string   `json:"voice"`
	ResponseFormat string   `json:"response_format,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
}

// Speak synthesizes req.Text with the given credential and parameters,
// then starts playback. OnStart fires before the synthesis call; OnEnd
// or OnError fires from the playback watcher once the returned handle
// settles. Errors returned here have fired no terminal callback.
func (a *OpenAIAdapter) Speak(ctx context.Context, req Request, apiKey string, params OpenAIParams) (Handle, error) {
	if apiKey == "" {
		return nil, &MissingCredentialError{Provider: ProviderOpenAI}
	}
	if err := validateText(req.Text); err != nil {
		return nil, err
	}

	cb := req.Callbacks
	cb.start()

	data, cached, err := a.synthesize(ctx, req.Text, apiKey, params)
	if err != nil {
		return nil, err
	}
	a.log.Debug("synthesized audio", "provider", ProviderOpenAI, "bytes", len(data), "cached", cached)

	playback, err := a.player.Play(ctx, data, params.Format)
	if err != nil {
		return nil, err
	}

	handle := &playbackHandle{provider: ProviderOpenAI, playback: playback}
	go watchPlayback(playback, cb)
	return handle, nil
}

// synthesize returns the encoded audio for text, from cache when
// possible. The bool reports whether the cache served it.
func (a *OpenAIAdapter) synthesize(ctx context.Context, text, apiKey string, params OpenAIParams) ([]byte, bool, error) {
	key := cacheKey(fmt.Sprintf("%s|%s|%s|%.2f|%s|%s",
		ProviderOpenAI, params.Model, params.Voice, params.Speed, params.Format, text))
	if a.cache != nil {
		if data, ok := a.cache.Get(key); ok {
			return data, true, nil
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	apiReq := openAIRequest{
		Model:          params.Model,
		Input:          text,
		Voice:          params.Voice,
		ResponseFormat: params.Format,
	}
	if params.Speed != 1.0 {
		apiReq.Speed = &params.Speed
	}
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+openAIEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, remoteError(ProviderOpenAI, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read audio response: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Put(key, data); err != nil {
			a.log.Warn("audio cache write failed", "provider", ProviderOpenAI, "error", err)
		}
	}
	return data, false, nil
}

// validateText rejects requests no provider will accept.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if len(text) > maxTextLength {
		return fmt.Errorf("text too long: %d characters (max %d)", len(text), maxTextLength)
	}
	return nil
}

// remoteError builds the typed error for a non-success response,
// keeping a bounded slice of the body for diagnostics.
func remoteError(p Provider, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteSynthesisError{
		Provider: p,
		Status:   resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
}

// watchPlayback fires the terminal callback once a remote playback
// settles. A device failure after audio has started does not re-enter
// the fallback chain; it surfaces through OnError and the handle.
func watchPlayback(playback Playback, cb Callbacks) {
	<-playback.Done()
	if err := playback.Err(); err != nil {
		cb.fail(err)
		return
	}
	cb.end()
}
