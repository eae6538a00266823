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
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// ElevenLabs synthesis is slower than OpenAI's, especially on the
	// multilingual models.
	elevenLabsTimeout = 60 * time.Second
)

// ElevenLabs model identifiers.
const (
	ModelElevenMultilingual = "eleven_multilingual_v2"
	ModelElevenTurbo        = "eleven_turbo_v2_5"
	ModelElevenEnglish      = "eleven_monolingual_v1"
)

// elevenLabsVoices is the stock catalog. Accounts with cloned voices
// have more; the stock set is what every key can use.
var elevenLabsVoices = []Voice{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Language: "en", Gender: "female"},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Language: "en", Gender: "female"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Language: "en", Gender: "female"},
	{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Language: "en", Gender: "male"},
	{ID: "MF3mGyEYCl7XYWbV9V6O", Name: "Elli", Language: "en", Gender: "female"},
	{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Language: "en", Gender: "male"},
	{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold", Language: "en", Gender: "male"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Language: "en", Gender: "male"},
	{ID: "yoZ06aMxZJJ28mfd3POQ", Name: "Sam", Language: "en", Gender: "male"},
}

// ElevenLabsAdapter speaks through the ElevenLabs text-to-speech
// endpoint. Like the OpenAI adapter it holds transport concerns only;
// credential and parameters arrive per call.
type ElevenLabsAdapter struct {
	baseURL string
	client  *http.Client
	player  Player
	cache   AudioCache
	limiter *rate.Limiter
	log     *log.Logger
}

// ElevenLabsOption configures the adapter.
type ElevenLabsOption func(*ElevenLabsAdapter)

// WithElevenLabsBaseURL overrides the service URL, for tests and proxies.
func WithElevenLabsBaseURL(url string) ElevenLabsOption {
	return func(a *ElevenLabsAdapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithElevenLabsClient overrides the HTTP client.
func WithElevenLabsClient(client *http.Client) ElevenLabsOption {
	return func(a *ElevenLabsAdapter) { a.client = client }
}

// WithElevenLabsCache attaches an audio cache.
func WithElevenLabsCache(c AudioCache) ElevenLabsOption {
	return func(a *ElevenLabsAdapter) { a.cache = c }
}

// WithElevenLabsLimiter attaches a client-side rate limiter.
func WithElevenLabsLimiter(l *rate.Limiter) ElevenLabsOption {
	return func(a *ElevenLabsAdapter) { a.limiter = l }
}

// WithElevenLabsLogger overrides the logger.
func WithElevenLabsLogger(logger *log.Logger) ElevenLabsOption {
	return func(a *ElevenLabsAdapter) { a.log = logger }
}

// NewElevenLabsAdapter creates the adapter around the given audio player.
func NewElevenLabsAdapter(player Player, opts ...ElevenLabsOption) *ElevenLabsAdapter {
	a := &ElevenLabsAdapter{
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: elevenLabsTimeout},
		player:  player,
		log:     log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider identifies the backend.
func (a *ElevenLabsAdapter) Provider() Provider { return ProviderElevenLabs }

// Voices returns the stock voice catalog.
func (a *ElevenLabsAdapter) Voices() []Voice {
	out := make([]Voice, len(elevenLabsVoices))
	copy(out, elevenLabsVoices)
	return out
}

// elevenLabsRequest is the synthesis request body. The voice itself is
// addressed in the URL, not the body.
type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// Speak synthesizes req.Text with the given credential and parameters,
// then starts playback. The callback contract matches the OpenAI
// adapter: OnStart before synthesis, terminal callbacks from the
// playback watcher, no terminal callback for errors returned here.
func (a *ElevenLabsAdapter) Speak(ctx context.Context, req Request, apiKey string, params ElevenLabsParams) (Handle, error) {
	if apiKey == "" {
		return nil, &MissingCredentialError{Provider: ProviderElevenLabs}
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
	a.log.Debug("synthesized audio", "provider", ProviderElevenLabs, "bytes", len(data), "cached", cached)

	playback, err := a.player.Play(ctx, data, params.Format)
	if err != nil {
		return nil, err
	}

	handle := &playbackHandle{provider: ProviderElevenLabs, playback: playback}
	go watchPlayback(playback, cb)
	return handle, nil
}

func (a *ElevenLabsAdapter) synthesize(ctx context.Context, text, apiKey string, params ElevenLabsParams) ([]byte, bool, error) {
	key := cacheKey(fmt.Sprintf("%s|%s|%s|%.2f|%.2f|%.2f|%t|%s|%s",
		ProviderElevenLabs, params.Model, params.VoiceID,
		params.Stability, params.SimilarityBoost, params.Style, params.SpeakerBoost,
		params.Format, text))
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

	body, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: params.Model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       params.Stability,
			SimilarityBoost: params.SimilarityBoost,
			Style:           params.Style,
			UseSpeakerBoost: params.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", a.baseURL, params.VoiceID)
	if params.Format != "" {
		endpoint += "?output_format=" + params.Format
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, remoteError(ProviderElevenLabs, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read audio response: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Put(key, data); err != nil {
			a.log.Warn("audio cache write failed", "provider", ProviderElevenLabs, "error", err)
		}
	}
	return data, false, nil
}
