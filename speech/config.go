package speech

import (
	"fmt"
	"strings"
)

// Config holds everything a Dispatcher owns: the active provider, remote
// credentials, and one voice-parameter record per provider. A Config is
// plain data; the Dispatcher guards it once constructed.
type Config struct {
	// ProviderName selects the active backend. When empty, the active
	// provider is inferred from which credential is present (openai wins
	// over elevenlabs; neither means local).
	ProviderName string `yaml:"provider" env:"OUTLOUD_PROVIDER"`

	// Remote credentials, memory-only for the process lifetime.
	OpenAIKey     string `yaml:"openai_key" env:"OUTLOUD_OPENAI_KEY"`
	ElevenLabsKey string `yaml:"elevenlabs_key" env:"OUTLOUD_ELEVENLABS_KEY"`

	// Per-provider voice parameter records.
	OpenAI     OpenAIParams     `yaml:"openai"`
	ElevenLabs ElevenLabsParams `yaml:"elevenlabs"`
	Local      LocalParams      `yaml:"local"`

	// Audio cache for remote synthesis results.
	CacheEnabled bool   `yaml:"cache" env:"OUTLOUD_CACHE"`
	CacheDir     string `yaml:"cache_dir" env:"OUTLOUD_CACHE_DIR"`

	// RequestsPerMinute bounds outgoing synthesis calls per remote
	// provider. Zero disables client-side rate limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"OUTLOUD_REQUESTS_PER_MINUTE"`
}

// OpenAIParams is the voice configuration record for the OpenAI-style
// backend. The flat field set mirrors the service's request body.
type OpenAIParams struct {
	Model  string  `yaml:"model" env:"OUTLOUD_OPENAI_MODEL"`
	Voice  string  `yaml:"voice" env:"OUTLOUD_OPENAI_VOICE"`
	Speed  float64 `yaml:"speed" env:"OUTLOUD_OPENAI_SPEED"`
	Format string  `yaml:"format" env:"OUTLOUD_OPENAI_FORMAT"`
}

// ElevenLabsParams is the voice configuration record for the
// ElevenLabs-style backend, including its nested stability block.
type ElevenLabsParams struct {
	VoiceID         string  `yaml:"voice_id" env:"OUTLOUD_ELEVENLABS_VOICE_ID"`
	Model           string  `yaml:"model" env:"OUTLOUD_ELEVENLABS_MODEL"`
	Stability       float64 `yaml:"stability" env:"OUTLOUD_ELEVENLABS_STABILITY"`
	SimilarityBoost float64 `yaml:"similarity_boost" env:"OUTLOUD_ELEVENLABS_SIMILARITY_BOOST"`
	Style           float64 `yaml:"style" env:"OUTLOUD_ELEVENLABS_STYLE"`
	SpeakerBoost    bool    `yaml:"speaker_boost" env:"OUTLOUD_ELEVENLABS_SPEAKER_BOOST"`
	Format          string  `yaml:"format" env:"OUTLOUD_ELEVENLABS_FORMAT"`
}

// LocalParams is the voice configuration record for the platform engine.
// Rate, pitch and volume are multipliers around the platform defaults.
type LocalParams struct {
	// Voice pins a specific platform voice by name. Empty means the
	// preference-order selection below picks one.
	Voice  string  `yaml:"voice" env:"OUTLOUD_LOCAL_VOICE"`
	Rate   float64 `yaml:"rate" env:"OUTLOUD_LOCAL_RATE"`
	Pitch  float64 `yaml:"pitch" env:"OUTLOUD_LOCAL_PITCH"`
	Volume float64 `yaml:"volume" env:"OUTLOUD_LOCAL_VOLUME"`
}

// DefaultConfig returns a Config with the defaults every record starts
// from at initialization.
func DefaultConfig() Config {
	return Config{
		OpenAI:            DefaultOpenAIParams(),
		ElevenLabs:        DefaultElevenLabsParams(),
		Local:             DefaultLocalParams(),
		CacheEnabled:      true,
		RequestsPerMinute: 60,
	}
}

// DefaultOpenAIParams returns the default OpenAI-style record.
func DefaultOpenAIParams() OpenAIParams {
	return OpenAIParams{
		Model:  "tts-1",
		Voice:  "alloy",
		Speed:  1.0,
		Format: "mp3",
	}
}

// DefaultElevenLabsParams returns the default ElevenLabs-style record.
func DefaultElevenLabsParams() ElevenLabsParams {
	return ElevenLabsParams{
		VoiceID:         "21m00Tcm4TlvDq8ikWAM",
		Model:           "eleven_multilingual_v2",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
		Format:          "mp3_44100_128",
	}
}

// DefaultLocalParams returns the default platform engine record.
func DefaultLocalParams() LocalParams {
	return LocalParams{
		Rate:   1.0,
		Pitch:  1.0,
		Volume: 1.0,
	}
}

// ActiveProvider resolves the provider a fresh Dispatcher starts on:
// an explicit name wins, else whichever credential is present, else local.
func (c *Config) ActiveProvider() (Provider, error) {
	if name := strings.TrimSpace(c.ProviderName); name != "" {
		return ParseProvider(name)
	}
	switch {
	case c.OpenAIKey != "":
		return ProviderOpenAI, nil
	case c.ElevenLabsKey != "":
		return ProviderElevenLabs, nil
	default:
		return ProviderLocal, nil
	}
}

// Credential returns the stored credential for a remote provider, or the
// empty string when none is stored (and always for local).
func (c *Config) Credential(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return c.OpenAIKey
	case ProviderElevenLabs:
		return c.ElevenLabsKey
	default:
		return ""
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if name := strings.TrimSpace(c.ProviderName); name != "" {
		if _, err := ParseProvider(name); err != nil {
			return err
		}
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0, got %d", c.RequestsPerMinute)
	}
	if err := c.OpenAI.Validate(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	if err := c.ElevenLabs.Validate(); err != nil {
		return fmt.Errorf("elevenlabs config: %w", err)
	}
	if err := c.Local.Validate(); err != nil {
		return fmt.Errorf("local config: %w", err)
	}
	return nil
}

// Validate checks the OpenAI-style record.
func (p *OpenAIParams) Validate() error {
	if p.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if p.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	if p.Speed < 0.25 || p.Speed > 4.0 {
		return fmt.Errorf("speed must be between 0.25 and 4.0, got %f", p.Speed)
	}
	return nil
}

// Validate checks the ElevenLabs-style record.
func (p *ElevenLabsParams) Validate() error {
	if p.VoiceID == "" {
		return fmt.Errorf("voice_id cannot be empty")
	}
	if p.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if p.Stability < 0.0 || p.Stability > 1.0 {
		return fmt.Errorf("stability must be between 0.0 and 1.0, got %f", p.Stability)
	}
	if p.SimilarityBoost < 0.0 || p.SimilarityBoost > 1.0 {
		return fmt.Errorf("similarity_boost must be between 0.0 and 1.0, got %f", p.SimilarityBoost)
	}
	if p.Style < 0.0 || p.Style > 1.0 {
		return fmt.Errorf("style must be between 0.0 and 1.0, got %f", p.Style)
	}
	return nil
}

// Validate checks the platform engine record.
func (p *LocalParams) Validate() error {
	if p.Rate < 0.1 || p.Rate > 10.0 {
		return fmt.Errorf("rate must be between 0.1 and 10.0, got %f", p.Rate)
	}
	if p.Pitch < 0.0 || p.Pitch > 2.0 {
		return fmt.Errorf("pitch must be between 0.0 and 2.0, got %f", p.Pitch)
	}
	if p.Volume < 0.0 || p.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", p.Volume)
	}
	return nil
}

// ConfigPatch is a partial voice-configuration update. Nil fields keep the
// existing value; the patch is shallow-merged into the named provider's
// record by Dispatcher.UpdateConfig. Fields that do not apply to the
// target provider are ignored.
type ConfigPatch struct {
	// Shared / OpenAI-style fields.
	Model  *string
	Voice  *string
	Speed  *float64
	Format *string

	// ElevenLabs-style fields.
	VoiceID         *string
	Stability       *float64
	SimilarityBoost *float64
	Style           *float64
	SpeakerBoost    *bool

	// Platform engine fields.
	Rate   *float64
	Pitch  *float64
	Volume *float64
}

func (p *OpenAIParams) apply(patch ConfigPatch) {
	if patch.Model != nil {
		p.Model = *patch.Model
	}
	if patch.Voice != nil {
		p.Voice = *patch.Voice
	}
	if patch.Speed != nil {
		p.Speed = *patch.Speed
	}
	if patch.Format != nil {
		p.Format = *patch.Format
	}
}

func (p *ElevenLabsParams) apply(patch ConfigPatch) {
	if patch.VoiceID != nil {
		p.VoiceID = *patch.VoiceID
	}
	if patch.Model != nil {
		p.Model = *patch.Model
	}
	if patch.Stability != nil {
		p.Stability = *patch.Stability
	}
	if patch.SimilarityBoost != nil {
		p.SimilarityBoost = *patch.SimilarityBoost
	}
	if patch.Style != nil {
		p.Style = *patch.Style
	}
	if patch.SpeakerBoost != nil {
		p.SpeakerBoost = *patch.SpeakerBoost
	}
	if patch.Format != nil {
		p.Format = *patch.Format
	}
}

func (p *LocalParams) apply(patch ConfigPatch) {
	if patch.Voice != nil {
		p.Voice = *patch.Voice
	}
	if patch.Rate != nil {
		p.Rate = *patch.Rate
	}
	if patch.Pitch != nil {
		p.Pitch = *patch.Pitch
	}
	if patch.Volume != nil {
		p.Volume = *patch.Volume
	}
}
