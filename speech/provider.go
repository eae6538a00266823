package speech

import "fmt"

// Provider identifies which synthesis backend serves a speak request.
type Provider int

const (
	// ProviderOpenAI is the primary remote backend (OpenAI-style speech API).
	ProviderOpenAI Provider = iota
	// ProviderElevenLabs is the secondary remote backend (ElevenLabs-style API).
	ProviderElevenLabs
	// ProviderLocal is the platform speech engine. It needs no network and
	// serves as the terminal fallback for every remote failure.
	ProviderLocal
)

// String returns the provider's canonical name.
func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderElevenLabs:
		return "elevenlabs"
	case ProviderLocal:
		return "local"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// Remote reports whether the provider requires a network call.
func (p Provider) Remote() bool {
	return p == ProviderOpenAI || p == ProviderElevenLabs
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderElevenLabs, ProviderLocal:
		return true
	}
	return false
}

// Providers lists every known provider in routing-preference order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderElevenLabs, ProviderLocal}
}

// ParseProvider resolves a provider name as used in configuration files,
// flags, and the switch-provider operation.
func ParseProvider(name string) (Provider, error) {
	switch name {
	case "openai":
		return ProviderOpenAI, nil
	case "elevenlabs":
		return ProviderElevenLabs, nil
	case "local":
		return ProviderLocal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// MarshalText implements encoding.TextMarshaler so Provider round-trips
// through YAML and flag values.
func (p Provider) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProvider, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provider) UnmarshalText(text []byte) error {
	parsed, err := ParseProvider(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
