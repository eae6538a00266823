package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Request is one speak invocation: the text to speak plus its lifecycle
// callbacks. Requests are ephemeral and never persisted.
//
// Adapters must not fire OnError for errors they return synchronously;
// the dispatcher owns terminal error reporting so the fallback chain
// reports exactly once.
type Request struct {
	Text      string
	Callbacks Callbacks
}

// Player abstracts the audio output pipeline the remote adapters hand
// their synthesized payloads to. The production implementation decodes to
// PCM and plays through the platform audio device; tests inject fakes.
type Player interface {
	// Play starts playback of an encoded audio payload. format names the
	// payload encoding ("mp3", "opus", "pcm", ...).
	Play(ctx context.Context, data []byte, format string) (Playback, error)
}

// Playback is live audio output started by a Player.
type Playback interface {
	// Stop cancels playback. Safe to call more than once.
	Stop()
	// Done is closed when playback completes, errors, or is stopped.
	Done() <-chan struct{}
	// Err reports the terminal playback error, if any, once Done is closed.
	Err() error
}

// AudioCache stores synthesized audio keyed by request parameters so
// repeated remote synthesis of identical text is served locally.
type AudioCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// cacheKey hashes a request descriptor into a short stable key. Each
// adapter builds its descriptor from every parameter that affects the
// synthesized bytes.
func cacheKey(descriptor string) string {
	sum := sha256.Sum256([]byte(descriptor))
	return hex.EncodeToString(sum[:16])
}
