package speech

import (
	"sync"

	"github.com/dgnsrekt/outloud/speech/platform"
)

// Handle is live speech produced by a successful speak call. The
// dispatcher keeps every live handle registered so Stop can cancel
// in-flight playback from any adapter uniformly.
type Handle interface {
	// Provider identifies the adapter that produced the audio.
	Provider() Provider
	// Stop cancels playback or the utterance. Idempotent.
	Stop()
	// Done is closed when the speech completes, errors, or is stopped.
	Done() <-chan struct{}
	// Err reports the terminal error, if any, once Done is closed.
	Err() error
}

// playbackHandle wraps remote-sourced audio playing through the Player.
type playbackHandle struct {
	provider Provider
	playback Playback
}

func (h *playbackHandle) Provider() Provider    { return h.provider }
func (h *playbackHandle) Stop()                 { h.playback.Stop() }
func (h *playbackHandle) Done() <-chan struct{} { return h.playback.Done() }
func (h *playbackHandle) Err() error            { return h.playback.Err() }

// utteranceHandle wraps a platform engine job.
type utteranceHandle struct {
	job *platform.Job

	mu  sync.Mutex
	err error
}

func (h *utteranceHandle) Provider() Provider    { return ProviderLocal }
func (h *utteranceHandle) Stop()                 { h.job.Cancel() }
func (h *utteranceHandle) Done() <-chan struct{} { return h.job.Done() }

func (h *utteranceHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *utteranceHandle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}
