package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/outloud/speech/platform"
)

// LocalAdapter speaks through the operating system's speech engine. It
// needs no credential and no network, which is what makes it the
// terminal fallback for the remote providers.
type LocalAdapter struct {
	engine platform.Engine
	log    *log.Logger

	// Installed voices do not change mid-process, so the first
	// successful listing is kept.
	mu     sync.Mutex
	voices []Voice
}

// LocalOption configures the adapter.
type LocalOption func(*LocalAdapter)

// WithLocalLogger overrides the logger.
func WithLocalLogger(logger *log.Logger) LocalOption {
	return func(a *LocalAdapter) { a.log = logger }
}

// NewLocalAdapter creates the adapter around a platform engine.
func NewLocalAdapter(engine platform.Engine, opts ...LocalOption) *LocalAdapter {
	a := &LocalAdapter{
		engine: engine,
		log:    log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider identifies the backend.
func (a *LocalAdapter) Provider() Provider { return ProviderLocal }

// Voices lists the installed platform voices.
func (a *LocalAdapter) Voices(ctx context.Context) ([]Voice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.voices == nil {
		pv, err := a.engine.Voices(ctx)
		if err != nil {
			if errors.Is(err, platform.ErrUnavailable) {
				return nil, &UnsupportedPlatformError{Reason: err.Error()}
			}
			return nil, err
		}
		voices := make([]Voice, len(pv))
		for i, v := range pv {
			voices[i] = Voice{ID: v.ID, Name: v.Name, Language: v.Language, Gender: v.Gender}
		}
		a.voices = voices
	}

	out := make([]Voice, len(a.voices))
	copy(out, a.voices)
	return out, nil
}

// Speak queues req.Text on the platform engine. The pause transform is
// applied exactly once, here, so text that already passed through it
// must not be resubmitted. OnStart fires when the engine begins the
// utterance; utterance failures surface through OnError and the handle,
// never as a return value, once the utterance is queued.
func (a *LocalAdapter) Speak(ctx context.Context, req Request, params LocalParams) (Handle, error) {
	if err := a.engine.Available(); err != nil {
		return nil, &UnsupportedPlatformError{Reason: err.Error()}
	}

	utterance := platform.Utterance{
		Text:   InsertPauses(req.Text),
		Voice:  a.resolveVoice(ctx, params.Voice),
		Rate:   params.Rate,
		Pitch:  params.Pitch,
		Volume: params.Volume,
	}

	job, err := a.engine.Speak(ctx, utterance)
	if err != nil {
		if errors.Is(err, platform.ErrUnavailable) {
			return nil, &UnsupportedPlatformError{Reason: err.Error()}
		}
		return nil, err
	}

	handle := &utteranceHandle{job: job}
	go watchUtterance(job, handle, req.Callbacks)
	return handle, nil
}

// resolveVoice maps the configured voice pin to an installed voice ID,
// or picks one by preference order. An empty result leaves the choice
// to the engine.
func (a *LocalAdapter) resolveVoice(ctx context.Context, pin string) string {
	voices, err := a.Voices(ctx)
	if err != nil {
		a.log.Debug("voice listing failed, using platform default", "error", err)
		return ""
	}
	if len(voices) == 0 {
		return ""
	}

	if pin != "" {
		for _, v := range voices {
			if strings.EqualFold(v.Name, pin) || strings.EqualFold(v.ID, pin) {
				return v.ID
			}
		}
		a.log.Warn("configured voice not installed, selecting automatically", "voice", pin)
	}

	return SelectVoice(voices, preferredVoiceNames).ID
}

// watchUtterance fires the lifecycle callbacks as the job progresses. A
// job cancelled before it starts skips OnStart and goes straight to its
// terminal callback.
func watchUtterance(job *platform.Job, handle *utteranceHandle, cb Callbacks) {
	select {
	case <-job.Started():
		cb.start()
	case <-job.Done():
		// Both channels are ready when the job completed before the
		// watcher ran; an utterance that did start still owes OnStart.
		select {
		case <-job.Started():
			cb.start()
		default:
		}
	}

	<-job.Done()
	if err := job.Err(); err != nil {
		handle.setErr(err)
		cb.fail(err)
		return
	}
	cb.end()
}
