// Package mock provides a scriptable platform speech engine for testing.
package mock

import (
	"context"
	"sync"

	"github.com/dgnsrekt/outloud/speech/platform"
)

// Engine implements platform.Engine without touching any real synthesis
// tool. Utterances are recorded, jobs complete immediately unless the
// engine is put in blocking mode, and every failure mode is scriptable.
type Engine struct {
	mu sync.Mutex

	voices       []platform.Voice
	availableErr error
	speakErr     error
	utteranceErr error

	// blocking keeps jobs running until Release or Cancel.
	blocking bool
	release  chan struct{}

	utterances  []platform.Utterance
	jobs        []*platform.Job
	voicesCalls int
	cancels     int
	closed      bool
}

// New creates an available engine with no voices installed.
func New() *Engine {
	return &Engine{release: make(chan struct{})}
}

// SetVoices scripts what Voices returns.
func (e *Engine) SetVoices(voices []platform.Voice) {
	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
}

// SetAvailableErr makes the engine report itself missing.
func (e *Engine) SetAvailableErr(err error) {
	e.mu.Lock()
	e.availableErr = err
	e.mu.Unlock()
}

// SetSpeakErr makes Speak fail synchronously.
func (e *Engine) SetSpeakErr(err error) {
	e.mu.Lock()
	e.speakErr = err
	e.mu.Unlock()
}

// SetUtteranceErr makes queued utterances fail at the job level, the way
// a synthesis process exiting nonzero does.
func (e *Engine) SetUtteranceErr(err error) {
	e.mu.Lock()
	e.utteranceErr = err
	e.mu.Unlock()
}

// SetBlocking keeps jobs unfinished until Release or Cancel, so tests
// can observe in-flight state.
func (e *Engine) SetBlocking(blocking bool) {
	e.mu.Lock()
	e.blocking = blocking
	e.mu.Unlock()
}

// Release finishes every blocked job.
func (e *Engine) Release() {
	e.mu.Lock()
	ch := e.release
	e.release = make(chan struct{})
	e.mu.Unlock()
	close(ch)
}

// Utterances returns everything spoken so far.
func (e *Engine) Utterances() []platform.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]platform.Utterance, len(e.utterances))
	copy(out, e.utterances)
	return out
}

// VoicesCalls reports how many times Voices ran.
func (e *Engine) VoicesCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voicesCalls
}

// Cancels reports how many times Cancel ran.
func (e *Engine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// Available implements platform.Engine.
func (e *Engine) Available() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.availableErr
}

// Voices implements platform.Engine.
func (e *Engine) Voices(context.Context) ([]platform.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voicesCalls++
	if e.availableErr != nil {
		return nil, e.availableErr
	}
	out := make([]platform.Voice, len(e.voices))
	copy(out, e.voices)
	return out, nil
}

// Speak implements platform.Engine. The job starts immediately and
// finishes with the scripted utterance error, or stays live in blocking
// mode.
func (e *Engine) Speak(ctx context.Context, u platform.Utterance) (*platform.Job, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, platform.ErrEngineClosed
	}
	if e.availableErr != nil {
		err := e.availableErr
		e.mu.Unlock()
		return nil, err
	}
	if e.speakErr != nil {
		err := e.speakErr
		e.mu.Unlock()
		return nil, err
	}

	e.utterances = append(e.utterances, u)
	job := platform.NewJob()
	e.jobs = append(e.jobs, job)
	uttErr := e.utteranceErr
	blocking := e.blocking
	release := e.release
	e.mu.Unlock()

	job.Start()
	if blocking {
		go func() {
			select {
			case <-release:
			case <-job.Done():
				return
			case <-ctx.Done():
				job.Finish(ctx.Err())
				return
			}
			job.Finish(uttErr)
		}()
		return job, nil
	}

	job.Finish(uttErr)
	return job, nil
}

// Cancel implements platform.Engine.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancels++
	jobs := make([]*platform.Job, len(e.jobs))
	copy(jobs, e.jobs)
	e.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
}

// Close implements platform.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.Cancel()
	return nil
}
