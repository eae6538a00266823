package platform

import (
	"sync"
	"sync/atomic"
)

// Job tracks one queued utterance from enqueue to completion. It is the
// cancellation point the dispatcher's handle registry holds on to.
type Job struct {
	started chan struct{}
	done    chan struct{}

	startOnce  sync.Once
	finishOnce sync.Once

	canceled atomic.Bool

	mu       sync.Mutex
	err      error
	cancelFn func() // kills the running process; set while speaking
}

// NewJob returns an idle job. Engines (including test fakes) drive it
// with Start and Finish.
func NewJob() *Job {
	return &Job{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start marks the utterance as actually speaking. Idempotent.
func (j *Job) Start() {
	j.startOnce.Do(func() { close(j.started) })
}

// Finish marks the job complete. A nil err is normal completion or a
// clean cancel; non-nil is an utterance-level failure. Idempotent; the
// first call wins.
func (j *Job) Finish(err error) {
	j.finishOnce.Do(func() {
		j.mu.Lock()
		j.err = err
		j.mu.Unlock()
		close(j.done)
	})
}

// Cancel stops the utterance: a running one is interrupted, a queued one
// completes immediately without speaking. Cancelled jobs finish without
// error, mirroring how platform engines report cancelled utterances as
// ended rather than failed.
func (j *Job) Cancel() {
	j.canceled.Store(true)

	j.mu.Lock()
	cancel := j.cancelFn
	j.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	// Not speaking yet: nothing to interrupt.
	j.Finish(nil)
}

// Canceled reports whether Cancel was called.
func (j *Job) Canceled() bool { return j.canceled.Load() }

// Started is closed when the engine begins speaking the utterance.
func (j *Job) Started() <-chan struct{} { return j.started }

// Done is closed when the utterance completes, fails, or is cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err reports the utterance-level failure, if any, once Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// finished reports whether Finish has run.
func (j *Job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// armCancel installs the process killer for the speaking phase and
// reports whether Cancel already ran. A Cancel that raced the install
// found no killer to call, so the caller must kill the process itself
// when armCancel returns true.
func (j *Job) armCancel(fn func()) bool {
	j.mu.Lock()
	j.cancelFn = fn
	j.mu.Unlock()
	return j.canceled.Load()
}

// clearCancelFn removes the process killer once the process exits.
func (j *Job) clearCancelFn() {
	j.mu.Lock()
	j.cancelFn = nil
	j.mu.Unlock()
}
