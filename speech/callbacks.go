package speech

import "sync"

// Callbacks carries the lifecycle notifications for one speak request.
// Any field may be nil. The dispatcher guarantees each fires at most once
// per request, and that OnEnd and OnError are mutually exclusive, no
// matter which adapter ends up serving the request.
type Callbacks struct {
	// OnStart fires when the serving adapter begins work: immediately
	// before a remote synthesis call, or when the platform engine starts
	// speaking the utterance.
	OnStart func()

	// OnEnd fires when playback completes or is stopped.
	OnEnd func()

	// OnError fires in place of OnEnd when the request terminally fails.
	OnError func(error)
}

// once wraps the callbacks so OnStart fires at most once and exactly one
// of OnEnd/OnError can ever fire. The fallback path may touch the same
// callbacks from two adapters; the wrappers are what keep the at-most-once
// contract intact.
func (c Callbacks) once() Callbacks {
	var startOnce, doneOnce sync.Once
	out := Callbacks{}
	if start := c.OnStart; start != nil {
		out.OnStart = func() { startOnce.Do(start) }
	}
	if end := c.OnEnd; end != nil {
		out.OnEnd = func() { doneOnce.Do(end) }
	} else {
		out.OnEnd = func() { doneOnce.Do(func() {}) }
	}
	if onErr := c.OnError; onErr != nil {
		out.OnError = func(err error) { doneOnce.Do(func() { onErr(err) }) }
	} else {
		out.OnError = func(err error) { doneOnce.Do(func() {}) }
	}
	return out
}

// start invokes OnStart when set.
func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

// end invokes OnEnd when set.
func (c Callbacks) end() {
	if c.OnEnd != nil {
		c.OnEnd()
	}
}

// fail invokes OnError when set.
func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
