// Package platform drives the operating system's speech engine: listing
// its voices, speaking utterances through it, and cancelling them. It is
// the no-network primitive the speech package's local adapter builds on.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when no speech synthesis backend exists
	// on this platform.
	ErrUnavailable = errors.New("no speech synthesis backend available")

	// ErrEngineClosed is returned for operations on a closed engine.
	ErrEngineClosed = errors.New("speech engine closed")
)

// Voice is one installed platform voice.
type Voice struct {
	ID       string // value accepted by the engine's voice flag
	Name     string
	Language string // normalized BCP 47 shape, e.g. en-US
	Gender   string // "male", "female", or ""
}

// Utterance is a single speech request, with prosody multipliers around
// the platform defaults (1.0 means unchanged).
type Utterance struct {
	Text   string
	Voice  string // voice ID; empty means the platform default
	Rate   float64
	Pitch  float64
	Volume float64
}

// Engine is a platform speech backend. Utterances are queued internally
// and spoken one at a time; Speak returns as soon as the utterance is
// queued, and the returned Job reports start and completion.
type Engine interface {
	// Available reports whether a synthesis backend was found, returning
	// ErrUnavailable (wrapped with detail) when not.
	Available() error

	// Voices lists the installed voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak queues an utterance.
	Speak(ctx context.Context, u Utterance) (*Job, error)

	// Cancel stops the current utterance and discards everything queued.
	Cancel()

	// Close cancels outstanding work and shuts the engine down.
	Close() error
}
