package speech

import (
	"errors"
	"fmt"
)

// Common errors returned by the speech package.
var (
	// ErrUnknownProvider is returned when a provider name or value does not
	// resolve to one of the known backends.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingCredential is returned when the selected remote provider has
	// no stored credential. It is raised before any network call.
	ErrMissingCredential = errors.New("missing credential")

	// ErrRemoteSynthesis is returned when a remote provider answers with a
	// non-success HTTP status.
	ErrRemoteSynthesis = errors.New("remote synthesis failed")

	// ErrPlayback is returned when decoded audio cannot be played through
	// the platform audio primitive.
	ErrPlayback = errors.New("audio playback failed")

	// ErrUnsupportedPlatform is returned when no platform speech engine is
	// available at all.
	ErrUnsupportedPlatform = errors.New("platform speech synthesis unavailable")

	// ErrDispatcherClosed is returned by operations on a closed Dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// MissingCredentialError reports a remote request that was preempted locally
// because no credential is stored for the provider.
type MissingCredentialError struct {
	Provider Provider
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s: no credential stored for %s", ErrMissingCredential, e.Provider)
}

func (e *MissingCredentialError) Unwrap() error { return ErrMissingCredential }

// RemoteSynthesisError reports a non-success HTTP response from a remote
// provider. Body carries the response body text for diagnostics.
type RemoteSynthesisError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *RemoteSynthesisError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s returned HTTP %d", ErrRemoteSynthesis, e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: %s returned HTTP %d: %s", ErrRemoteSynthesis, e.Provider, e.Status, e.Body)
}

func (e *RemoteSynthesisError) Unwrap() error { return ErrRemoteSynthesis }

// Retryable reports whether the failure is worth retrying against the same
// provider (rate limit or server-side error). The dispatcher does not retry
// the same provider, but callers running their own loops can.
func (e *RemoteSynthesisError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// PlaybackError reports a failure in the decode or playback stage after
// synthesis succeeded.
type PlaybackError struct {
	Stage string // "decode" or "play"
	Cause error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPlayback, e.Stage, e.Cause)
}

func (e *PlaybackError) Unwrap() error { return ErrPlayback }

// UnsupportedPlatformError reports that the local synthesis primitive is
// absent, leaving no terminal fallback.
type UnsupportedPlatformError struct {
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Reason == "" {
		return ErrUnsupportedPlatform.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnsupportedPlatform, e.Reason)
}

func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }
