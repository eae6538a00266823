package speech

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorTaxonomyUnwraps(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&MissingCredentialError{Provider: ProviderOpenAI}, ErrMissingCredential},
		{&RemoteSynthesisError{Provider: ProviderElevenLabs, Status: 401}, ErrRemoteSynthesis},
		{&PlaybackError{Stage: "decode", Cause: errors.New("bad frame")}, ErrPlayback},
		{&UnsupportedPlatformError{Reason: "no engine"}, ErrUnsupportedPlatform},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%T does not unwrap to %v", tt.err, tt.sentinel)
		}
	}
}

func TestRemoteSynthesisErrorMessage(t *testing.T) {
	err := &RemoteSynthesisError{Provider: ProviderOpenAI, Status: 401, Body: "invalid api key"}
	msg := err.Error()
	for _, want := range []string{"openai", "401", "invalid api key"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}

	var rse *RemoteSynthesisError
	if !errors.As(error(err), &rse) {
		t.Error("errors.As failed for RemoteSynthesisError")
	}
}

func TestRemoteSynthesisErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		err := &RemoteSynthesisError{Provider: ProviderOpenAI, Status: tt.status}
		if got := err.Retryable(); got != tt.want {
			t.Errorf("Retryable() for status %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}
