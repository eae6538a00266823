package speech

import (
	"context"
	"errors"

	"github.com/dgnsrekt/outloud/internal/audio"
)

// audioPlayer adapts the audio pipeline to the Player interface,
// translating stage-tagged audio errors into PlaybackError.
type audioPlayer struct {
	pipe *audio.Pipeline
}

func newAudioPlayer() *audioPlayer {
	return &audioPlayer{pipe: audio.NewPipeline()}
}

func (p *audioPlayer) Play(ctx context.Context, data []byte, format string) (Playback, error) {
	pb, err := p.pipe.Play(ctx, data, format)
	if err != nil {
		return nil, asPlaybackError(err)
	}
	return &audioPlayback{inner: pb}, nil
}

type audioPlayback struct {
	inner *audio.Playback
}

func (b *audioPlayback) Stop()                 { b.inner.Stop() }
func (b *audioPlayback) Done() <-chan struct{} { return b.inner.Done() }

func (b *audioPlayback) Err() error {
	if err := b.inner.Err(); err != nil {
		return &PlaybackError{Stage: "play", Cause: err}
	}
	return nil
}

func asPlaybackError(err error) error {
	var ae *audio.Error
	if errors.As(err, &ae) {
		return &PlaybackError{Stage: ae.Stage, Cause: ae.Err}
	}
	return &PlaybackError{Stage: "play", Cause: err}
}
