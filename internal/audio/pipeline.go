package audio

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Pipeline turns encoded synthesis output into sound: the payload is
// staged in a temp file, decoded to PCM, and handed to the device. The
// temp file lives as long as its playback and is removed on every exit
// path, including decode and device failures.
//
// ffmpeg and the output device are acquired on first use so that
// building a Pipeline never touches the audio stack. Processes that
// only list voices or hit the synthesis API never open the device.
type Pipeline struct {
	cfg     Config
	tempDir string

	initOnce sync.Once
	dec      *Decoder
	decErr   error
	player   *Player
	playErr  error
}

// NewPipeline returns a pipeline with the default output format.
func NewPipeline() *Pipeline {
	return &Pipeline{cfg: DefaultConfig(), tempDir: os.TempDir()}
}

func (p *Pipeline) init() {
	p.initOnce.Do(func() {
		p.dec, p.decErr = NewDecoder(p.cfg)
		p.player, p.playErr = NewPlayer(p.cfg)
	})
}

// Play decodes one clip and starts it on the output device. The format
// hint names the provider's encoding ("mp3", "pcm", "mp3_44100_128").
// Errors carry the stage they happened in.
func (p *Pipeline) Play(ctx context.Context, data []byte, format string) (*Playback, error) {
	p.init()
	if p.decErr != nil {
		return nil, &Error{Stage: StageDecode, Err: p.decErr}
	}
	if p.playErr != nil {
		return nil, &Error{Stage: StagePlay, Err: p.playErr}
	}

	tmp, err := p.stage(data, format)
	if err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}

	pcm, err := p.dec.Decode(ctx, tmp, format)
	if err != nil {
		os.Remove(tmp)
		return nil, &Error{Stage: StageDecode, Err: err}
	}

	pb, err := p.player.Play(pcm)
	if err != nil {
		os.Remove(tmp)
		return nil, &Error{Stage: StagePlay, Err: err}
	}

	// The staged file backs the live clip; drop it once the playback
	// settles, however it settles.
	go func() {
		<-pb.Done()
		os.Remove(tmp)
	}()

	return pb, nil
}

// stage writes the payload to a temp file for ffmpeg to read.
func (p *Pipeline) stage(data []byte, format string) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "outloud-*."+fileExt(format))
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp audio file: %w", err)
	}
	return f.Name(), nil
}

func fileExt(format string) string {
	switch {
	case format == "" || strings.HasPrefix(format, "mp3"):
		return "mp3"
	case strings.HasPrefix(format, "pcm"):
		return "raw"
	case strings.HasPrefix(format, "opus"):
		return "opus"
	default:
		return format
	}
}
