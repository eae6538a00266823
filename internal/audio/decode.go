package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	decodeTimeout = 15 * time.Second

	// maxPCMSize caps decoder output. A minute of mono 44.1kHz PCM is
	// about 5MB, so 20MB covers any sane utterance.
	maxPCMSize = 20 * 1024 * 1024
)

// Decoder converts encoded audio files to raw PCM via ffmpeg. The
// output format matches Config: signed 16-bit little-endian at the
// configured rate and channel count.
type Decoder struct {
	ffmpegPath string
	cfg        Config
}

// NewDecoder locates ffmpeg on PATH.
func NewDecoder(cfg Config) (*Decoder, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &Decoder{ffmpegPath: path, cfg: cfg}, nil
}

// Decode reads the audio file at path and returns PCM. The format hint
// names the encoding the synthesis provider produced; container formats
// are sniffed by ffmpeg, but headerless PCM needs the hint to supply
// the input layout.
func (d *Decoder) Decode(ctx context.Context, path, format string) ([]byte, error) {
	args := rawInputArgs(format)
	args = append(args, "-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(d.cfg.SampleRate),
		"-ac", strconv.Itoa(d.cfg.Channels),
		"-",
	)

	ctx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	cmd.Stdin = strings.NewReader("")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg timeout: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no PCM output, stderr: %s", strings.TrimSpace(stderr.String()))
	}
	if len(pcm) > maxPCMSize {
		return nil, fmt.Errorf("ffmpeg PCM output too large: %d bytes (max %d)", len(pcm), maxPCMSize)
	}

	return pcm, nil
}

// rawInputArgs returns the input-format flags headerless PCM needs.
// "pcm" is the OpenAI response format (24kHz mono s16le); "pcm_<rate>"
// are the ElevenLabs variants.
func rawInputArgs(format string) []string {
	switch {
	case format == "pcm":
		return []string{"-f", "s16le", "-ar", "24000", "-ac", "1"}
	case strings.HasPrefix(format, "pcm_"):
		rate, err := strconv.Atoi(strings.TrimPrefix(format, "pcm_"))
		if err != nil || rate <= 0 {
			rate = 44100
		}
		return []string{"-f", "s16le", "-ar", strconv.Itoa(rate), "-ac", "1"}
	default:
		return nil
	}
}
