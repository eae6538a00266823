package audio

import (
	"errors"
	"fmt"
)

// Stage names for Error. The speech layer maps these onto its own
// playback error type.
const (
	StageDecode = "decode"
	StagePlay   = "play"
)

// Error tags a decode or device failure with the stage it happened in.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("audio %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config controls the PCM output format the device is opened with.
// Every decoded clip is resampled to this format, so it is fixed for
// the lifetime of the process.
type Config struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BufferSize int // device buffer in bytes
}

// DefaultConfig returns the playback format used when none is given.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 4096,
	}
}

func (c Config) validate() error {
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}
