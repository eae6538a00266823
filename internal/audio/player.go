package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoContext is shared across all players. oto allows only one context
// per process, so it is created on first use and kept for the process
// lifetime (oto v3 contexts have no Close).
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(cfg.BufferSize) * time.Second / time.Duration(cfg.SampleRate*cfg.Channels*2),
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("open audio device: %w", err)
			return
		}
		<-readyChan
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// Player plays raw 16-bit little-endian PCM on the default output
// device. Each Play returns a Playback handle; starting a new clip does
// not stop earlier ones.
type Player struct {
	ctx *oto.Context
	cfg Config
}

// NewPlayer opens the output device in the given format. The device is
// opened once per process; later calls must use the same format.
func NewPlayer(cfg Config) (*Player, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx, err := sharedContext(cfg)
	if err != nil {
		return nil, err
	}
	return &Player{ctx: ctx, cfg: cfg}, nil
}

// Play starts playback of a PCM clip and returns immediately. The
// returned Playback settles when the clip drains, fails, or is stopped.
func (p *Player) Play(pcm []byte) (*Playback, error) {
	if len(pcm) == 0 {
		return nil, errors.New("pcm data is empty")
	}

	// Copy so the caller can reuse its buffer. The playback holds the
	// copy alive until it settles; releasing it mid-stream causes static.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	pb := &Playback{
		data:     data,
		duration: pcmDuration(len(data), p.cfg),
		done:     make(chan struct{}),
	}
	pb.player = p.ctx.NewPlayer(bytes.NewReader(data))
	pb.player.Play()

	go pb.watch()
	return pb, nil
}

func pcmDuration(n int, cfg Config) time.Duration {
	samples := n / (cfg.Channels * 2)
	return time.Duration(samples) * time.Second / time.Duration(cfg.SampleRate)
}

// Playback tracks one clip from Play until it settles. Done is closed
// exactly once, whether the clip drained, the device failed, or Stop
// was called.
type Playback struct {
	player   *oto.Player
	data     []byte
	duration time.Duration

	done       chan struct{}
	settleOnce sync.Once

	mu  sync.Mutex
	err error
}

// watch polls until the clip drains or the device reports an error.
// oto stops the player itself once the reader is exhausted and the
// buffer is empty.
func (pb *Playback) watch() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if pb.settled() {
			return
		}
		if err := pb.player.Err(); err != nil {
			pb.finish(err)
			return
		}
		if !pb.player.IsPlaying() {
			pb.finish(nil)
			return
		}
	}
}

// Stop halts the clip. Stopping a settled playback is a no-op.
func (pb *Playback) Stop() {
	pb.finish(nil)
}

func (pb *Playback) finish(err error) {
	pb.settleOnce.Do(func() {
		pb.mu.Lock()
		pb.err = err
		pb.mu.Unlock()

		pb.player.Pause()
		pb.player.Close()
		pb.data = nil
		close(pb.done)
	})
}

func (pb *Playback) settled() bool {
	select {
	case <-pb.done:
		return true
	default:
		return false
	}
}

// Done is closed when the playback settles.
func (pb *Playback) Done() <-chan struct{} {
	return pb.done
}

// Err reports the device error that ended the playback, if any. It is
// meaningful only after Done is closed.
func (pb *Playback) Err() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.err
}

// Duration reports the clip length implied by the PCM size.
func (pb *Playback) Duration() time.Duration {
	return pb.duration
}
