package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

type flavor int

const (
	flavorESpeak flavor = iota
	flavorSay
	flavorPowerShell
)

func (f flavor) String() string {
	switch f {
	case flavorESpeak:
		return "espeak"
	case flavorSay:
		return "say"
	case flavorPowerShell:
		return "powershell"
	default:
		return "unknown"
	}
}

// Base speaking rate in words per minute that rate multiplier 1.0 maps to.
const defaultWordsPerMinute = 175

// ExecEngine speaks through the platform's command-line synthesis tool:
// espeak-ng/espeak on Linux and the BSDs, say on macOS, and PowerShell's
// System.Speech on Windows. Utterances queue internally and a single
// worker speaks them in order, which is the sequential behavior callers
// rely on when they issue overlapping speak calls.
type ExecEngine struct {
	flavor     flavor
	binPath    string
	resolveErr error

	queue      chan *pending
	quit       chan struct{}
	workerDone chan struct{}

	mu     sync.Mutex
	jobs   map[*Job]struct{}
	closed bool

	// run executes one utterance; tests swap it out.
	run func(ctx context.Context, u Utterance, j *Job) error
}

type pending struct {
	ctx context.Context
	utt Utterance
	job *Job
}

// New builds an engine for the current platform. Construction always
// succeeds; when no synthesis tool resolves, Available, Voices, and Speak
// report ErrUnavailable.
func New() *ExecEngine {
	e := &ExecEngine{
		queue:      make(chan *pending, 64),
		quit:       make(chan struct{}),
		workerDone: make(chan struct{}),
		jobs:       make(map[*Job]struct{}),
	}
	e.flavor, e.binPath, e.resolveErr = resolveBackend(runtime.GOOS)
	e.run = e.execRun
	go e.worker()
	return e
}

// resolveBackend picks the synthesis command for an OS.
func resolveBackend(goos string) (flavor, string, error) {
	type candidate struct {
		f    flavor
		bins []string
	}
	var candidates []candidate
	switch goos {
	case "darwin":
		candidates = []candidate{{flavorSay, []string{"say"}}}
	case "windows":
		candidates = []candidate{{flavorPowerShell, []string{"powershell"}}}
	default:
		candidates = []candidate{{flavorESpeak, []string{"espeak-ng", "espeak"}}}
	}
	for _, c := range candidates {
		for _, bin := range c.bins {
			if path, err := exec.LookPath(bin); err == nil {
				return c.f, path, nil
			}
		}
	}
	return 0, "", fmt.Errorf("%w on %s", ErrUnavailable, goos)
}

// Available reports whether a synthesis tool was found.
func (e *ExecEngine) Available() error { return e.resolveErr }

// Speak queues an utterance and returns its job. The utterance is spoken
// when the worker reaches it.
func (e *ExecEngine) Speak(ctx context.Context, u Utterance) (*Job, error) {
	if e.resolveErr != nil {
		return nil, e.resolveErr
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	job := NewJob()
	e.jobs[job] = struct{}{}
	e.mu.Unlock()

	p := &pending{ctx: ctx, utt: u, job: job}
	select {
	case e.queue <- p:
		return job, nil
	case <-e.quit:
		e.forget(job)
		job.Finish(ErrEngineClosed)
		return nil, ErrEngineClosed
	case <-ctx.Done():
		e.forget(job)
		job.Finish(ctx.Err())
		return nil, ctx.Err()
	}
}

// Cancel interrupts the current utterance and completes everything still
// queued without speaking it.
func (e *ExecEngine) Cancel() {
	e.mu.Lock()
	jobs := make([]*Job, 0, len(e.jobs))
	for j := range e.jobs {
		jobs = append(jobs, j)
	}
	e.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
}

// Close cancels outstanding utterances and stops the worker.
func (e *ExecEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.quit)
	e.Cancel()
	<-e.workerDone
	return nil
}

func (e *ExecEngine) worker() {
	defer close(e.workerDone)
	for {
		select {
		case <-e.quit:
			return
		case p := <-e.queue:
			e.speakOne(p)
		}
	}
}

func (e *ExecEngine) speakOne(p *pending) {
	defer e.forget(p.job)

	if p.job.finished() || p.job.Canceled() {
		p.job.Finish(nil)
		return
	}
	if err := p.ctx.Err(); err != nil {
		p.job.Finish(err)
		return
	}
	err := e.run(p.ctx, p.utt, p.job)
	if p.job.Canceled() {
		// A killed process exits nonzero; a cancelled utterance still
		// ends cleanly.
		err = nil
	}
	p.job.Finish(err)
}

func (e *ExecEngine) forget(j *Job) {
	e.mu.Lock()
	delete(e.jobs, j)
	e.mu.Unlock()
}

// execRun speaks one utterance by running the synthesis command to
// completion.
func (e *ExecEngine) execRun(ctx context.Context, u Utterance, j *Job) error {
	name, args := e.speakCommand(u)

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", e.flavor, err)
	}

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	if j.armCancel(kill) {
		// Cancel arrived between the queue check and the install and had
		// nothing to call; killing twice is harmless.
		kill()
	}
	j.Start()

	err := cmd.Wait()
	j.clearCancelFn()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", e.flavor, err, detail)
		}
		return fmt.Errorf("%s: %w", e.flavor, err)
	}
	return nil
}

// speakCommand maps an utterance onto the platform tool's flag set. Rate,
// pitch, and volume are multipliers around each tool's defaults; tools
// without a matching control simply ignore that parameter.
func (e *ExecEngine) speakCommand(u Utterance) (string, []string) {
	switch e.flavor {
	case flavorSay:
		args := []string{}
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
		args = append(args, "-r", strconv.Itoa(wordsPerMinute(u.Rate)))
		args = append(args, u.Text)
		return e.binPath, args

	case flavorPowerShell:
		return e.binPath, []string{"-NoProfile", "-Command", powerShellSpeakScript(u)}

	default: // espeak
		args := []string{}
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
		args = append(args,
			"-s", strconv.Itoa(wordsPerMinute(u.Rate)),
			"-p", strconv.Itoa(espeakPitch(u.Pitch)),
			"-a", strconv.Itoa(espeakAmplitude(u.Volume)),
		)
		args = append(args, u.Text)
		return e.binPath, args
	}
}

// wordsPerMinute converts a rate multiplier to the wpm scale say and
// espeak share, clamped to the range espeak accepts.
func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1.0
	}
	wpm := int(rate * defaultWordsPerMinute)
	if wpm < 80 {
		wpm = 80
	}
	if wpm > 450 {
		wpm = 450
	}
	return wpm
}

// espeakPitch converts a pitch multiplier to espeak's 0-99 scale, where
// 50 is the default.
func espeakPitch(pitch float64) int {
	if pitch <= 0 {
		pitch = 1.0
	}
	p := int(pitch * 50)
	if p < 0 {
		p = 0
	}
	if p > 99 {
		p = 99
	}
	return p
}

// espeakAmplitude converts a 0-1 volume to espeak's 0-200 amplitude,
// where 100 is the default.
func espeakAmplitude(volume float64) int {
	if volume <= 0 {
		volume = 1.0
	}
	a := int(volume * 100)
	if a < 0 {
		a = 0
	}
	if a > 200 {
		a = 200
	}
	return a
}

// powerShellSpeakScript builds the System.Speech one-liner for Windows.
func powerShellSpeakScript(u Utterance) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if u.Voice != "" {
		fmt.Fprintf(&b, "$s.SelectVoice('%s'); ", psQuote(u.Voice))
	}
	fmt.Fprintf(&b, "$s.Rate = %d; ", psRate(u.Rate))
	fmt.Fprintf(&b, "$s.Volume = %d; ", psVolume(u.Volume))
	fmt.Fprintf(&b, "$s.Speak('%s')", psQuote(u.Text))
	return b.String()
}

// psRate converts a rate multiplier to System.Speech's -10..10 scale.
func psRate(rate float64) int {
	if rate <= 0 {
		rate = 1.0
	}
	r := int((rate - 1.0) * 10)
	if r < -10 {
		r = -10
	}
	if r > 10 {
		r = 10
	}
	return r
}

// psVolume converts a 0-1 volume to System.Speech's 0-100 scale.
func psVolume(volume float64) int {
	if volume <= 0 {
		volume = 1.0
	}
	v := int(volume * 100)
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v
}

// psQuote escapes a string for a single-quoted PowerShell literal.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
