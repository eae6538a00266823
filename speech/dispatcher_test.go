package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/outloud/speech/platform"
)

func TestSpeakNoCredentialsRoutesLocal(t *testing.T) {
	d, engine, player := newTestDispatcher(Config{},
		WithHTTPClient(noNetworkClient(t)))
	defer d.Close()

	if got := d.Active(); got != ProviderLocal {
		t.Fatalf("active provider = %v, want local", got)
	}

	var starts, ends atomic.Int32
	endCh := make(chan struct{})
	_, err := d.Speak(context.Background(), "Hello, world!", Callbacks{
		OnStart: func() { starts.Add(1) },
		OnEnd:   func() { ends.Add(1); close(endCh) },
		OnError: func(err error) { t.Errorf("unexpected OnError: %v", err) },
	})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, endCh, "OnEnd")

	if starts.Load() != 1 || ends.Load() != 1 {
		t.Errorf("OnStart fired %d times, OnEnd %d times; want 1 and 1", starts.Load(), ends.Load())
	}
	if got := engine.Utterances(); len(got) != 1 {
		t.Fatalf("engine spoke %d utterances, want 1", len(got))
	}
	if got := player.plays(); len(got) != 0 {
		t.Errorf("remote player was used %d times, want 0", len(got))
	}
}

func TestSpeakAppliesPauseTransformOnce(t *testing.T) {
	d, engine, _ := newTestDispatcher(Config{})
	defer d.Close()

	const text = "Hello, world! How are you?"
	h, err := d.Speak(context.Background(), text, Callbacks{})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, h.Done(), "handle")

	utts := engine.Utterances()
	if len(utts) != 1 {
		t.Fatalf("engine spoke %d utterances, want 1", len(utts))
	}
	if want := InsertPauses(text); utts[0].Text != want {
		t.Errorf("utterance text = %q, want %q", utts[0].Text, want)
	}
}

func TestSpeakRemoteErrorFallsBackSilently(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	var events []FallbackEvent
	d, engine, _ := newTestDispatcher(
		Config{OpenAIKey: "bad-key"},
		WithOpenAIOptions(WithOpenAIBaseURL(srv.URL)),
		WithFallbackHook(func(e FallbackEvent) { events = append(events, e) }),
	)
	defer d.Close()

	if got := d.Active(); got != ProviderOpenAI {
		t.Fatalf("active provider = %v, want openai", got)
	}

	endCh := make(chan struct{})
	_, err := d.Speak(context.Background(), "hello", Callbacks{
		OnEnd:   func() { close(endCh) },
		OnError: func(err error) { t.Errorf("remote error must be swallowed, got OnError: %v", err) },
	})
	if err != nil {
		t.Fatalf("Speak should recover via fallback, got %v", err)
	}
	waitSignal(t, endCh, "OnEnd from fallback")

	if requests.Load() != 1 {
		t.Errorf("remote provider was called %d times, want exactly 1", requests.Load())
	}
	if got := engine.Utterances(); len(got) != 1 {
		t.Errorf("fallback spoke %d utterances, want 1", len(got))
	}

	if len(events) != 1 {
		t.Fatalf("fallback hook fired %d times, want 1", len(events))
	}
	e := events[0]
	if e.From != ProviderOpenAI || !e.Recovered || e.FallbackErr != nil {
		t.Errorf("unexpected fallback event: %+v", e)
	}
	var rse *RemoteSynthesisError
	if !errors.As(e.Err, &rse) || rse.Status != http.StatusUnauthorized {
		t.Errorf("swallowed error = %v, want RemoteSynthesisError with status 401", e.Err)
	}
}

func TestSpeakMissingCredentialSkipsNetwork(t *testing.T) {
	var events []FallbackEvent
	d, engine, _ := newTestDispatcher(
		Config{ProviderName: "openai"},
		WithHTTPClient(noNetworkClient(t)),
		WithFallbackHook(func(e FallbackEvent) { events = append(events, e) }),
	)
	defer d.Close()

	endCh := make(chan struct{})
	_, err := d.Speak(context.Background(), "hello", Callbacks{OnEnd: func() { close(endCh) }})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, endCh, "OnEnd")

	if got := engine.Utterances(); len(got) != 1 {
		t.Errorf("fallback spoke %d utterances, want 1", len(got))
	}
	if len(events) != 1 || !errors.Is(events[0].Err, ErrMissingCredential) {
		t.Errorf("expected one fallback event wrapping ErrMissingCredential, got %+v", events)
	}
}

func TestSwitchProviderLocalNeverContactsNetwork(t *testing.T) {
	d, engine, _ := newTestDispatcher(
		Config{OpenAIKey: "sk-valid"},
		WithHTTPClient(noNetworkClient(t)),
	)
	defer d.Close()

	if err := d.SwitchProvider(ProviderLocal, ""); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}

	h, err := d.Speak(context.Background(), "quiet now", Callbacks{})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, h.Done(), "handle")

	if got := engine.Utterances(); len(got) != 1 {
		t.Errorf("local engine spoke %d utterances, want 1", len(got))
	}
	if h.Provider() != ProviderLocal {
		t.Errorf("handle provider = %v, want local", h.Provider())
	}
}

func TestSwitchProviderStoresCredential(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{})
	defer d.Close()

	if err := d.SwitchProvider(ProviderElevenLabs, "xi-new"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}
	cfg := d.Config()
	if cfg.ElevenLabsKey != "xi-new" {
		t.Errorf("credential not stored: %q", cfg.ElevenLabsKey)
	}
	if d.Active() != ProviderElevenLabs {
		t.Errorf("active = %v, want elevenlabs", d.Active())
	}

	// empty credential keeps the stored one
	if err := d.SwitchProvider(ProviderElevenLabs, ""); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}
	if got := d.Config().ElevenLabsKey; got != "xi-new" {
		t.Errorf("empty credential replaced stored one: %q", got)
	}

	if err := d.SwitchProvider(Provider(42), ""); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestUpdateConfigShallowMerge(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{})
	defer d.Close()

	speed := 1.3
	if err := d.UpdateConfig(ProviderOpenAI, ConfigPatch{Speed: &speed}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	got := d.Config().OpenAI
	if got.Speed != 1.3 {
		t.Errorf("Speed = %v, want 1.3", got.Speed)
	}
	want := DefaultOpenAIParams()
	if got.Model != want.Model || got.Voice != want.Voice || got.Format != want.Format {
		t.Errorf("unrelated fields changed: %+v", got)
	}
}

func TestUpdateConfigRejectsUnknownProvider(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{})
	defer d.Close()

	if err := d.UpdateConfig(Provider(42), ConfigPatch{}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestUpdateConfigRejectsInvalidMerge(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{})
	defer d.Close()

	bad := 2.0
	if err := d.UpdateConfig(ProviderElevenLabs, ConfigPatch{Stability: &bad}); err == nil {
		t.Fatal("expected validation error for stability 2.0")
	}
	if got := d.Config().ElevenLabs.Stability; got != DefaultElevenLabsParams().Stability {
		t.Errorf("rejected patch still changed stability to %v", got)
	}
}

func TestSpeakRemoteSuccessPlaysClip(t *testing.T) {
	audio := []byte("fake-mp3-bytes")
	var started atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !started.Load() {
			t.Error("OnStart must fire before the synthesis request")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write(audio)
	}))
	defer srv.Close()

	d, engine, player := newTestDispatcher(
		Config{OpenAIKey: "sk-test"},
		WithOpenAIOptions(WithOpenAIBaseURL(srv.URL)),
	)
	defer d.Close()

	endCh := make(chan struct{})
	h, err := d.Speak(context.Background(), "hello", Callbacks{
		OnStart: func() { started.Store(true) },
		OnEnd:   func() { close(endCh) },
		OnError: func(err error) { t.Errorf("unexpected OnError: %v", err) },
	})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, endCh, "OnEnd")

	if h.Provider() != ProviderOpenAI {
		t.Errorf("handle provider = %v, want openai", h.Provider())
	}
	clips := player.plays()
	if len(clips) != 1 {
		t.Fatalf("player got %d clips, want 1", len(clips))
	}
	if string(clips[0].data) != string(audio) || clips[0].format != "mp3" {
		t.Errorf("played clip = (%q, %q)", clips[0].data, clips[0].format)
	}
	if got := engine.Utterances(); len(got) != 0 {
		t.Errorf("local engine spoke %d utterances, want 0", len(got))
	}
}

func TestSpeakElevenLabsRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "xi-test" {
			t.Errorf("xi-api-key = %q", got)
		}
		w.Write([]byte("mpeg"))
	}))
	defer srv.Close()

	d, _, player := newTestDispatcher(
		Config{ElevenLabsKey: "xi-test"},
		WithElevenLabsOptions(WithElevenLabsBaseURL(srv.URL)),
	)
	defer d.Close()

	if d.Active() != ProviderElevenLabs {
		t.Fatalf("active = %v, want elevenlabs", d.Active())
	}

	endCh := make(chan struct{})
	h, err := d.Speak(context.Background(), "bonjour", Callbacks{OnEnd: func() { close(endCh) }})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitSignal(t, endCh, "OnEnd")

	if h.Provider() != ProviderElevenLabs {
		t.Errorf("handle provider = %v, want elevenlabs", h.Provider())
	}
	if len(player.plays()) != 1 {
		t.Errorf("player got %d clips, want 1", len(player.plays()))
	}
}

func TestSpeakPlaybackFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	var events []FallbackEvent
	d, engine, player := newTestDispatcher(
		Config{OpenAIKey: "sk-test"},
		WithOpenAIOptions(WithOpenAIBaseURL(srv.URL)),
		WithFallbackHook(func(e FallbackEvent) { events = append(events, e) }),
	)
	defer d.Close()
	player.playErr = &PlaybackError{Stage: "play", Cause: errors.New("device busy")}

	endCh := make(chan struct{})
	_, err := d.Speak(context.Background(), "hello", Callbacks{
		OnEnd:   func() { close(endCh) },
		OnError: func(err error) { t.Errorf("playback error must be swallowed, got %v", err) },
	})
	if err != nil {
		t.Fatalf("Speak should recover via fallback, got %v", err)
	}
	waitSignal(t, endCh, "OnEnd from fallback")

	if got := engine.Utterances(); len(got) != 1 {
		t.Errorf("fallback spoke %d utterances, want 1", len(got))
	}
	if len(events) != 1 || !errors.Is(events[0].Err, ErrPlayback) {
		t.Errorf("expected fallback event wrapping ErrPlayback, got %+v", events)
	}
}

func TestSpeakTerminalFallbackFailureSurfaces(t *testing.T) {
	d, engine, _ := newTestDispatcher(
		Config{ProviderName: "openai"},
		WithHTTPClient(noNetworkClient(t)),
	)
	defer d.Close()
	engine.SetAvailableErr(platform.ErrUnavailable)

	var gotErr error
	errCh := make(chan struct{})
	_, err := d.Speak(context.Background(), "hello", Callbacks{
		OnEnd:   func() { t.Error("OnEnd must not fire when everything fails") },
		OnError: func(err error) { gotErr = err; close(errCh) },
	})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	waitSignal(t, errCh, "OnError")

	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Speak error = %v, want ErrUnsupportedPlatform", err)
	}
	if gotErr == nil || !errors.Is(gotErr, ErrUnsupportedPlatform) {
		t.Errorf("OnError got %v, want the same terminal error", gotErr)
	}
}

func TestStopCancelsLiveHandles(t *testing.T) {
	d, engine, _ := newTestDispatcher(Config{})
	defer d.Close()
	engine.SetBlocking(true)

	h1, err := d.Speak(context.Background(), "first", Callbacks{})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	h2, err := d.Speak(context.Background(), "second", Callbacks{})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if h1 == h2 {
		t.Fatal("concurrent speaks shared a handle")
	}

	d.Stop()
	waitSignal(t, h1.Done(), "first handle after Stop")
	waitSignal(t, h2.Done(), "second handle after Stop")

	if engine.Cancels() == 0 {
		t.Error("Stop did not reach the platform engine")
	}
}

func TestDispatcherClosed(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// closing twice is fine
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := d.Speak(context.Background(), "x", Callbacks{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Speak after Close = %v, want ErrDispatcherClosed", err)
	}
	if err := d.SwitchProvider(ProviderLocal, ""); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("SwitchProvider after Close = %v, want ErrDispatcherClosed", err)
	}
	if err := d.UpdateConfig(ProviderLocal, ConfigPatch{}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("UpdateConfig after Close = %v, want ErrDispatcherClosed", err)
	}
}

func TestVoicesFor(t *testing.T) {
	d, engine, _ := newTestDispatcher(Config{})
	defer d.Close()
	engine.SetVoices([]platform.Voice{{ID: "en-us", Name: "english-us", Language: "en-US"}})

	openai, err := d.VoicesFor(context.Background(), ProviderOpenAI)
	if err != nil {
		t.Fatalf("VoicesFor(openai): %v", err)
	}
	if len(openai) == 0 {
		t.Error("openai voice catalog is empty")
	}

	local, err := d.VoicesFor(context.Background(), ProviderLocal)
	if err != nil {
		t.Fatalf("VoicesFor(local): %v", err)
	}
	if len(local) != 1 || local[0].Name != "english-us" {
		t.Errorf("local voices = %+v", local)
	}

	if _, err := d.VoicesFor(context.Background(), Provider(42)); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewRecoversFromUnknownProviderName(t *testing.T) {
	d, _, _ := newTestDispatcher(Config{ProviderName: "bogus", OpenAIKey: "sk"})
	defer d.Close()

	if got := d.Active(); got != ProviderOpenAI {
		t.Errorf("active = %v, want openai inferred from credential", got)
	}
}
