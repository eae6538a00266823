package main

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/outloud/speech"
)

// watchConfig re-applies the voice parameter sections of the config file
// to a live dispatcher whenever the file changes, so a long document can
// be re-voiced mid-read by editing the config. Provider and credential
// changes still require a restart.
func watchConfig(path string, sp *speech.Dispatcher) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which drops
	// a watch held on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				reapplyVoiceConfig(path, sp)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	log.Debug("watching config file", "path", path)
	return watcher.Close, nil
}

// reapplyVoiceConfig reads the file fresh and merges each provider's
// parameter record into the dispatcher.
func reapplyVoiceConfig(path string, sp *speech.Dispatcher) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		log.Warn("config reload failed", "error", err)
		return
	}

	patches := map[speech.Provider]speech.ConfigPatch{
		speech.ProviderOpenAI: {
			Model:  strPtr(v, "openai.model"),
			Voice:  strPtr(v, "openai.voice"),
			Speed:  floatPtr(v, "openai.speed"),
			Format: strPtr(v, "openai.format"),
		},
		speech.ProviderElevenLabs: {
			VoiceID:         strPtr(v, "elevenlabs.voice_id"),
			Model:           strPtr(v, "elevenlabs.model"),
			Stability:       floatPtr(v, "elevenlabs.stability"),
			SimilarityBoost: floatPtr(v, "elevenlabs.similarity_boost"),
			Style:           floatPtr(v, "elevenlabs.style"),
			SpeakerBoost:    boolPtr(v, "elevenlabs.speaker_boost"),
			Format:          strPtr(v, "elevenlabs.format"),
		},
		speech.ProviderLocal: {
			Voice:  strPtr(v, "local.voice"),
			Rate:   floatPtr(v, "local.rate"),
			Pitch:  floatPtr(v, "local.pitch"),
			Volume: floatPtr(v, "local.volume"),
		},
	}

	for provider, patch := range patches {
		if err := sp.UpdateConfig(provider, patch); err != nil {
			log.Warn("config reload rejected", "provider", provider, "error", err)
		}
	}
	log.Info("config reloaded", "path", path)
}

// strPtr returns the value for key, or nil when the file does not set
// it, so unset keys leave the running configuration alone.
func strPtr(v *viper.Viper, key string) *string {
	if !v.IsSet(key) {
		return nil
	}
	s := v.GetString(key)
	return &s
}

func floatPtr(v *viper.Viper, key string) *float64 {
	if !v.IsSet(key) {
		return nil
	}
	f := v.GetFloat64(key)
	return &f
}

func boolPtr(v *viper.Viper, key string) *bool {
	if !v.IsSet(key) {
		return nil
	}
	b := v.GetBool(key)
	return &b
}
