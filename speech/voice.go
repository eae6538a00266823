package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// Voice describes one synthesis voice, local or remote.
type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
}

// preferredVoiceNames is the statically ordered preference list the local
// adapter walks when no voice is pinned. Earlier entries win.
var preferredVoiceNames = []string{
	"Microsoft Aria Online",
	"Google US English",
	"Samantha",
	"Daniel",
}

// SelectVoice picks a voice from the platform's list: the first preferred
// name (in order) contained in an English voice's name, else the first
// English voice, else the first voice, else the zero Voice, which tells
// the engine to use its platform default.
func SelectVoice(voices []Voice, preferred []string) Voice {
	for _, want := range preferred {
		for _, v := range voices {
			if strings.Contains(v.Name, want) && isEnglish(v.Language) {
				return v
			}
		}
	}
	for _, v := range voices {
		if isEnglish(v.Language) {
			return v
		}
	}
	if len(voices) > 0 {
		return voices[0]
	}
	return Voice{}
}

// isEnglish reports whether a voice language tag resolves to English.
// Platform engines report tags in assorted shapes (en-US, en_US, en-us,
// plain en), so the tag is normalized and parsed as BCP 47 first, with a
// plain prefix check as the fallback for unparseable values.
func isEnglish(tag string) bool {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return false
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String() == "en"
		}
	}
	return strings.HasPrefix(strings.ToLower(tag), "en")
}
