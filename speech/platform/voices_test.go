package platform

import "testing"

func TestParseESpeakVoices(t *testing.T) {
	const out = `Pty Language Age/Gender VoiceName            File          Other Languages
 5  en-gb           M  english              en            (en 2)(en-uk 3)
 5  en-us           M  english-us           en-us         (en-r 5)
 5  fr-fr           -  french               fr            (fr 5)
 7  de              M  german mbrola 1      mb/mb-de1
`
	voices := parseESpeakVoices(out)
	if len(voices) != 4 {
		t.Fatalf("parsed %d voices, want 4", len(voices))
	}

	first := voices[0]
	if first.ID != "en-gb" || first.Name != "english" || first.Language != "en-gb" || first.Gender != "male" {
		t.Errorf("first voice = %+v", first)
	}
	if voices[2].Gender != "" {
		t.Errorf("dash gender parsed as %q, want empty", voices[2].Gender)
	}
	if voices[3].Name != "german mbrola 1" {
		t.Errorf("multi-word name = %q, want %q", voices[3].Name, "german mbrola 1")
	}
}

func TestParseESpeakGender(t *testing.T) {
	cases := map[string]string{
		"M":    "male",
		"F":    "female",
		"-":    "",
		"--/M": "male",
		"23/F": "female",
	}
	for in, want := range cases {
		if got := parseESpeakGender(in); got != want {
			t.Errorf("parseESpeakGender(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSayVoices(t *testing.T) {
	const out = `Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Samantha            en_US    # Hello, my name is Samantha.
Thomas              fr_FR    # Bonjour, je m'appelle Thomas.
`
	voices := parseSayVoices(out)
	if len(voices) != 4 {
		t.Fatalf("parsed %d voices, want 4", len(voices))
	}
	if voices[0].Name != "Alex" || voices[0].Language != "en-US" {
		t.Errorf("first voice = %+v", voices[0])
	}
	if voices[1].Name != "Bad News" {
		t.Errorf("multi-word name = %q", voices[1].Name)
	}
	if voices[3].Language != "fr-FR" {
		t.Errorf("locale = %q, want fr-FR", voices[3].Language)
	}
}

func TestParsePowerShellVoices(t *testing.T) {
	const out = "Microsoft Zira Desktop|en-US|Female\r\nMicrosoft David Desktop|en-US|Male\r\n"
	voices := parsePowerShellVoices(out)
	if len(voices) != 2 {
		t.Fatalf("parsed %d voices, want 2", len(voices))
	}
	zira := voices[0]
	if zira.Name != "Microsoft Zira Desktop" || zira.Language != "en-US" || zira.Gender != "female" {
		t.Errorf("first voice = %+v", zira)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"en_US":  "en-US",
		"en-us":  "en-us",
		" de ":   "de",
		"fr_FR ": "fr-FR",
	}
	for in, want := range cases {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
