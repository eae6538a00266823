package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const powerShellVoicesScript = "Add-Type -AssemblyName System.Speech; " +
	"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | " +
	"ForEach-Object { $v = $_.VoiceInfo; Write-Output ($v.Name + '|' + $v.Culture + '|' + $v.Gender) }"

// Voices lists the voices the platform tool knows about.
func (e *ExecEngine) Voices(ctx context.Context) ([]Voice, error) {
	if e.resolveErr != nil {
		return nil, e.resolveErr
	}

	var args []string
	switch e.flavor {
	case flavorSay:
		args = []string{"-v", "?"}
	case flavorPowerShell:
		args = []string{"-NoProfile", "-Command", powerShellVoicesScript}
	default:
		args = []string{"--voices"}
	}

	out, err := exec.CommandContext(ctx, e.binPath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("listing %s voices: %w", e.flavor, err)
	}

	switch e.flavor {
	case flavorSay:
		return parseSayVoices(string(out)), nil
	case flavorPowerShell:
		return parsePowerShellVoices(string(out)), nil
	default:
		return parseESpeakVoices(string(out)), nil
	}
}

// parseESpeakVoices reads `espeak --voices` output. Both the classic and
// the -ng layouts are column-aligned:
//
//	Pty Language Age/Gender VoiceName            File          Other Languages
//	 5  en-gb           M  english              en            (en 2)(en-uk 3)
//
// The voice name can contain spaces in espeak-ng, so the name is whatever
// sits between the gender column and the trailing file column.
func parseESpeakVoices(out string) []Voice {
	var voices []Voice
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(line, "Pty") {
			continue
		}
		// The Other Languages column is parenthesized and contains
		// spaces, so drop it before splitting on whitespace.
		if idx := strings.Index(line, "("); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		lang := normalizeLanguage(fields[1])
		gender := parseESpeakGender(fields[2])

		rest := fields[3:]
		if len(rest) > 1 {
			rest = rest[:len(rest)-1] // file column
		}
		name := strings.Join(rest, " ")
		if name == "" {
			continue
		}

		voices = append(voices, Voice{
			ID:       fields[1],
			Name:     name,
			Language: lang,
			Gender:   gender,
		})
	}
	return voices
}

// parseESpeakGender normalizes the Age/Gender column, which shows up as
// "M", "F", "-", or "--/M" depending on the espeak generation.
func parseESpeakGender(field string) string {
	if idx := strings.LastIndex(field, "/"); idx >= 0 {
		field = field[idx+1:]
	}
	switch strings.ToUpper(field) {
	case "M":
		return "male"
	case "F":
		return "female"
	default:
		return ""
	}
}

// parseSayVoices reads `say -v ?` output, where each line is a name, a
// locale, and a sample sentence:
//
//	Samantha            en_US    # Hello, my name is Samantha.
func parseSayVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \r")
		if line == "" {
			continue
		}
		spec := line
		if idx := strings.Index(line, "#"); idx >= 0 {
			spec = line[:idx]
		}
		fields := strings.Fields(spec)
		if len(fields) < 2 {
			continue
		}
		lang := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, Voice{
			ID:       name,
			Name:     name,
			Language: normalizeLanguage(lang),
		})
	}
	return voices
}

// parsePowerShellVoices reads the Name|Culture|Gender lines emitted by
// the System.Speech listing script.
func parsePowerShellVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		v := Voice{
			ID:       parts[0],
			Name:     parts[0],
			Language: normalizeLanguage(parts[1]),
		}
		if len(parts) >= 3 {
			v.Gender = strings.ToLower(strings.TrimSpace(parts[2]))
		}
		voices = append(voices, v)
	}
	return voices
}

// normalizeLanguage squares platform locale spellings (en_US, en-us) into
// the hyphenated shape the rest of the system matches on.
func normalizeLanguage(tag string) string {
	return strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
}
