package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/outloud/speech"
)

var voicesCmd = &cobra.Command{
	Use:   "voices [query]",
	Short: "List the voices a provider offers",
	Long: paragraph(
		fmt.Sprintf("\nList the %s of the selected provider: the remote catalogs, or the voices installed on this machine for local synthesis. An optional query fuzzy-filters the list.", keyword("voices")),
	),
	Example: "  outloud voices\n  outloud voices -p elevenlabs\n  outloud voices aria",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSpeechConfig(cmd)
		if err != nil {
			return err
		}
		// voice listing never plays audio, so skip the cache
		cfg.CacheEnabled = false

		sp := speech.New(cfg, speech.WithLogger(log.Default()))
		defer sp.Close() //nolint:errcheck

		voices, err := sp.SupportedVoices(cmd.Context())
		if err != nil {
			return err
		}
		if len(voices) == 0 {
			fmt.Println(subtle("no voices found"))
			return nil
		}

		if len(args) == 1 {
			voices = filterVoices(voices, args[0])
			if len(voices) == 0 {
				fmt.Println(subtle("no voices match " + args[0]))
				return nil
			}
		}

		printVoices(sp.Active(), voices)
		return nil
	},
}

// voiceHaystack adapts the voice list for fuzzy matching on name,
// language, and id together.
type voiceHaystack []speech.Voice

func (h voiceHaystack) String(i int) string {
	return h[i].Name + " " + h[i].Language + " " + h[i].ID
}

func (h voiceHaystack) Len() int { return len(h) }

func filterVoices(voices []speech.Voice, query string) []speech.Voice {
	matches := fuzzy.FindFrom(query, voiceHaystack(voices))
	out := make([]speech.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

// printVoices writes an aligned table. Voice names can carry wide
// runes, so columns are padded by display width, not byte length.
func printVoices(p speech.Provider, voices []speech.Voice) {
	nameW, langW := len("NAME"), len("LANG")
	for _, v := range voices {
		if w := runewidth.StringWidth(v.Name); w > nameW {
			nameW = w
		}
		if w := runewidth.StringWidth(v.Language); w > langW {
			langW = w
		}
	}

	fmt.Println(keyword(strings.ToUpper(p.String())), subtle(fmt.Sprintf("(%d voices)", len(voices))))
	fmt.Printf("%s  %s  %s  %s\n",
		runewidth.FillRight("NAME", nameW),
		runewidth.FillRight("LANG", langW),
		runewidth.FillRight("GENDER", 7),
		"ID",
	)
	for _, v := range voices {
		fmt.Fprintf(os.Stdout, "%s  %s  %s  %s\n",
			runewidth.FillRight(v.Name, nameW),
			runewidth.FillRight(v.Language, langW),
			runewidth.FillRight(v.Gender, 7),
			subtle(v.ID),
		)
	}
}
