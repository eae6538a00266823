// Package main provides the entry point for the outloud CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/outloud/internal/mdtext"
	"github.com/dgnsrekt/outloud/speech"
)

// maxChunkLen bounds one synthesis request; long documents are spoken a
// chunk at a time, split at sentence boundaries.
const maxChunkLen = 4000

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	providerName string
	voiceName    string
	speed        float64
	pitch        float64
	volume       float64
	format       string
	filePath     string
	render       bool
	watch        bool
	debug        bool

	rootCmd = &cobra.Command{
		Use:   "outloud [text]",
		Short: "Speak text out loud from the command line",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text %s. Uses the OpenAI or ElevenLabs speech APIs when a key is configured, and always falls back to your system's own voice.", keyword("out loud")),
		),
		Example:          "  outloud \"Hello, world!\"\n  cat notes.md | outloud\n  outloud --file README.md --render\n  outloud -p elevenlabs \"Bonjour\"",
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			applyDebugLog()
		},
		RunE: execute,
	}
)

func execute(cmd *cobra.Command, args []string) error {
	text, markdown, err := gatherText(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return cmd.Help()
	}

	cfg, err := loadSpeechConfig(cmd)
	if err != nil {
		return err
	}

	sp := speech.New(cfg, speech.WithLogger(log.Default()))
	defer sp.Close() //nolint:errcheck

	if watch {
		if used := viper.ConfigFileUsed(); used != "" {
			stop, err := watchConfig(used, sp)
			if err != nil {
				log.Warn("config watcher unavailable", "error", err)
			} else {
				defer stop()
			}
		}
	}

	if markdown && render {
		if err := renderMarkdown(text); err != nil {
			return err
		}
	}

	speakable := text
	if markdown {
		speakable = mdtext.Extract(text)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return speakAll(ctx, sp, mdtext.Split(speakable, maxChunkLen))
}

// speakAll speaks the chunks in order, waiting for each to finish. An
// interrupt stops everything mid-chunk and exits cleanly.
func speakAll(ctx context.Context, sp *speech.Dispatcher, chunks []string) error {
	for _, chunk := range chunks {
		errCh := make(chan error, 1)
		handle, err := sp.Speak(ctx, chunk, speech.Callbacks{
			OnError: func(err error) { errCh <- err },
		})
		if err != nil {
			return err
		}

		select {
		case <-handle.Done():
			select {
			case err := <-errCh:
				fmt.Fprintln(os.Stderr, errLabel("Error:"), err)
			default:
			}
		case <-ctx.Done():
			sp.Stop()
			return nil
		}
	}
	return nil
}

// gatherText collects the input: piped stdin, the --file flag, or the
// arguments joined. The bool reports whether it should be treated as
// markdown.
func gatherText(args []string) (string, bool, error) {
	if filePath != "" {
		path, err := homedir.Expand(filePath)
		if err != nil {
			return "", false, fmt.Errorf("unable to expand path: %w", err)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("unable to read file: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(path))
		return string(b), ext == ".md" || ext == ".markdown", nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return "", false, err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), true, nil
	}

	return strings.Join(args, " "), false, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// renderMarkdown pretty-prints the document being spoken.
func renderMarkdown(markdown string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	fmt.Print(out)
	return nil
}

// loadSpeechConfig layers the configuration: defaults, then the config
// file, then OUTLOUD_* environment variables, then flags.
func loadSpeechConfig(cmd *cobra.Command) (speech.Config, error) {
	cfg := speech.DefaultConfig()

	cfg.ProviderName = viper.GetString("provider")
	cfg.OpenAIKey = viper.GetString("openai_key")
	cfg.ElevenLabsKey = viper.GetString("elevenlabs_key")
	cfg.CacheEnabled = viper.GetBool("cache")
	cfg.CacheDir = viper.GetString("cache_dir")
	cfg.RequestsPerMinute = viper.GetInt("requests_per_minute")

	cfg.OpenAI.Model = viper.GetString("openai.model")
	cfg.OpenAI.Voice = viper.GetString("openai.voice")
	cfg.OpenAI.Speed = viper.GetFloat64("openai.speed")
	cfg.OpenAI.Format = viper.GetString("openai.format")

	cfg.ElevenLabs.VoiceID = viper.GetString("elevenlabs.voice_id")
	cfg.ElevenLabs.Model = viper.GetString("elevenlabs.model")
	cfg.ElevenLabs.Stability = viper.GetFloat64("elevenlabs.stability")
	cfg.ElevenLabs.SimilarityBoost = viper.GetFloat64("elevenlabs.similarity_boost")
	cfg.ElevenLabs.Style = viper.GetFloat64("elevenlabs.style")
	cfg.ElevenLabs.SpeakerBoost = viper.GetBool("elevenlabs.speaker_boost")
	cfg.ElevenLabs.Format = viper.GetString("elevenlabs.format")

	cfg.Local.Voice = viper.GetString("local.voice")
	cfg.Local.Rate = viper.GetFloat64("local.rate")
	cfg.Local.Pitch = viper.GetFloat64("local.pitch")
	cfg.Local.Volume = viper.GetFloat64("local.volume")

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	// The services' own conventional variables work too.
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.ElevenLabsKey == "" {
		cfg.ElevenLabsKey = os.Getenv("ELEVENLABS_API_KEY")
	}

	if cfg.CacheDir != "" {
		dir, err := homedir.Expand(cfg.CacheDir)
		if err != nil {
			return cfg, fmt.Errorf("unable to expand cache dir: %w", err)
		}
		cfg.CacheDir = dir
	}

	applyFlagOverrides(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlagOverrides maps the voice flags onto whichever provider will
// serve the request.
func applyFlagOverrides(cmd *cobra.Command, cfg *speech.Config) {
	if cmd.Flags().Changed("provider") {
		cfg.ProviderName = providerName
	}

	active, err := cfg.ActiveProvider()
	if err != nil {
		// Validate reports it with a better message.
		return
	}

	if cmd.Flags().Changed("voice") {
		switch active {
		case speech.ProviderOpenAI:
			cfg.OpenAI.Voice = voiceName
		case speech.ProviderElevenLabs:
			cfg.ElevenLabs.VoiceID = voiceName
		case speech.ProviderLocal:
			cfg.Local.Voice = voiceName
		}
	}
	if cmd.Flags().Changed("speed") {
		switch active {
		case speech.ProviderOpenAI:
			cfg.OpenAI.Speed = speed
		default:
			cfg.Local.Rate = speed
		}
	}
	if cmd.Flags().Changed("pitch") {
		cfg.Local.Pitch = pitch
	}
	if cmd.Flags().Changed("volume") {
		cfg.Local.Volume = volume
	}
	if cmd.Flags().Changed("format") {
		switch active {
		case speech.ProviderElevenLabs:
			cfg.ElevenLabs.Format = format
		default:
			cfg.OpenAI.Format = format
		}
	}
}

func main() {
	setupColor()
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "speech provider: openai, elevenlabs, or local")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to stderr")
	rootCmd.Flags().StringVar(&voiceName, "voice", "", "voice name or id for the selected provider")
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "speaking rate multiplier")
	rootCmd.Flags().Float64Var(&pitch, "pitch", 1.0, "pitch multiplier (local synthesis only)")
	rootCmd.Flags().Float64Var(&volume, "volume", 1.0, "volume, 0.0 to 1.0 (local synthesis only)")
	rootCmd.Flags().StringVar(&format, "format", "", "audio format requested from remote providers")
	rootCmd.Flags().StringVarP(&filePath, "file", "f", "", "speak a markdown or text file")
	rootCmd.Flags().BoolVarP(&render, "render", "r", false, "pretty-print the document while speaking it")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-apply voice settings when the config file changes")

	_ = viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("provider", "")
	viper.SetDefault("openai_key", "")
	viper.SetDefault("elevenlabs_key", "")
	viper.SetDefault("cache", true)
	viper.SetDefault("cache_dir", "")
	viper.SetDefault("requests_per_minute", 60)

	def := speech.DefaultConfig()
	viper.SetDefault("openai.model", def.OpenAI.Model)
	viper.SetDefault("openai.voice", def.OpenAI.Voice)
	viper.SetDefault("openai.speed", def.OpenAI.Speed)
	viper.SetDefault("openai.format", def.OpenAI.Format)
	viper.SetDefault("elevenlabs.voice_id", def.ElevenLabs.VoiceID)
	viper.SetDefault("elevenlabs.model", def.ElevenLabs.Model)
	viper.SetDefault("elevenlabs.stability", def.ElevenLabs.Stability)
	viper.SetDefault("elevenlabs.similarity_boost", def.ElevenLabs.SimilarityBoost)
	viper.SetDefault("elevenlabs.style", def.ElevenLabs.Style)
	viper.SetDefault("elevenlabs.speaker_boost", def.ElevenLabs.SpeakerBoost)
	viper.SetDefault("elevenlabs.format", def.ElevenLabs.Format)
	viper.SetDefault("local.voice", def.Local.Voice)
	viper.SetDefault("local.rate", def.Local.Rate)
	viper.SetDefault("local.pitch", def.Local.Pitch)
	viper.SetDefault("local.volume", def.Local.Volume)

	rootCmd.AddCommand(voicesCmd, configCmd, cacheCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "outloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find a configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "outloud")}, dirs...)
	}

	if c := os.Getenv("OUTLOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("outloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("outloud")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "outloud.yml")
}
