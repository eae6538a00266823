package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# active provider: openai, elevenlabs, or local.
# Leave empty to pick automatically from the configured keys.
provider: ""

# API keys. OPENAI_API_KEY and ELEVENLABS_API_KEY work too.
# openai_key: ""
# elevenlabs_key: ""

# cache synthesized audio so repeated phrases skip the network
cache: true
# cache_dir: "~/.cache/outloud/audio"

# client-side limit on synthesis requests (0 disables)
requests_per_minute: 60

openai:
  model: "tts-1"
  voice: "alloy"
  speed: 1.0
  format: "mp3"

elevenlabs:
  voice_id: "21m00Tcm4TlvDq8ikWAM"
  model: "eleven_multilingual_v2"
  stability: 0.5
  similarity_boost: 0.75
  style: 0.0
  speaker_boost: true
  format: "mp3_44100_128"

local:
  # voice: "Samantha"
  rate: 1.0
  pitch: 1.0
  volume: 1.0

# write a debug log here
# log_file: "/tmp/outloud.log"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the outloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the outloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("outloud config\noutloud config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("outloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(*cobra.Command, []string) {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(used)
			return
		}
		fmt.Println(configFile)
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configPathCmd)
}
