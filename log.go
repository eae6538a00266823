package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// setupLog configures the global logger: silent by default so speech
// output is all the user hears about, debug to stderr with --debug, and
// debug to a file when log_file is configured. The returned closer
// flushes the log file, if any.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)
	log.SetLevel(log.FatalLevel)

	if path := viper.GetString("log_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetTimeFormat(time.Kitchen)
		return f.Close, nil
	}

	return func() error { return nil }, nil
}

// applyDebugLog raises the log level once flags are parsed. It runs from
// the root command's persistent pre-run so every subcommand honors
// --debug.
func applyDebugLog() {
	if !debug && !viper.GetBool("debug") {
		return
	}
	log.SetLevel(log.DebugLevel)
	if viper.GetString("log_file") == "" {
		log.SetOutput(os.Stderr)
	}
}
