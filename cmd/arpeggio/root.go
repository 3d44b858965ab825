package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/config"
	"github.com/llehouerou/arpeggio/internal/logging"
	"github.com/llehouerou/arpeggio/internal/synth"
)

var rootCmd = &cobra.Command{
	Use:   "arpeggio",
	Short: "Arpeggio previews musical arrangements as audio.",
	Long: `Arpeggio renders note events into PCM audio with an additive
synthesizer and plays them through the first working audio backend.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the process logger. Console
// logging is suppressed in quiet mode so command output stays clean.
func setup(quiet bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Quiet:      quiet,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, log, nil
}

func renderConfig(cfg *config.Config, metronome bool, beatsPerMeasure, beatUnit int) synth.RenderConfig {
	return synth.RenderConfig{
		SampleRate: cfg.Engine.SampleRate,
		Amplitude:  cfg.Engine.Amplitude,
		ChunkSize:  cfg.Engine.ChunkSize,
		Metronome: synth.MetronomeSettings{
			Enabled:         metronome,
			BeatsPerMeasure: beatsPerMeasure,
			BeatUnit:        beatUnit,
		},
	}
}
