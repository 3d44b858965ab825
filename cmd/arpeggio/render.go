package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/audio"
	"github.com/llehouerou/arpeggio/internal/score"
	"github.com/llehouerou/arpeggio/internal/synth"
	"github.com/llehouerou/arpeggio/internal/tempo"
)

var (
	renderOutput    string
	renderTempo     float64
	renderMetronome bool
)

var renderCmd = &cobra.Command{
	Use:   "render <score>",
	Short: "Render a score to a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(false)
		if err != nil {
			return err
		}
		defer log.Sync()

		sc, err := score.Load(args[0])
		if err != nil {
			return err
		}

		bpm := sc.Tempo
		changes := sc.TempoChanges
		if renderTempo > 0 {
			bpm = renderTempo
			changes = tempo.NormalizeTo(renderTempo, changes)
		}

		engine := synth.NewEngine(log, synth.WithCacheCap(cfg.Engine.CacheCap))
		rcfg := renderConfig(cfg, renderMetronome, sc.BeatsPerMeasure, sc.BeatUnit)

		lastPercent := -1
		progress := func(fraction float64) {
			percent := int(fraction * 100)
			if percent/10 > lastPercent/10 {
				lastPercent = percent
				fmt.Printf("\rrendering %3d%%", percent)
			}
		}

		pcm, _, err := engine.RenderEvents(sc.Events, bpm, sc.PPQ, rcfg, progress, changes)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		fmt.Println()
		if len(pcm) == 0 {
			fmt.Println("score is silent, writing an empty file")
		}

		if err := audio.WriteWAV(renderOutput, pcm, cfg.Engine.SampleRate); err != nil {
			return err
		}
		log.Info("rendered score",
			zap.String("score", args[0]),
			zap.String("output", renderOutput),
			zap.Int("events", len(sc.Events)),
			zap.Float64("tempo", bpm))
		fmt.Printf("wrote %s (%.2fs)\n", renderOutput,
			audio.BufferDuration(pcm, cfg.Engine.SampleRate).Seconds())
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "out.wav", "output WAV path")
	renderCmd.Flags().Float64Var(&renderTempo, "tempo", 0, "override tempo in bpm (0 keeps the score tempo)")
	renderCmd.Flags().BoolVar(&renderMetronome, "metronome", false, "mix metronome clicks into the output")
	rootCmd.AddCommand(renderCmd)
}
