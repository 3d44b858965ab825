package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llehouerou/arpeggio/internal/audio"
	"github.com/llehouerou/arpeggio/internal/preview"
	"github.com/llehouerou/arpeggio/internal/render"
	"github.com/llehouerou/arpeggio/internal/score"
	"github.com/llehouerou/arpeggio/internal/stderr"
	"github.com/llehouerou/arpeggio/internal/synth"
)

var (
	playTempo     float64
	playMetronome bool
	playVolume    float64
	playLoop      string
)

var playCmd = &cobra.Command{
	Use:   "play <score>",
	Short: "Render a score and play it through the audio backend chain",
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

		engine := synth.NewEngine(log, synth.WithCacheCap(cfg.Engine.CacheCap))
		rcfg := renderConfig(cfg, false, sc.BeatsPerMeasure, sc.BeatUnit)
		worker := render.NewWorker(engine, rcfg, log)

		// ALSA writes directly to fd 2 and would garble the position line.
		if err := stderr.Start(func(line string) {
			log.Debug("audio backend stderr", zap.String("line", line))
		}); err != nil {
			log.Warn("stderr capture unavailable", zap.Error(err))
		}
		defer stderr.Stop()

		player := audio.Select(log, cfg.Engine.SampleRate, cfg.Audio.PlayerCommand)
		var renderer preview.Renderer
		if player != nil {
			renderer = preview.NewSynthRenderer(worker, player, log)
		} else {
			renderer = preview.NullRenderer{}
		}

		controller := preview.NewController(renderer, log)
		defer controller.Close()

		controller.Load(sc.Events, sc.PPQ, sc.Tempo, sc.TempoChanges, sc.BeatsPerMeasure, sc.BeatUnit)
		if playTempo > 0 {
			controller.SetTempo(playTempo)
		}
		controller.SetMetronome(playMetronome)
		controller.SetVolume(playVolume)
		if playLoop != "" {
			start, end, err := parseLoop(playLoop)
			if err != nil {
				return err
			}
			controller.SetLoop(true, start, end)
		}

		if !controller.TogglePlayback() {
			if msg := controller.State().LastError; msg != "" {
				return fmt.Errorf("playback failed: %s", msg)
			}
			return fmt.Errorf("playback failed")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-sigCh:
				fmt.Println()
				return nil
			case now := <-ticker.C:
				controller.Advance(now.Sub(last).Seconds())
				last = now

				st := controller.State()
				if st.IsRendering {
					fmt.Printf("\rrendering %3d%%   ", int(st.RenderProgress*100))
					continue
				}
				fmt.Printf("\rtick %6d / %d", st.PositionTick, st.DurationTick)
				if !st.IsPlaying {
					fmt.Println()
					if st.LastError != "" {
						return fmt.Errorf("playback stopped: %s", st.LastError)
					}
					return nil
				}
			}
		}
	},
}

// parseLoop parses a "start:end" tick range.
func parseLoop(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("loop must be start:end, got %q", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("loop start: %w", err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("loop end: %w", err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("loop end %d before start %d", end, start)
	}
	return start, end, nil
}

func init() {
	playCmd.Flags().Float64Var(&playTempo, "tempo", 0, "override tempo in bpm (0 keeps the score tempo)")
	playCmd.Flags().BoolVar(&playMetronome, "metronome", false, "enable the metronome click")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1.0, "playback volume, 0..1")
	playCmd.Flags().StringVar(&playLoop, "loop", "", "loop region as start:end ticks")
	rootCmd.AddCommand(playCmd)
}
