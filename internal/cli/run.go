package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/stawikopa-del/fitfly-sub001/internal/engine"
	"github.com/stawikopa-del/fitfly-sub001/internal/presets"
)

func newRunCmd() *cobra.Command {
	var (
		presetsFile string
		tick        time.Duration
		list        bool
	)

	cmd := &cobra.Command{
		Use:   "run <preset>",
		Short: "Run a preset in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := presets.Load(presetsFile)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}
			p, err := catalog.Get(args[0])
			if err != nil {
				return err
			}

			if list {
				printSteps(cmd.OutOrStdout(), p)
				return nil
			}
			return runPreset(cmd.Context(), cmd.OutOrStdout(), p, tick)
		},
	}

	cmd.Flags().StringVarP(&presetsFile, "presets", "p", "", "YAML file with extra presets")
	cmd.Flags().DurationVarP(&tick, "tick", "t", time.Second, "Wall time per session second (lower to speed up)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "Print the steps and exit")
	return cmd
}

// runPreset drives a session from a local ticker until it completes or ctx
// is cancelled.
func runPreset(ctx context.Context, out io.Writer, p presets.Preset, tick time.Duration) error {
	steps := make([]engine.Step, len(p.Steps))
	for i, spec := range p.Steps {
		steps[i] = engine.Step{
			DurationSeconds:   spec.DurationSeconds,
			BreakAfterSeconds: spec.BreakAfterSeconds,
			Payload:           spec,
		}
	}

	done := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex

	ctrl, err := engine.NewSessionController(steps, engine.Events{
		OnStepChange: func(index int, phase engine.Phase) {
			switch phase {
			case engine.PhaseRunningStep:
				spec := p.Steps[index]
				fmt.Fprintf(out, "Step %d/%d: %s (%s)\n", index+1, len(p.Steps), spec.Name, formatSeconds(spec.DurationSeconds))
				if spec.Instruction != "" {
					fmt.Fprintf(out, "  %s\n", spec.Instruction)
				}
				for _, ingredient := range spec.Ingredients {
					fmt.Fprintf(out, "  - %s\n", ingredient)
				}
			case engine.PhaseRunningBreak:
				fmt.Fprintf(out, "Break (%s)\n", formatSeconds(p.Steps[index].BreakAfterSeconds))
			}
		},
		OnTick: func(remaining int, _ engine.Phase) {
			if remaining > 0 && remaining <= 3 {
				fmt.Fprintf(out, "  %d...\n", remaining)
			}
		},
		OnSessionComplete: func() {
			fmt.Fprintf(out, "Session complete: %s\n", p.Title)
			once.Do(func() { close(done) })
		},
	}, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s total)\n", p.Title, formatSeconds(p.TotalSeconds()))

	mu.Lock()
	err = ctrl.Start()
	mu.Unlock()
	if err != nil {
		return err
	}

	driver := engine.NewDriver(tick, func() {
		mu.Lock()
		defer mu.Unlock()
		ctrl.Tick()
	})
	driver.Start()
	defer func() {
		driver.Stop()
		<-driver.Done()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		mu.Lock()
		ctrl.Dispose()
		mu.Unlock()
		fmt.Fprintln(out, "Session stopped")
		return nil
	}
}

func printSteps(out io.Writer, p presets.Preset) {
	fmt.Fprintf(out, "%s [%s] %s total\n", p.Title, p.Kind, formatSeconds(p.TotalSeconds()))
	for i, step := range p.Steps {
		fmt.Fprintf(out, "%2d. %-24s %s", i+1, step.Name, formatSeconds(step.DurationSeconds))
		if step.BreakAfterSeconds > 0 && i < len(p.Steps)-1 {
			fmt.Fprintf(out, " + %s break", formatSeconds(step.BreakAfterSeconds))
		}
		fmt.Fprintln(out)
	}
}

func formatSeconds(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}
