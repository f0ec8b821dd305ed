package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/triad/config"
	"github.com/lixenwraith/triad/field"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/status"
)

// simulateSummary is the --json output of simulate
type simulateSummary struct {
	Ticks         int64             `json:"ticks"`
	Particles     int               `json:"particles"`
	Collapsing    int               `json:"collapsing"`
	Settled       int               `json:"settled"`
	Transient     int               `json:"transient"`
	SettleEvents  int64             `json:"settle_events"`
	FirstSettleAt int64             `json:"first_settle_tick"`
	AllSettledAt  int64             `json:"all_settled_tick"`
	Spread        float64           `json:"spread"`
	Mantle        mantle.State      `json:"mantle"`
	Metrics       map[string]string `json:"metrics"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the field headless and print a summary",
		Long: `Advance the field a fixed number of ticks without a terminal view.
The mantle oscillator advances once per tick, so results depend only on the
configuration and seed.

Examples:
  triad simulate --ticks 1200
  triad simulate --particles 500 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer done()

			ticks, _ := cmd.Flags().GetInt("ticks")
			if n, _ := cmd.Flags().GetInt("particles"); n > 0 {
				cfg.Sim.Particles = n
			}
			if seed, _ := cmd.Flags().GetUint64("seed"); cmd.Flags().Changed("seed") {
				cfg.Sim.Seed = seed
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			return runSimulate(cmd.OutOrStdout(), cfg, ticks, jsonOut)
		},
	}

	cmd.Flags().Int("ticks", parameter.DefaultSimulateTicks, "Number of field ticks to run")
	cmd.Flags().Int("particles", 0, "Override particle count")
	cmd.Flags().Uint64("seed", 1, "Override layout seed")
	cmd.Flags().Bool("json", false, "Output summary as JSON")
	return cmd
}

// runSimulate steps the field ticks times, stopping early once every particle has settled
func runSimulate(w io.Writer, cfg *config.Config, ticks int, jsonOut bool) error {
	if ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", ticks)
	}

	metrics := status.NewRegistry()
	sim := newSimulation(cfg, metrics)

	var (
		last          tickResult
		firstSettleAt int64 = -1
		allSettledAt  int64 = -1
	)

	start := time.Unix(0, 0)
	for i := 0; i < ticks; i++ {
		sim.advanceMantle(start.Add(time.Duration(i) * cfg.Mantle.Tick))
		last = sim.step()

		if firstSettleAt < 0 && last.Stats.Settles > 0 {
			firstSettleAt = last.Stats.Tick
		}
		if !cfg.Sim.Recycle && allSettled(last.Stats, sim.field.Len()) {
			allSettledAt = last.Stats.Tick
			break
		}
	}

	summary := simulateSummary{
		Ticks:         last.Stats.Tick,
		Particles:     sim.field.Len(),
		Collapsing:    last.Stats.Collapsing,
		Settled:       last.Stats.Settled,
		Transient:     last.Stats.Transient,
		SettleEvents:  metrics.Int(status.KeySettleFire).Load(),
		FirstSettleAt: firstSettleAt,
		AllSettledAt:  allSettledAt,
		Spread:        last.Stats.Spread,
		Mantle:        last.State,
		Metrics:       make(map[string]string),
	}
	for _, m := range metrics.Snapshot() {
		summary.Metrics[m.Key] = m.Value
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "Simulated %d ticks of %d particles\n", summary.Ticks, summary.Particles)
	fmt.Fprintf(w, "  collapsing: %d  settled: %d  transient: %d\n", summary.Collapsing, summary.Settled, summary.Transient)
	fmt.Fprintf(w, "  settle events: %d  first at tick: %s  all settled at tick: %s\n",
		summary.SettleEvents, tickOrNever(firstSettleAt), tickOrNever(allSettledAt))
	fmt.Fprintf(w, "  mantle: cycle %d  %s  rpm %.2f  entropy %.3f\n",
		summary.Mantle.Cycle, summary.Mantle.Phase, summary.Mantle.RPM, summary.Mantle.Entropy)
	fmt.Fprintln(w, "Metrics:")
	for _, m := range metrics.Snapshot() {
		fmt.Fprintf(w, "  %-20s %s\n", m.Key, m.Value)
	}
	return nil
}

func allSettled(st field.Stats, n int) bool {
	return n > 0 && st.Settled == n
}

func tickOrNever(tick int64) string {
	if tick < 0 {
		return "never"
	}
	return fmt.Sprint(tick)
}
