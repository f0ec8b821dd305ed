package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/service"
	"github.com/lixenwraith/triad/status"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [address]",
		Short: "Connect to a sync server and print received states",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer done()

			addr := cfg.Network.Address
			if len(args) > 0 {
				addr = args[0]
			}
			every, _ := cmd.Flags().GetInt("every")
			jsonOut, _ := cmd.Flags().GetBool("json")

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return runWatch(ctx, network.RoleConfig(network.RoleClient, addr), cmd.OutOrStdout(), every, jsonOut)
		},
	}

	cmd.Flags().Int("every", 1, "Print every Nth state frame")
	cmd.Flags().Bool("json", false, "Print states as JSON lines")
	return cmd
}

// watchLine is one --json output record
type watchLine struct {
	Tick      int64   `json:"tick"`
	Cycle     int64   `json:"cycle"`
	Phase     string  `json:"phase"`
	RPM       float64 `json:"rpm"`
	Entropy   float64 `json:"entropy"`
	Particles int     `json:"particles"`
	Settled   int     `json:"settled"`
}

// runWatch prints received state frames until ctx is done or the server goes away
func runWatch(ctx context.Context, netCfg *network.Config, w io.Writer, every int, jsonOut bool) error {
	every = max(every, 1)

	var (
		mu       sync.Mutex
		frames   int
		settles  int
		lost     = make(chan struct{})
		lostOnce sync.Once
	)
	enc := json.NewEncoder(w)

	handlers := network.Handlers{
		OnState: func(st *network.StateSync) {
			mu.Lock()
			defer mu.Unlock()

			frames++
			if frames%every != 0 {
				return
			}

			settled := 0
			for _, p := range st.Particles {
				if p.Z == 0 {
					settled++
				}
			}

			if jsonOut {
				enc.Encode(watchLine{
					Tick: st.Tick, Cycle: st.State.Cycle, Phase: st.State.Phase.String(),
					RPM: st.State.RPM, Entropy: st.State.Entropy,
					Particles: len(st.Particles), Settled: settled,
				})
				return
			}
			fmt.Fprintf(w, "tick %6d  cycle %6d  %-6s  rpm %6.2f  entropy %.3f  particles %d  settled %d  settle events %d\n",
				st.Tick, st.State.Cycle, st.State.Phase, st.State.RPM, st.State.Entropy,
				len(st.Particles), settled, settles)
		},
		OnSettles: func(_ int64, indices []uint32) {
			mu.Lock()
			settles += len(indices)
			mu.Unlock()
		},
		OnPeer: func(_ network.PeerID, connected bool) {
			if !connected {
				lostOnce.Do(func() { close(lost) })
			}
		},
	}

	client := network.NewService(status.NewRegistry(), handlers)
	services := service.NewHub()
	if err := services.Register(client, netCfg); err != nil {
		return fmt.Errorf("failed to register sync client: %w", err)
	}
	if err := services.InitAll(); err != nil {
		return fmt.Errorf("failed to init sync client: %w", err)
	}
	if err := services.StartAll(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", netCfg.Address, err)
	}
	defer services.StopAll()

	select {
	case <-ctx.Done():
		return nil
	case <-lost:
		return fmt.Errorf("connection to %s lost", netCfg.Address)
	}
}
