package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/triad/config"
	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/service"
	"github.com/lixenwraith/triad/status"
	"github.com/lixenwraith/triad/wshub"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the field headless and stream it to browsers and sync peers",
		Long: `Run the field and mantle without a terminal view. Every tick is pushed
to websocket clients on the hub endpoint and to TCP sync peers.

Examples:
  triad serve
  triad serve --hub :8080 --sync :7777`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer done()

			if addr, _ := cmd.Flags().GetString("hub"); addr != "" {
				cfg.Hub.Address = addr
			}
			if addr, _ := cmd.Flags().GetString("sync"); addr != "" {
				cfg.Network.Address = addr
			}
			// serve always hosts both endpoints
			cfg.Hub.Enabled = true
			cfg.Network.Role = network.RoleServer.String()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			return runServe(ctx, cfg, func(hub *wshub.Hub, sync *network.Service) {
				fmt.Fprintf(out, "mantle hub on ws://%s%s\n", hub.Addr(), cfg.Hub.Path)
				fmt.Fprintf(out, "state sync on %s\n", sync.Transport().Addr())
			})
		},
	}

	cmd.Flags().String("hub", "", "Websocket listen address (overrides config)")
	cmd.Flags().String("sync", "", "TCP sync listen address (overrides config)")
	return cmd
}

// runServe hosts the hub and sync server and drives the field until ctx is done
// ready is called once both listeners are bound
func runServe(ctx context.Context, cfg *config.Config, ready func(*wshub.Hub, *network.Service)) error {
	metrics := status.NewRegistry()

	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		return err
	}

	hub := wshub.New(metrics)
	sync := network.NewService(metrics, network.Handlers{})

	services := service.NewHub()
	if err := services.Register(sync, netCfg); err != nil {
		return fmt.Errorf("failed to register sync: %w", err)
	}
	if err := services.Register(hub, cfg.HubConfig()); err != nil {
		return fmt.Errorf("failed to register hub: %w", err)
	}
	if err := services.InitAll(); err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}
	if err := services.StartAll(); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	defer services.StopAll()

	if ready != nil {
		ready(hub, sync)
	}

	sim := newSimulation(cfg, metrics)
	return drive(ctx, cfg, sim, func(res tickResult) {
		sim.publish(res, hub, sync)
	})
}

// drive runs the mantle oscillator and the field tick until ctx is done
// onTick sees every field step
func drive(ctx context.Context, cfg *config.Config, sim *simulation, onTick func(tickResult)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := mantleStates(ctx, sim.osc, cfg.Mantle.Tick)

	ticker := time.NewTicker(cfg.Sim.Tick)
	defer ticker.Stop()

	log.Printf("triad: driving %d particles every %v", sim.field.Len(), cfg.Sim.Tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-states:
			sim.applyMantle(st)
		case <-ticker.C:
			onTick(sim.step())
		}
	}
}

// mantleStates runs osc until ctx is done and delivers the latest state
// A slow reader only ever sees the newest state
func mantleStates(ctx context.Context, osc *mantle.Oscillator, tick time.Duration) <-chan mantle.State {
	states := make(chan mantle.State, 1)
	go osc.Run(ctx, tick, func(st mantle.State) {
		for {
			select {
			case states <- st:
				return
			default:
			}
			select {
			case <-states:
			default:
			}
		}
	})
	return states
}
