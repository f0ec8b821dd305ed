package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/triad/audio"
	"github.com/lixenwraith/triad/config"
	"github.com/lixenwraith/triad/network"
	"github.com/lixenwraith/triad/parameter"
	"github.com/lixenwraith/triad/render"
	"github.com/lixenwraith/triad/service"
	"github.com/lixenwraith/triad/status"
	"github.com/lixenwraith/triad/wshub"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Show the field in the terminal",
		Long: `Open the terminal view of the particle field. Audio, the websocket hub and
TCP sync start when enabled in the configuration.

Keys:
  q, Esc, Ctrl-C   quit
  space            pause / resume
  r                reseed the field
  m                mute / unmute`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer done()

			if on, _ := cmd.Flags().GetBool("audio"); cmd.Flags().Changed("audio") {
				cfg.Audio.Enabled = on
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("failed to create screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to initialize screen: %w", err)
			}

			// Restore the terminal even if the loop crashes
			defer func() {
				if r := recover(); r != nil {
					screen.Fini()
					fmt.Fprintf(os.Stderr, "\n\x1b[31mTRIAD CRASHED: %v\x1b[0m\n", r)
					fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
					os.Exit(1)
				}
			}()
			defer screen.Fini()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return runView(ctx, cfg, screen)
		},
	}

	cmd.Flags().Bool("audio", false, "Enable audio (overrides config)")
	return cmd
}

// view holds the interactive state of the terminal loop
type view struct {
	cfg      *config.Config
	screen   tcell.Screen
	sim      *simulation
	renderer *render.Renderer
	player   *audio.Player
	metrics  *status.Registry
	paused   bool
	last     tickResult
}

// runView drives the field, audio and optional servers while drawing to screen
func runView(ctx context.Context, cfg *config.Config, screen tcell.Screen) error {
	metrics := status.NewRegistry()

	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		return err
	}

	player := audio.NewPlayer()
	hub := wshub.New(metrics)
	sync := network.NewService(metrics, network.Handlers{})

	services := service.NewHub()
	if err := services.Register(player, cfg.AudioConfig()); err != nil {
		return fmt.Errorf("failed to register audio: %w", err)
	}
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

	v := &view{
		cfg:      cfg,
		screen:   screen,
		sim:      newSimulation(cfg, metrics),
		renderer: render.New(),
		player:   player,
		metrics:  metrics,
	}

	var hubSink *wshub.Hub
	if cfg.Hub.Enabled {
		hubSink = hub
	}
	var syncSink *network.Service
	if netCfg.Role == network.RoleServer {
		syncSink = sync
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	states := mantleStates(ctx, v.sim.osc, cfg.Mantle.Tick)

	simTicker := time.NewTicker(cfg.Sim.Tick)
	defer simTicker.Stop()
	frameTicker := time.NewTicker(parameter.FrameUpdateInterval)
	defer frameTicker.Stop()

	log.Printf("triad: view started, audio=%v hub=%v sync=%s", cfg.Audio.Enabled, cfg.Hub.Enabled, netCfg.Role)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !v.handleEvent(ev) {
				return nil
			}

		case st := <-states:
			v.sim.applyMantle(st)
			v.player.OnState(st)

		case <-simTicker.C:
			if v.paused {
				continue
			}
			v.last = v.sim.step()
			v.sim.publish(v.last, hubSink, syncSink)

		case <-frameTicker.C:
			v.draw()
		}
	}
}

// handleEvent applies one key or resize event, returning false to quit
func (v *view) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.paused = !v.paused
			case 'r':
				v.sim.reseed(v.cfg.SeedConfig())
				log.Printf("triad: field reseeded")
			case 'm':
				v.renderer.Muted = v.player.ToggleMute()
			}
		}

	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// draw renders the latest tick and the metrics footer
func (v *view) draw() {
	v.renderer.Draw(v.screen, v.sim.snapshot(), v.last.Stats, v.sim.state)
	v.renderer.DrawMetrics(v.screen, v.metrics.Snapshot())
	v.screen.Show()
}
