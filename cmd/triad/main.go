package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/triad/config"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triad",
		Short: "Triad particle field with a mantle oscillator",
		Long: `triad runs a field of particles collapsing toward z=0 while rotating
in alternating directions per layer. A mantle oscillator drives their rpm and
entropy; the field can be viewed in the terminal, streamed to browsers over
websocket, or synced to other triad nodes over TCP.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Write debug log under the log directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newRunCmd(),
		newSimulateCmd(),
		newServeCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

// prepare loads configuration, applies --debug and starts logging
// The returned func closes the log file
func prepare(cmd *cobra.Command) (*config.Config, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Debug = true
	}

	logDir = cfg.Logging.Dir
	logFile := setupLogging(cfg.Logging.Debug)
	return cfg, func() {
		if logFile != nil {
			logFile.Close()
		}
	}, nil
}

// signalContext is cancelled on interrupt or terminate
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)

	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "triad version %s\n", version)
			}
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after applying the config file and TRIAD_*
environment overrides. The output can be saved and passed back with --config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := prepare(cmd)
			if err != nil {
				return err
			}
			defer done()
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}
