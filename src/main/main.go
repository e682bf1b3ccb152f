package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"screen-region-select/src/config"
	"screen-region-select/src/eventloop"
	"screen-region-select/src/logutil"
	"screen-region-select/src/notification"
	"screen-region-select/src/runtimeinit"
	"screen-region-select/src/session"
	"screen-region-select/src/singleinstance"
	"screen-region-select/src/tray"
)

type mainOptions struct {
	runOnce bool
	stdout  bool
	hotkey  string
}

func main() {
	cmd := newRootCmd(&mainOptions{})
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "region-select",
		Short:         "Select a screen region across monitors",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return runOnce(*opts)
			}
			return runResident(*opts)
		},
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Select one region, deliver it and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the region to stdout instead of the clipboard")
	cmd.Flags().StringVar(&opts.hotkey, "hotkey", "", "Override the HOTKEY setting")
	return cmd
}

// normalizeLegacyArgs maps Go-style single dash long flags to their GNU form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "stdout", "hotkey"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func loadOptions(opts mainOptions) config.LoadOptions {
	lo := config.LoadOptions{HotkeyOverride: opts.hotkey}
	if opts.stdout {
		lo.OutputModeOverride = config.OutputStdout
	}
	return lo
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runOnce(opts mainOptions) error {
	// Load .env early so SINGLEINSTANCE_PORT_* apply to the delegation scan.
	cfg, err := config.LoadWithOptions(loadOptions(opts))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	var standaloneErr error
	handleRunOnceWithDelegation(cfg.OutputMode, singleinstance.NewClient(), func() {
		standaloneErr = runStandalone(opts)
	})
	return standaloneErr
}

// handleRunOnceWithDelegation hands the request to a resident when one answers
// and calls fallback otherwise.
func handleRunOnceWithDelegation(outputMode string, client singleinstance.Client, fallback func()) {
	ctx, cancel := signalContext()
	defer cancel()

	stdout := outputMode == config.OutputStdout
	delegated, text, err := client.TryRunOnce(ctx, stdout)
	switch {
	case err != nil && delegated && errors.Is(err, context.Canceled):
		log.Printf("Delegated selection interrupted")
	case err != nil && delegated && err.Error() == session.ErrSelectionCancelled.Error():
		log.Printf("Delegated selection cancelled")
	case err != nil:
		log.Printf("Delegation error: %v; falling back to standalone", err)
		fallback()
	case delegated:
		log.Printf("Delegated to resident")
		if stdout {
			fmt.Fprintln(os.Stdout, text)
		}
	default:
		log.Printf("No resident detected (not delegated), running standalone")
		fallback()
	}
}

func runStandalone(opts mainOptions) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  loadOptions(opts),
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	engine, err := runtimeinit.NewEngine(cfg, logutil.Component("engine"))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	engine.Start(ctx)

	log.Printf("Running selection once (--run-once mode), output=%s", cfg.OutputMode)
	outcome, err := session.Execute(ctx, session.Options{
		Select: engine.Requester.RequestSelection,
		Target: session.NewTarget(cfg.OutputMode, os.Stdout),
	})
	if errors.Is(err, session.ErrSelectionCancelled) {
		log.Printf("Selection cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Selection delivered: %s on %s", outcome, outcome.Monitor.Label())
	return nil
}

func runResident(opts mainOptions) error {
	// Refuse to start a second resident.
	probeCtx, probeCancel := context.WithCancel(context.Background())
	_, _ = config.LoadWithOptions(loadOptions(opts))
	if port, ok := singleinstance.DetectResidentPort(probeCtx); ok {
		probeCancel()
		fmt.Printf("one is already running on port %d\n", port)
		return fmt.Errorf("resident already running on port %d", port)
	}
	probeCancel()

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  loadOptions(opts),
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		notification.ShowBlockingError("Region Select", fmt.Sprintf("Startup failed: %v", err))
		return err
	}
	engine, err := runtimeinit.NewEngine(cfg, logutil.Component("engine"))
	if err != nil {
		notification.ShowBlockingError("Region Select", fmt.Sprintf("Startup failed: %v", err))
		return err
	}

	log.Printf("Region Select initialized")
	log.Printf("Hotkey: %s, output: %s, windowing: %s", cfg.Hotkey, cfg.OutputMode, engine.Windowing)
	engine.LogMonitors()

	ctx, cancel := signalContext()
	defer cancel()
	engine.Start(ctx)

	loop := eventloop.New(engine.Requester, cfg)
	tooltip := fmt.Sprintf("%s - Press %s to select", tray.Title, cfg.Hotkey)
	loop.SetDefaultTooltip(tooltip)
	loop.Tooltip = tray.UpdateTooltip
	loop.About = tray.SetAboutExtra
	loop.Serve(singleinstance.NewServer())
	stopHotkey, err := loop.StartHotkey(cfg.Hotkey)
	if err != nil {
		notification.ShowBlockingError("Region Select", fmt.Sprintf("Invalid hotkey %q: %v", cfg.Hotkey, err))
		return fmt.Errorf("failed to register hotkey: %w", err)
	}
	defer stopHotkey()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
		tray.Quit()
	}()

	tray.Run(tray.Menu{
		Tooltip:  tooltip,
		OnSelect: func() { loop.Trigger() },
		OnQuit:   cancel,
	}, cancel)

	cancel()
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
		return err
	}
	return nil
}
