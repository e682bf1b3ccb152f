package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"screen-region-select/src/clipboard"
	"screen-region-select/src/config"
	"screen-region-select/src/coordinator"
	"screen-region-select/src/monitor"
	"screen-region-select/src/replay"
	"screen-region-select/src/runtimeinit"
	"screen-region-select/src/screenshot"
	"screen-region-select/src/session"
)

type cliOptions struct {
	format    string
	verbose   bool
	pngPath   string
	copyImage bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), os.Stdout)
}

func runWithArgs(args []string, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"region-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetOut(out)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "region-tool",
		Short:         "Inspect displays and run region selections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(opts.verbose, cmd.ErrOrStderr())
			return validateFormat(opts.format)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text, json or yaml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(newMonitorsCmd(opts), newReplayCmd(opts), newSelectCmd(opts))
	return cmd
}

func newMonitorsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitors",
		Short: "List the active displays in native and logical units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			monitors, err := monitor.NewPlatform().Enumerate()
			if err != nil {
				return err
			}
			return writeMonitors(cmd.OutOrStdout(), monitor.GranularCopy(monitors, false), opts.format)
		},
	}
}

func newReplayCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a scripted selection against headless overlays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := replay.LoadFile(args[0])
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := replay.Run(script, log.Default())
			if err != nil && !errors.Is(err, replay.ErrUnresolved) {
				return err
			}
			if werr := writeResult(cmd.OutOrStdout(), newSelectionResult(res.Outcome, args[0], time.Since(start)), opts.format); werr != nil {
				return werr
			}
			return err
		},
	}
}

func newSelectCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select a region interactively and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd.OutOrStdout(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.pngPath, "png", "", "Save a PNG capture of the selected region")
	cmd.Flags().BoolVar(&opts.copyImage, "copy-image", false, "Copy a capture of the selected region to the clipboard")
	return cmd
}

func runSelect(out io.Writer, opts cliOptions) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:      config.LoadOptions{OutputModeOverride: config.OutputStdout},
		RequireClipboard: opts.copyImage,
	})
	if err != nil {
		return err
	}
	engine, err := runtimeinit.NewEngine(cfg, log.Default())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	engine.Start(ctx)

	start := time.Now()
	outcome, err := engine.Requester.RequestSelection(ctx)
	if err != nil && !errors.Is(err, session.ErrSelectionCancelled) {
		return err
	}
	if err := writeResult(out, newSelectionResult(outcome, "interactive", time.Since(start)), opts.format); err != nil {
		return err
	}
	if outcome.Aborted {
		return session.ErrSelectionCancelled
	}
	return saveCapture(outcome, opts)
}

func saveCapture(outcome coordinator.Outcome, opts cliOptions) error {
	if opts.pngPath == "" && !opts.copyImage {
		return nil
	}
	data, err := screenshot.CaptureRegion(outcome.Rect)
	if err != nil {
		return err
	}
	if opts.pngPath != "" {
		if err := os.WriteFile(opts.pngPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.pngPath, err)
		}
		log.Printf("Saved %d bytes to %s", len(data), opts.pngPath)
	}
	if opts.copyImage {
		if err := clipboard.WriteImage(data); err != nil {
			return fmt.Errorf("clipboard error: %w", err)
		}
	}
	return nil
}

func configureLogging(verbose bool, stderr io.Writer) {
	if !verbose {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(stderr)
}

func validateFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown format %q, want text, json or yaml", format)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"format", "verbose", "png", "copy-image"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}

	return normalized
}

type MonitorInfo struct {
	Name         string  `json:"name" yaml:"name"`
	Label        string  `json:"label" yaml:"label"`
	NativeBounds string  `json:"native_bounds" yaml:"native_bounds"`
	Bounds       string  `json:"bounds" yaml:"bounds"`
	WorkingArea  string  `json:"working_area" yaml:"working_area"`
	Dpi          int     `json:"dpi" yaml:"dpi"`
	Scale        float64 `json:"scale" yaml:"scale"`
	Primary      bool    `json:"primary" yaml:"primary"`
}

func writeMonitors(w io.Writer, monitors []monitor.Monitor, format string) error {
	infos := make([]MonitorInfo, 0, len(monitors))
	for _, m := range monitors {
		infos = append(infos, MonitorInfo{
			Name:         m.Name,
			Label:        m.Label(),
			NativeBounds: m.NativeBounds.String(),
			Bounds:       m.Bounds.String(),
			WorkingArea:  m.WorkingArea.String(),
			Dpi:          m.Dpi,
			Scale:        m.Scale,
			Primary:      m.IsPrimary,
		})
	}
	switch format {
	case "json":
		return encodeJSON(w, infos)
	case "yaml":
		return yaml.NewEncoder(w).Encode(infos)
	}
	_, err := fmt.Fprint(w, renderMonitors(infos))
	return err
}

func renderMonitors(infos []MonitorInfo) string {
	bold := lipgloss.NewStyle().Bold(true)
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", bold.Render("Displays:"), len(infos))
	for _, m := range infos {
		marker := gray.Render("○")
		if m.Primary {
			marker = green.Render("●")
		}
		fmt.Fprintf(&b, "  %s %s %s\n", marker, bold.Render(m.Name), cyan.Render(m.Label))
		fmt.Fprintf(&b, "    %s %s\n", gray.Render("native: "), m.NativeBounds)
		fmt.Fprintf(&b, "    %s %s\n", gray.Render("logical:"), m.Bounds)
		fmt.Fprintf(&b, "    %s %s\n", gray.Render("work:   "), m.WorkingArea)
		fmt.Fprintf(&b, "    %s %d dpi, scale %g\n", gray.Render("dpi:    "), m.Dpi, m.Scale)
	}
	return b.String()
}

type SelectionResult struct {
	Rect      string  `json:"rect" yaml:"rect"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Width     float64 `json:"width" yaml:"width"`
	Height    float64 `json:"height" yaml:"height"`
	Monitor   string  `json:"monitor,omitempty" yaml:"monitor,omitempty"`
	Aborted   bool    `json:"aborted" yaml:"aborted"`
	Source    string  `json:"source" yaml:"source"`
	Timestamp string  `json:"timestamp" yaml:"timestamp"`
	Duration  float64 `json:"duration_seconds" yaml:"duration_seconds"`
}

func newSelectionResult(o coordinator.Outcome, source string, elapsed time.Duration) SelectionResult {
	r := SelectionResult{
		Rect:      o.String(),
		Aborted:   o.Aborted,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}
	if !o.Aborted {
		r.X, r.Y, r.Width, r.Height = o.Rect.X, o.Rect.Y, o.Rect.Width, o.Rect.Height
	}
	if o.Monitor != nil {
		r.Monitor = o.Monitor.Name
	}
	return r
}

func writeResult(w io.Writer, r SelectionResult, format string) error {
	switch format {
	case "json":
		return encodeJSON(w, r)
	case "yaml":
		return yaml.NewEncoder(w).Encode(r)
	}
	_, err := fmt.Fprintln(w, r.Rect)
	return err
}

func encodeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
