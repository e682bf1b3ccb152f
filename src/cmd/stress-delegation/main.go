// Command stress-delegation launches many concurrent run-once clients against a
// resident. The resident runs one selection at a time, so all but one client
// should be told the resident is busy.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"screen-region-select/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

func main() {
	if err := newRootCmd(&stressOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-delegation",
		Short:         "Stress test run-once delegation to the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "std" && opts.mode != "clip" {
				return fmt.Errorf("unknown mode %q, want std or clip", opts.mode)
			}
			t := stress(opts, singleinstance.NewClient())
			return t.report(cmd.OutOrStdout(), opts.n)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 20, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: stdout or clipboard delivery")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 30*time.Second, "per-client timeout")

	return cmd
}

type outcome int

const (
	outcomeSelected outcome = iota
	outcomeCancelled
	outcomeBusy
	outcomeNoResident
	outcomeError
)

// classify maps one client's TryRunOnce result.
func classify(delegated bool, err error) outcome {
	switch {
	case err != nil && strings.Contains(strings.ToLower(err.Error()), "busy"):
		return outcomeBusy
	case err != nil && strings.Contains(err.Error(), "cancelled"):
		return outcomeCancelled
	case err != nil:
		return outcomeError
	case !delegated:
		return outcomeNoResident
	}
	return outcomeSelected
}

type tally struct {
	mu      sync.Mutex
	counts  map[outcome]int
	rects   []string
	elapsed time.Duration
}

func (t *tally) add(o outcome, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[o]++
	if o == outcomeSelected && text != "" {
		t.rects = append(t.rects, strings.TrimSpace(text))
	}
}

func stress(opts *stressOptions, client singleinstance.Client) *tally {
	t := &tally{counts: make(map[outcome]int)}
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, text, err := client.TryRunOnce(ctx, opts.mode == "std")
			t.add(classify(delegated, err), text)
		}()
	}
	wg.Wait()
	t.elapsed = time.Since(start)
	return t
}

func (t *tally) report(w io.Writer, launched int) error {
	_, err := fmt.Fprintf(w, "launched=%d selected=%d cancelled=%d busy=%d no-resident=%d err=%d elapsed=%s\n",
		launched, t.counts[outcomeSelected], t.counts[outcomeCancelled], t.counts[outcomeBusy],
		t.counts[outcomeNoResident], t.counts[outcomeError], t.elapsed.Round(time.Millisecond))
	for _, r := range t.rects {
		if _, err := fmt.Fprintf(w, "  %s\n", r); err != nil {
			return err
		}
	}
	return err
}
