package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okuzmin/a11ylens/internal/analyzer"
	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/notify"
	"github.com/okuzmin/a11ylens/internal/reporter"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

func newWatchCmd() *cobra.Command {
	var (
		interval     time.Duration
		format       string
		exitOnNew    bool
		notifyOn     bool
		notifyDryRun bool
	)

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Continuously re-audit a URL and report drift",
		Long:  "Audits on a configurable interval, compares each run against the previous in memory, and prints only new and resolved issues.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, "text", "json"); err != nil {
				return err
			}

			cfg, err := loadConfig(".")
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			auditor, err := newAuditor(cfg)
			if err != nil {
				return err
			}

			var dispatcher *notify.Dispatcher
			if notifyOn {
				dispatcher, err = notify.NewDispatcher(cfg.Notifications, notify.DispatcherOptions{
					Interval: interval,
					DryRun:   notifyDryRun,
					Writer:   cmd.ErrOrStderr(),
				})
				if err != nil {
					return fmt.Errorf("notify: %w", err)
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle SIGINT/SIGTERM for clean shutdown.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			w := &watcher{
				url:        args[0],
				interval:   interval,
				format:     format,
				exitOnNew:  exitOnNew,
				auditor:    auditor,
				dispatcher: dispatcher,
				scoreDrop:  cfg.Thresholds.ScoreDrop,
				cmd:        cmd,
			}
			return w.run(ctx)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "time between audit runs")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json (NDJSON)")
	cmd.Flags().BoolVar(&exitOnNew, "exit-on-new", false, "exit with an error on the first new critical issue")
	cmd.Flags().BoolVar(&notifyOn, "notify", false, "send configured notifications on regressions")
	cmd.Flags().BoolVar(&notifyDryRun, "notify-dry-run", false, "log notification payloads instead of sending")

	return cmd
}

type watcher struct {
	url        string
	interval   time.Duration
	format     string
	exitOnNew  bool
	auditor    *audit.Auditor
	dispatcher *notify.Dispatcher
	scoreDrop  int
	cmd        *cobra.Command
}

// watchEvent is a single NDJSON event emitted in JSON format.
type watchEvent struct {
	Timestamp string                `json:"timestamp"`
	Type      string                `json:"type"` // "full", "diff", "shutdown"
	Score     int                   `json:"score"`
	Issues    []analyzer.Issue      `json:"issues,omitempty"`
	Diff      []analyzer.IssueDelta `json:"diff,omitempty"`
	Summary   watchSummary          `json:"summary"`
}

type watchSummary struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Resolved int `json:"resolved"`
}

func (w *watcher) run(ctx context.Context) error {
	stderr := w.cmd.ErrOrStderr()
	stdout := w.cmd.OutOrStdout()

	_, _ = fmt.Fprintf(stderr, "Watch mode: auditing %s every %s\n", w.url, w.interval)

	var (
		baseline      []analyzer.Issue
		baselineScore int
		haveBaseline  bool
	)
	runCount := 0
	totalNew := 0
	totalResolved := 0

	for {
		resp, err := w.auditor.Run(ctx, w.url)
		if err != nil {
			return err // validation error, retrying will not help
		}
		if !resp.Success {
			if ctx.Err() != nil {
				break
			}
			_, _ = fmt.Fprintf(stderr, "[%s] audit error: %s\n", time.Now().UTC().Format(time.RFC3339), resp.Error)
			goto wait
		}

		runCount++

		if !haveBaseline {
			haveBaseline = true
			baseline = resp.Issues
			baselineScore = resp.Score
			if w.format == "json" {
				w.emitJSON(stdout, &watchEvent{
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Type:      "full",
					Score:     resp.Score,
					Issues:    resp.Issues,
					Summary:   watchSummary{Total: len(resp.Issues)},
				})
			} else {
				_, _ = fmt.Fprintf(stderr, "[%s] Initial audit: score %d, %d issue types\n",
					time.Now().UTC().Format(time.RFC3339), resp.Score, len(resp.Issues))
				_ = reporter.Write(stdout, resp, reporter.FormatText)
			}
		} else {
			diff := analyzer.DiffIssues(resp.Issues, baseline)
			var newCount, resolvedCount int
			for _, d := range diff {
				switch d.Status {
				case analyzer.StatusNew:
					newCount++
				case analyzer.StatusResolved:
					resolvedCount++
				}
			}
			totalNew += newCount
			totalResolved += resolvedCount

			if newCount > 0 || resolvedCount > 0 {
				w.emitDiff(stdout, resp.Score, diff, newCount, resolvedCount)
			}
			w.sendNotifications(ctx, stderr, resp, diff, baselineScore)

			if w.exitOnNew && hasNewCritical(diff) {
				return fmt.Errorf("new critical issue detected on %s", w.url)
			}

			baseline = resp.Issues
			baselineScore = resp.Score
		}

	wait:
		select {
		case <-ctx.Done():
			goto done
		case <-time.After(w.interval):
		}
	}

done:
	if w.format == "json" {
		w.emitJSON(stdout, &watchEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Type:      "shutdown",
			Summary:   watchSummary{New: totalNew, Resolved: totalResolved},
		})
	} else {
		_, _ = fmt.Fprintf(stderr, "Watch stopped after %d runs (%d new, %d resolved)\n",
			runCount, totalNew, totalResolved)
	}
	return nil
}

func (w *watcher) emitDiff(stdout io.Writer, score int, diff []analyzer.IssueDelta, newCount, resolvedCount int) {
	if w.format == "json" {
		changed := make([]analyzer.IssueDelta, 0, len(diff))
		for _, d := range diff {
			if d.Status != analyzer.StatusUnchanged {
				changed = append(changed, d)
			}
		}
		w.emitJSON(stdout, &watchEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Type:      "diff",
			Score:     score,
			Diff:      changed,
			Summary:   watchSummary{Total: len(diff), New: newCount, Resolved: resolvedCount},
		})
		return
	}
	_, _ = fmt.Fprintf(stdout, "[%s] score=%d new=%d resolved=%d\n",
		time.Now().UTC().Format(time.RFC3339), score, newCount, resolvedCount)
	for _, d := range diff {
		if d.Status == analyzer.StatusUnchanged {
			continue
		}
		_, _ = fmt.Fprintf(stdout, "  %s [%s] %s (x%d)\n", d.Status, d.Priority, d.Code, d.Count)
	}
}

func (w *watcher) sendNotifications(ctx context.Context, stderr io.Writer, resp *audit.Response, diff []analyzer.IssueDelta, prevScore int) {
	if w.dispatcher == nil {
		return
	}
	now := time.Now()
	events := notify.EventsFromDiff(w.url, diff, now)
	if w.scoreDrop > 0 && prevScore-resp.Score >= w.scoreDrop {
		events = append(events, notify.ScoreDropEvent(w.url, resp.Score, prevScore, now))
	}
	if len(events) == 0 {
		return
	}
	if err := w.dispatcher.Notify(ctx, events); err != nil {
		_, _ = fmt.Fprintf(stderr, "notify: %v\n", err)
	}
}

func (w *watcher) emitJSON(stdout io.Writer, event *watchEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(stdout, string(data))
}

func hasNewCritical(diff []analyzer.IssueDelta) bool {
	for _, d := range diff {
		if d.Status == analyzer.StatusNew && d.Priority == taxonomy.PriorityCritical {
			return true
		}
	}
	return false
}
