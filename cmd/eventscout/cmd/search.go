package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/ui"
)

type searchOptions struct {
	country       string
	from          string
	to            string
	limit         int
	format        string
	noCache       bool
	heuristicOnly bool
	trace         bool
	noColor       bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find event pages for a query",
		Long: `Search for web pages describing real conferences and summits.

The query fans out over the configured providers through escalating
query tiers. Candidates pass a quality gate that filters aggregator
listings and thin pages, then an AI ranker orders the survivors with a
deterministic heuristic standing by as fallback.`,
		Example: `  # Search German legal tech events
  eventscout search "legal tech konferenz" --country DE

  # Bound the event date window
  eventscout search "compliance summit" --country DE --from 2026-09-01 --to 2026-12-31

  # Machine-readable output
  eventscout search "legal tech" --format json

  # Skip the cache and the AI ranker
  eventscout search "legal tech" --no-cache --heuristic-only

  # Show the funnel trace after the results
  eventscout search "legal tech" --trace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.country, "country", "c", "", "ISO-3166 alpha-2 country code (e.g. DE)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "Window end, YYYY-MM-DD")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results (0 = configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")
	cmd.Flags().BoolVar(&opts.heuristicOnly, "heuristic-only", false, "Skip the AI ranker, use heuristic order")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Show the funnel trace after the results")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format: %s (use: text, json)", opts.format)
	}

	// Log to file only so stdout carries nothing but results.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	if opts.heuristicOnly {
		cfg.Rank.Bypass = true
	}

	q := event.SearchQuery{
		Text:     query,
		Country:  strings.ToUpper(strings.TrimSpace(opts.country)),
		Limit:    opts.limit,
		UseCache: cfg.Cache.Enabled && !opts.noCache,
	}
	if q.DateFrom, err = parseDateFlag("from", opts.from); err != nil {
		return err
	}
	if q.DateTo, err = parseDateFlag("to", opts.to); err != nil {
		return err
	}

	// Validate before spinning up providers and cache tiers.
	if err := q.Validate(); err != nil {
		return err
	}

	st, err := buildStack(ctx, cfg, secrets, stackOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	res, err := st.orchestrator.Search(ctx, q)
	if err != nil {
		return err
	}

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), opts.noColor)

	if opts.format == "json" {
		return renderer.RenderJSON(res)
	}

	if err := renderer.Render(q, res); err != nil {
		return err
	}
	if opts.trace && res.Trace != nil {
		return renderer.RenderTrace(res.Trace)
	}
	return nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (use YYYY-MM-DD)", name, value)
	}
	return t, nil
}
