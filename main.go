package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/xprobe/internal/analyzer"
	"github.com/mickamy/xprobe/internal/config"
	"github.com/mickamy/xprobe/internal/dialect"
	"github.com/mickamy/xprobe/internal/dialect/sqlite"
	"github.com/mickamy/xprobe/internal/diff"
	"github.com/mickamy/xprobe/internal/logger"
	"github.com/mickamy/xprobe/internal/model"
	"github.com/mickamy/xprobe/internal/parser"
	"github.com/mickamy/xprobe/internal/render/html"
	"github.com/mickamy/xprobe/internal/render/tui"
	"github.com/mickamy/xprobe/internal/runner"
	"github.com/mickamy/xprobe/internal/server"
)

var version = "dev"

// sampleQuery is analysed by --sample when neither --sql nor --query is given.
const sampleQuery = `
SELECT c.customer_id, c.name, o.order_id, SUM(oi.quantity * oi.unit_price) AS order_total
FROM customers c
JOIN orders o ON c.customer_id = o.customer_id
JOIN order_items oi ON o.order_id = oi.order_id
JOIN products p ON oi.product_id = p.product_id
WHERE p.price > 20
    AND c.city = 'City_1'
    AND o.order_date >= '2025-11-01'
GROUP BY o.order_id
HAVING order_total > 50
ORDER BY order_total DESC
LIMIT 10;
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "xprobe",
		Short: "SQL query cost prober",
		Long: `xprobe runs a query against a live database, probes each table, join pair
and subquery on its own, and ranks the measured steps to point at bottlenecks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(logger.New(logger.LoadConfig()))
			return applyConfigPath(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (JSON or YAML). Falls back to $XPROBE_CONFIG")

	root.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
		newReportCmd(),
		newDiffCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func applyConfigPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("XPROBE_CONFIG"))
	}
	return config.Apply(path)
}

// probeFlags are shared by every command that opens a database.
type probeFlags struct {
	url     string
	sqlPath string
	query   string
	sample  bool
	timeout time.Duration
}

func (f *probeFlags) register(cmd *cobra.Command, withQuery bool) {
	cmd.Flags().StringVar(&f.url, "url", os.Getenv("DATABASE_URL"), "Database URL (postgres://, mysql://, sqlite:// or a .db path); defaults to $DATABASE_URL")
	cmd.Flags().BoolVar(&f.sample, "sample", false, "Use an in-memory SQLite database seeded with sample data when no URL is given")
	if withQuery {
		cmd.Flags().StringVar(&f.sqlPath, "sql", "", "Path to the SQL file to analyze")
		cmd.Flags().StringVar(&f.query, "query", "", "Inline SQL string to analyze")
		cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Optional analysis timeout, e.g. 45s")
	}
}

func (f *probeFlags) resolveQuery() (string, error) {
	if f.sqlPath != "" && f.query != "" {
		return "", fmt.Errorf("specify only one of --sql or --query")
	}
	switch {
	case f.sqlPath != "":
		data, err := os.ReadFile(f.sqlPath)
		if err != nil {
			return "", fmt.Errorf("read sql file: %w", err)
		}
		return string(data), nil
	case f.query != "":
		return f.query, nil
	case f.sample:
		return sampleQuery, nil
	}
	return "", fmt.Errorf("--sql or --query is required")
}

func (f *probeFlags) open(ctx context.Context) (runner.Conn, error) {
	url := strings.TrimSpace(f.url)
	if url == "" {
		if f.sample {
			slog.InfoContext(ctx, "using seeded in-memory sample database")
			return sqlite.OpenSample(ctx)
		}
		return nil, fmt.Errorf("--url is required or set $DATABASE_URL (or pass --sample)")
	}
	return dialect.Open(ctx, url)
}

func (f *probeFlags) analyze(ctx context.Context) (*model.Report, error) {
	query, err := f.resolveQuery()
	if err != nil {
		return nil, err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	conn, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	return analyzer.Analyze(ctx, conn, query, analyzer.Options{Logger: slog.Default()})
}

// renderFlags configure tui and html output.
type renderFlags struct {
	mode       string
	out        string
	title      string
	color      bool
	limit      int
	includeCSS bool
	hidePlan   bool
}

func (f *renderFlags) register(cmd *cobra.Command, modes string) {
	cmd.Flags().StringVar(&f.mode, "mode", "tui", "Output mode: "+modes)
	cmd.Flags().StringVar(&f.out, "out", "", "Output path (stdout if omitted)")
	cmd.Flags().StringVar(&f.title, "title", "xprobe report", "Report title (HTML)")
	cmd.Flags().BoolVar(&f.color, "color", true, "Enable ANSI colors for TUI output")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum timeline rows (TUI, default 10)")
	cmd.Flags().BoolVar(&f.includeCSS, "css", true, "Include inline styles (HTML)")
	cmd.Flags().BoolVar(&f.hidePlan, "hide-plan", false, "Omit raw plan rows (TUI)")
}

func (f *renderFlags) render(cmd *cobra.Command, report *model.Report) error {
	return withOutput(cmd, f.out, func(w io.Writer) error {
		switch f.mode {
		case "tui":
			return tui.Render(w, report, tui.Options{
				EnableColor: f.color && f.out == "",
				MaxRows:     f.limit,
				HidePlan:    f.hidePlan,
			})
		case "html":
			return html.Render(w, report, html.Options{
				Title:         f.title,
				IncludeStyles: f.includeCSS,
			})
		case "json":
			return writeJSON(w, report)
		default:
			return fmt.Errorf("unknown mode %q", f.mode)
		}
	})
}

func newRunCmd() *cobra.Command {
	var (
		flags   probeFlags
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze a query and write the report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := flags.analyze(cmd.Context())
			if err != nil {
				return err
			}
			return withOutput(cmd, outPath, func(w io.Writer) error {
				return writeJSON(w, report)
			})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&outPath, "out", "", "Path to write the resulting JSON (defaults to stdout)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		flags  probeFlags
		render renderFlags
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a query and render the report in one step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := flags.analyze(cmd.Context())
			if err != nil {
				return err
			}
			return render.render(cmd, report)
		},
	}
	flags.register(cmd, true)
	render.register(cmd, "tui, html or json")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		input  string
		render renderFlags
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved report (TUI or HTML)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			report, err := loadReport(input)
			if err != nil {
				return err
			}
			return render.render(cmd, report)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Path to a report written by \"xprobe run\"")
	render.register(cmd, "tui or html")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var (
		basePath   string
		targetPath string
		format     string
		output     string
		opts       diff.Options
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two reports and emit a Markdown or JSON summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if basePath == "" || targetPath == "" {
				return fmt.Errorf("--base and --target are required")
			}
			base, err := loadReport(basePath)
			if err != nil {
				return fmt.Errorf("load base: %w", err)
			}
			target, err := loadReport(targetPath)
			if err != nil {
				return fmt.Errorf("load target: %w", err)
			}

			result, err := diff.Compare(base, target, opts)
			if err != nil {
				return err
			}

			return withOutput(cmd, output, func(w io.Writer) error {
				switch format {
				case "md", "markdown":
					_, err := io.WriteString(w, result.Markdown())
					return err
				case "json":
					payload, err := result.JSON()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(w, "%s\n", payload)
					return err
				default:
					return fmt.Errorf("unsupported format %q", format)
				}
			})
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "Path to the baseline report")
	cmd.Flags().StringVar(&targetPath, "target", "", "Path to the target report")
	cmd.Flags().StringVar(&format, "format", "md", "Output format (md or json)")
	cmd.Flags().StringVar(&output, "out", "", "Output path (stdout if omitted)")
	cmd.Flags().Float64Var(&opts.MinDeltaMs, "min-delta", 0, "Minimum step delta in ms to report (default from config)")
	cmd.Flags().Float64Var(&opts.MinPercentChange, "min-percent", 0, "Minimum percent change to report (default from config)")
	cmd.Flags().IntVar(&opts.MaxItems, "limit", 0, "Maximum rows per section (default from config)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		flags probeFlags
		addr  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = conn.Close(context.Background())
			}()

			h := server.NewHandler(conn, analyzer.Options{Logger: slog.Default()})
			return h.ListenAndServe(ctx, addr)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show CLI version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, meta := resolveVersion()
			out := cmd.OutOrStdout()
			switch {
			case short:
				_, _ = fmt.Fprintln(out, v)
			case meta != "":
				_, _ = fmt.Fprintf(out, "xprobe %s (%s)\n", v, meta)
			default:
				_, _ = fmt.Fprintf(out, "xprobe %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	} else if dirty {
		details = append(details, "modified workspace")
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}

	return v, strings.Join(details, ", ")
}

func loadReport(path string) (*model.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return parser.ParseReport(file)
}

func withOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) (err error) {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	return fn(file)
}

// writeJSON keeps "<>" in join keys readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
