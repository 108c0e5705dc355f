package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pg-sharding/dataplane/pkg/client"
	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/models/point"
	"github.com/pg-sharding/dataplane/pkg/models/result"
	"github.com/pg-sharding/dataplane/router/metrics"
	"github.com/pg-sharding/dataplane/router/statistics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cfgPath     string
	logLevel    string
	prettyLog   bool
	clusterAddr string
	printStats  bool
	metricsAddr string

	sqlText      string
	queryTables  []string
	queryTimeout time.Duration

	writeTable  string
	writeTags   []string
	writeFields []string
)

var rootCmd = &cobra.Command{
	Use:   "dpctl --cluster host:port",
	Short: "dpctl sends writes and queries through the data plane client",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	// config loading already logs at the requested level
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("log-level") {
			return dplog.UpdateZeroLogLevel(logLevel)
		}
		return nil
	},
}

// loadConfig reads the config file when given and applies flag overrides on
// top of it. Flags win over the file only when set explicitly.
func loadConfig(cmd *cobra.Command) (config.ClientCfg, error) {
	cfg := config.NewDefaultClientCfg()
	var cfgStr string
	if cfgPath != "" {
		var err error
		if cfgStr, err = config.LoadClientCfg(cfgPath); err != nil {
			return cfg, err
		}
		cfg = config.ClientConfig().Copy()
	}

	applyFlags(cmd, &cfg)
	dplog.ReloadLogger(cfg.LogFile, cfg.LogLevel, cfg.PrettyLogging)
	if cfgStr != "" {
		dplog.Zero.Debug().Str("config", cfgStr).Msg("dpctl: running config")
	}

	return cfg, cfg.Validate()
}

func applyFlags(cmd *cobra.Command, cfg *config.ClientCfg) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("pretty-log") {
		cfg.PrettyLogging = prettyLog
	}
	if flags.Changed("cluster") {
		cfg.Router.ClusterAddress = clusterAddr
	}
}

func withClient(cmd *cobra.Command, run func(ctx context.Context, cl *client.Client) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tracer, err := initJaegerTracer(cfg.JaegerConfig)
	if err != nil {
		return errors.Wrap(err, "failed to init tracer")
	}
	defer func() { _ = tracer.Close() }()

	if metricsAddr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if _, err := metrics.Serve(ctx, metricsAddr); err != nil {
			return errors.Wrap(err, "failed to serve metrics")
		}
	}

	cl, err := client.New(client.Options{Config: cfg})
	if err != nil {
		return errors.Wrap(err, "failed to create client")
	}
	defer func() {
		if err := cl.Close(); err != nil {
			dplog.Zero.Error().Err(err).Msg("dpctl: failed to close client")
		}
	}()

	if err := run(cmd.Context(), cl); err != nil {
		return err
	}
	if printStats {
		writeStats(cmd.OutOrStdout(), cl.Latency(), cl.Rates())
	}
	return nil
}

var routeCmd = &cobra.Command{
	Use:   "route TABLE...",
	Short: "resolve the endpoints owning tables",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, cl *client.Client) error {
			routes, err := cl.Router().RouteFor(ctx, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range args {
				if r, ok := routes[t]; ok {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", t, r.Endpoint)
				} else {
					_, _ = fmt.Fprintf(out, "%s\t<no route>\n", t)
				}
			}
			return nil
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query --sql SQL",
	Short: "run a query on every endpoint owning its tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, cl *client.Client) error {
			res, err := cl.SqlQuery(ctx, sqlText, queryTables...)
			if err != nil {
				return err
			}
			if !res.IsOk() {
				return reportErr(cmd.ErrOrStderr(), res.GetErr())
			}
			q := res.GetOk()
			for _, r := range q.Rows {
				writeRow(cmd.OutOrStdout(), r)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d rows, %d affected)\n", q.RowCount(), q.AffectedRows)
			return nil
		})
	},
}

var streamQueryCmd = &cobra.Command{
	Use:   "stream-query --sql SQL",
	Short: "stream query rows from the endpoint owning its tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, cl *client.Client) error {
			it, err := cl.BlockingStreamSqlQuery(ctx, sqlText, queryTimeout, queryTables...)
			if err != nil {
				return err
			}
			defer it.Close()

			n := 0
			for {
				has, err := it.HasNext()
				if err != nil {
					return err
				}
				if !has {
					break
				}
				r, err := it.Next()
				if err != nil {
					return err
				}
				writeRow(cmd.OutOrStdout(), r)
				n++
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", n)
			return nil
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write --table TABLE --tag k=v --field k=v",
	Short: "write one point",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPoint(writeTable, writeTags, writeFields, time.Now())
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, cl *client.Client) error {
			res, err := cl.Write(ctx, []point.Point{p})
			if err != nil {
				return err
			}
			if !res.IsOk() {
				return reportErr(cmd.ErrOrStderr(), res.GetErr())
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.GetOk())
			return nil
		})
	},
}

func buildPoint(table string, tags, fields []string, ts time.Time) (point.Point, error) {
	b := point.NewPoint(table).Time(ts)
	for _, kv := range tags {
		k, v, err := splitPair(kv)
		if err != nil {
			return point.Point{}, err
		}
		b.Tag(k, v)
	}
	for _, kv := range fields {
		k, v, err := splitPair(kv)
		if err != nil {
			return point.Point{}, err
		}
		b.Field(k, parseValue(v))
	}
	return b.Build()
}

func splitPair(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", kv)
	}
	return k, v, nil
}

// parseValue guesses the field type: integers, floats and booleans, strings
// otherwise.
func parseValue(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func writeRow(w io.Writer, r result.Row) {
	cols := make([]string, 0, r.Len())
	for _, c := range r.Columns {
		cols = append(cols, fmt.Sprintf("%s=%v", c.Name, c.Value))
	}
	_, _ = fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func reportErr(w io.Writer, e *result.Err) error {
	for n := range e.All() {
		_, _ = fmt.Fprintf(w, "%s: [%d] %s\n", n.ErrTo, n.Code, n.Message)
	}
	return e
}

func writeStats(w io.Writer, latency *statistics.LatencyHolder, rates *statistics.RateHolder) {
	for _, r := range rates.Snapshot() {
		_, _ = fmt.Fprintf(w, "%s\tcalls=%d\tavg=%.1f/s\tpeak=%.1f/s\n", r.Method, r.Total, r.Avg, r.Peak)
	}
	eps := latency.Endpoints(statistics.StatisticsTypePhysical)
	sort.Strings(eps)
	for _, ep := range eps {
		_, _ = fmt.Fprintf(w, "%s\tcalls=%d\tp50=%.2fms\tp99=%.2fms\n",
			ep,
			latency.Count(statistics.StatisticsTypePhysical, ep),
			latency.Quantile(statistics.StatisticsTypePhysical, ep, 0.5),
			latency.Quantile(statistics.StatisticsTypePhysical, ep, 0.99))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")
	rootCmd.PersistentFlags().BoolVarP(&prettyLog, "pretty-log", "P", false, "enables pretty logging")
	rootCmd.PersistentFlags().StringVarP(&clusterAddr, "cluster", "e", "", "cluster address, host:port")
	rootCmd.PersistentFlags().BoolVar(&printStats, "stats", false, "print call rates and endpoint latencies after the command")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while the command runs")

	for _, cmd := range []*cobra.Command{queryCmd, streamQueryCmd} {
		cmd.Flags().StringVar(&sqlText, "sql", "", "statement to run")
		cmd.Flags().StringSliceVarP(&queryTables, "table", "t", nil, "tables the statement touches, parsed from it when omitted")
		_ = cmd.MarkFlagRequired("sql")
	}
	streamQueryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "how long to wait for each row")

	writeCmd.Flags().StringVarP(&writeTable, "table", "t", "", "table to write to")
	writeCmd.Flags().StringSliceVar(&writeTags, "tag", nil, "tag as key=value")
	writeCmd.Flags().StringSliceVar(&writeFields, "field", nil, "field as key=value")
	_ = writeCmd.MarkFlagRequired("table")

	rootCmd.AddCommand(routeCmd, queryCmd, streamQueryCmd, writeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		dplog.Zero.Error().Err(err).Msg("dpctl failed")
		os.Exit(1)
	}
}
