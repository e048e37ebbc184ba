package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jwtly10/smcplan/internal/config"
	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/metrics"
	"github.com/jwtly10/smcplan/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: smcplan <command> [flags]

commands:
  analyze   fetch recent bars and print a trade plan
  backtest  replay an entry rule over history
  watch     re-analyse on the configured cron schedule and serve metrics
  record    journal a closed live trade for the daily and weekly loss limits
  calc      size a manual trade from an entry and a stop

run 'smcplan <command> -h' for flags`

type options struct {
	configPath string
	instrument string
	timeframe  string
	asJSON     bool

	// backtest
	rule   string
	from   string
	to     string
	pine   string
	last   int
	noSave bool

	// record and calc
	side string
	pnl  float64
	note string

	// calc
	entry    float64
	stop     float64
	stopPips float64
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment")
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	var opts options
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config")
	fs.StringVar(&opts.instrument, "instrument", "", "instrument, overrides config (e.g. EUR_USD)")
	fs.StringVar(&opts.timeframe, "timeframe", "", "timeframe, overrides config (M1..W)")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")
	fs.StringVar(&opts.rule, "rule", "structure", "backtest entry rule: structure, ema, impulse or all")
	fs.StringVar(&opts.from, "from", "", "backtest start date (YYYY-MM-DD), default 90 days ago")
	fs.StringVar(&opts.to, "to", "", "backtest end date (YYYY-MM-DD), default now")
	fs.StringVar(&opts.pine, "pine", "", "write a Pine Script overlay of the trades to this file")
	fs.IntVar(&opts.last, "last", 5, "number of most recent trades to print, 0 for all")
	fs.BoolVar(&opts.noSave, "no-save", false, "do not journal the backtest run")
	fs.StringVar(&opts.side, "side", string(types.LONG), "record, calc: LONG or SHORT")
	fs.Float64Var(&opts.pnl, "pnl", 0, "record: realized profit or loss in account currency")
	fs.StringVar(&opts.note, "note", "", "record: free text")
	fs.Float64Var(&opts.entry, "entry", 0, "calc: entry price")
	fs.Float64Var(&opts.stop, "stop", 0, "calc: stop loss price")
	fs.Float64Var(&opts.stopPips, "stop-pips", 0, "calc: stop distance in pips, overrides -stop")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if opts.instrument != "" {
		cfg.Instrument = opts.instrument
	}
	if opts.timeframe != "" {
		cfg.Timeframe = opts.timeframe
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.DebugTopics != "" {
		logging.Configure(cfg.DebugTopics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	a, err := newApp(cfg, m)
	if err != nil {
		slog.Error("Failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.close()

	switch cmd {
	case "analyze":
		err = a.analyze(ctx, opts)
	case "backtest":
		err = a.backtest(ctx, opts)
	case "watch":
		err = a.watch(ctx)
	case "record":
		err = a.record(ctx, opts)
	case "calc":
		err = a.calc(opts)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server failed", "error", err)
	}
}
