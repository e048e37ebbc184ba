package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/config"
	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/jwtly10/smcplan/internal/metrics"
	"github.com/jwtly10/smcplan/internal/oanda"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/jwtly10/smcplan/internal/report"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/scheduler"
	"github.com/jwtly10/smcplan/internal/store/sqlite"
	"github.com/jwtly10/smcplan/internal/strategy"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/tradingview"
	"github.com/jwtly10/smcplan/internal/types"
)

// app wires config into the analysis pipeline.
type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	source   marketdata.Source
	sizer    *risk.Sizer
	analyzer *planner.Analyzer
	metrics  *metrics.Metrics
}

func newApp(cfg *config.Config, m *metrics.Metrics) (*app, error) {
	policy, err := risk.NewPolicy(cfg.Sizing)
	if err != nil {
		return nil, err
	}
	sizer, err := risk.NewSizer(cfg.Risk, policy)
	if err != nil {
		return nil, err
	}
	detCfg, planCfg, err := cfg.Analysis()
	if err != nil {
		return nil, err
	}
	det, err := structure.NewDetector(detCfg)
	if err != nil {
		return nil, err
	}
	composer, err := planner.NewComposer(planCfg, sizer)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		sizer:    sizer,
		analyzer: planner.NewAnalyzer(det, cfg.Indicators, composer),
		metrics:  m,
	}

	if path := cfg.Database.SQLitePath; path != "" {
		store, err := sqlite.Open(path)
		if err != nil {
			slog.Warn("SQLite store unavailable, running without cache or journal", "error", err)
		} else {
			a.store = store
		}
	}
	return a, nil
}

var errNoCredentials = errors.New("OANDA_ACCOUNT_ID and OANDA_API_KEY are required")

// marketSource builds the OANDA client on first use, behind the candle cache
// when a store is open. Commands that never fetch bars need no credentials.
func (a *app) marketSource() (marketdata.Source, error) {
	if a.source != nil {
		return a.source, nil
	}
	if a.cfg.OANDA.AccountID == "" || a.cfg.OANDA.APIKey == "" {
		return nil, errNoCredentials
	}

	var src marketdata.Source = oanda.NewClient(a.cfg.OANDA.AccountID, a.cfg.OANDA.APIKey, a.cfg.OANDA.BaseURL)
	if a.store != nil {
		src = &marketdata.Cached{Upstream: src, Store: a.store}
	}
	a.source = src
	return src, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) account(ctx context.Context) (planner.Account, error) {
	acct := planner.Account{
		Balance:     a.cfg.Account.Balance,
		RiskPercent: a.cfg.Account.RiskPercent,
		Exposure:    risk.Exposure{OpenPositions: a.cfg.Account.OpenPositions},
	}
	if a.cfg.Account.PipValue > 0 {
		acct.PipSize = strategy.PipSize(a.cfg.Instrument)
		acct.PipValue = a.cfg.Account.PipValue
	}
	if a.store != nil {
		exp, err := a.store.Exposure(ctx, time.Now(), a.cfg.Account.OpenPositions)
		if err != nil {
			return planner.Account{}, err
		}
		acct.Exposure = exp
	}
	return acct, nil
}

func (a *app) analyze(ctx context.Context, opts options) error {
	start := time.Now()
	req, err := marketdata.Lookback(a.cfg.Instrument, a.cfg.Timeframe, a.cfg.Bars, start)
	if err != nil {
		return err
	}
	source, err := a.marketSource()
	if err != nil {
		return err
	}
	series, err := source.Series(ctx, req)
	if err != nil {
		return err
	}
	acct, err := a.account(ctx)
	if err != nil {
		return err
	}

	analysis, err := a.analyzer.Analyze(series, acct)
	if err != nil {
		return err
	}
	a.metrics.ObserveAnalysis(analysis, time.Since(start))

	out := report.FromAnalysis(analysis, report.PricePlaces(strategy.PipSize(a.cfg.Instrument)))
	if opts.asJSON {
		return printJSON(out)
	}

	fmt.Printf("%s %s: %d bars, %d structures\n", out.Instrument, out.Timeframe, series.Len(), out.Structures)
	fmt.Println(analysis.Result.Guidance())
	if out.Setup != nil {
		for _, f := range out.Setup.Factors {
			fmt.Printf("  %-24s %+.0f\n", f.Name, f.Weight)
		}
		fmt.Println()
		for _, w := range out.Setup.Warnings {
			fmt.Println("  * " + w)
		}
	}
	return nil
}

func (a *app) backtest(ctx context.Context, opts options) error {
	to := time.Now()
	from := to.AddDate(0, 0, -90)
	var err error
	if opts.from != "" {
		if from, err = time.Parse(time.DateOnly, opts.from); err != nil {
			return fmt.Errorf("parse -from: %w", err)
		}
	}
	if opts.to != "" {
		if to, err = time.Parse(time.DateOnly, opts.to); err != nil {
			return fmt.Errorf("parse -to: %w", err)
		}
	}

	source, err := a.marketSource()
	if err != nil {
		return err
	}
	series, err := source.Series(ctx, marketdata.Request{
		Instrument: a.cfg.Instrument,
		Timeframe:  a.cfg.Timeframe,
		From:       from,
		To:         to,
	})
	if err != nil {
		return err
	}
	slog.Info("Loaded bars", "count", series.Len())

	engine, err := backtest.NewEngine(a.cfg.Backtest, a.sizer)
	if err != nil {
		return err
	}
	jobs, err := a.jobs(opts.rule, engine, series)
	if err != nil {
		return err
	}

	start := time.Now()
	results := backtest.Sweep(ctx, jobs)
	for _, res := range results {
		if res.Err != nil {
			return fmt.Errorf("%s backtest: %w", res.Name, res.Err)
		}
		a.metrics.ObserveBacktest(res.Report, time.Since(start))

		if a.store != nil && !opts.noSave {
			if err := a.store.SaveReport(ctx, res.Report); err != nil {
				slog.Warn("Failed to journal backtest", "run_id", res.Report.RunID, "error", err)
			}
		}

		if opts.asJSON {
			if err := printJSON(report.FromBacktest(res.Report, report.PricePlaces(strategy.PipSize(a.cfg.Instrument)))); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("\n##### %s (run %s)\n", res.Name, res.Report.RunID)
		res.Report.Summary.Print()
		if opts.last <= 0 {
			res.Report.PrintTrades()
		} else {
			res.Report.PrintTradesBetween(len(res.Report.Trades)-opts.last, len(res.Report.Trades))
		}
	}

	structures, err := a.analyzer.Structures(series)
	if err != nil {
		slog.Warn("No structures for overlay", "error", err)
	}
	trades := results[0].Report.Trades
	tradingview.DumpPineScript(trades, structures)

	if opts.pine != "" {
		f, err := os.Create(opts.pine)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := tradingview.Write(f, trades, structures); err != nil {
			return err
		}
		slog.Info("Wrote Pine Script overlay", "path", opts.pine, "rule", results[0].Name)
	}
	return nil
}

func (a *app) jobs(rule string, engine *backtest.Engine, series types.Series) ([]backtest.Job, error) {
	ema := strategy.NewEMACross()
	all := map[string]backtest.Job{
		"structure": {
			Name:  "structure",
			Entry: strategy.StructureEntry{Analyzer: a.analyzer, Balance: a.cfg.Backtest.InitialBalance, Lookback: max(a.cfg.Bars, a.analyzer.MinBars())},
			Exit:  strategy.MaxBars{Bars: 50},
		},
		"ema":     {Name: "ema", Entry: ema, Exit: ema},
		"impulse": {Name: "impulse", Entry: strategy.NewImpulseCandle()},
	}

	var names []string
	switch rule {
	case "all":
		names = []string{"structure", "ema", "impulse"}
	default:
		if _, ok := all[rule]; !ok {
			return nil, fmt.Errorf("unknown rule %q", rule)
		}
		names = []string{rule}
	}

	jobs := make([]backtest.Job, 0, len(names))
	for _, n := range names {
		job := all[n]
		job.Engine = engine
		job.Series = series
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (a *app) watch(ctx context.Context) error {
	source, err := a.marketSource()
	if err != nil {
		return err
	}
	acct, err := a.account(ctx)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(ctx, source, a.analyzer, scheduler.Job{
		Instrument: a.cfg.Instrument,
		Timeframe:  a.cfg.Timeframe,
		Bars:       a.cfg.Bars,
		Account:    acct,
	})
	sched.Metrics = a.metrics
	if a.store != nil {
		sched.Exposure = a.store
	}
	places := report.PricePlaces(strategy.PipSize(a.cfg.Instrument))
	sched.OnResult = func(an planner.Analysis) {
		if an.Result.Viable() {
			_ = printJSON(report.FromAnalysis(an, places))
		}
	}

	if err := sched.Register(a.cfg.Schedule.AnalyzeCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	go serveMetrics(ctx, a.cfg.Metrics.Addr)
	go sched.RunNow()

	slog.Info("smcplan is watching. Press Ctrl+C to stop.", "cron", a.cfg.Schedule.AnalyzeCron)
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping...")
	return nil
}

func (a *app) record(ctx context.Context, opts options) error {
	if a.store == nil {
		return errors.New("record needs database.sqlite_path")
	}
	side := types.Side(opts.side)
	if side != types.LONG && side != types.SHORT {
		return fmt.Errorf("unknown side %q", opts.side)
	}
	err := a.store.RecordTrade(ctx, sqlite.JournalEntry{
		Instrument: a.cfg.Instrument,
		Side:       side,
		ExitTime:   time.Now(),
		PnL:        opts.pnl,
		Note:       opts.note,
	})
	if err != nil {
		return err
	}

	exp, err := a.store.Exposure(ctx, time.Now(), a.cfg.Account.OpenPositions)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %.2f on %s. Realized loss today %.2f, this week %.2f.\n",
		opts.pnl, a.cfg.Instrument, exp.DailyLoss, exp.WeeklyLoss)
	return nil
}

// position sizes a manual trade from the configured account. A positive
// stopPips places the stop that many pips on the losing side of entry.
func (a *app) position(opts options) (risk.Calculation, error) {
	side := types.Side(opts.side)
	if side != types.LONG && side != types.SHORT {
		return risk.Calculation{}, fmt.Errorf("unknown side %q", opts.side)
	}
	stop := opts.stop
	if opts.stopPips > 0 {
		dist := strategy.PipsToPrice(opts.stopPips, strategy.PipSize(a.cfg.Instrument))
		stop = opts.entry - side.Sign()*dist
	}
	return risk.CalculatePosition(a.cfg.Account.Balance, a.cfg.Account.RiskPercent, opts.entry, stop)
}

func (a *app) calc(opts options) error {
	c, err := a.position(opts)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return printJSON(c)
	}

	places := int(report.PricePlaces(strategy.PipSize(a.cfg.Instrument)))
	fmt.Printf("%s %s from %.*f risking %.2f%% of %.2f\n",
		opts.side, a.cfg.Instrument, places, opts.entry, a.cfg.Account.RiskPercent, a.cfg.Account.Balance)
	fmt.Printf("  Size:            %.4f\n", c.Size)
	fmt.Printf("  Stop distance:   %.*f\n", places, c.StopDistance)
	fmt.Printf("  Risk amount:     %.2f\n", c.RiskAmount)
	fmt.Printf("  Profit at 1R/2R/3R: %.2f / %.2f / %.2f\n", c.Profit1R, c.Profit2R, c.Profit3R)
	return nil
}
