// Package scheduler re-runs the analysis pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/jwtly10/smcplan/internal/metrics"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/robfig/cron/v3"
)

// ExposureSource reports realized losses for the current day and week.
type ExposureSource interface {
	Exposure(ctx context.Context, now time.Time, openPositions int) (risk.Exposure, error)
}

// Job describes what one scheduled analysis fetches and sizes against.
type Job struct {
	Instrument string
	Timeframe  string
	Bars       int
	Account    planner.Account
}

// Scheduler manages the cron task that analyses Job.
type Scheduler struct {
	Cron     *cron.Cron
	Source   marketdata.Source
	Analyzer *planner.Analyzer
	Job      Job

	// Optional collaborators.
	Exposure ExposureSource
	Metrics  *metrics.Metrics
	OnResult func(planner.Analysis)

	Ctx context.Context
	now func() time.Time
}

func NewScheduler(ctx context.Context, src marketdata.Source, analyzer *planner.Analyzer, job Job) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Source:   src,
		Analyzer: analyzer,
		Job:      job,
		Ctx:      ctx,
		now:      time.Now,
	}
}

// Register schedules the analysis with a six-field (seconds first) cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.task); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("Scheduler started", "instrument", s.Job.Instrument, "timeframe", s.Job.Timeframe)
}

// Stop stops the scheduler and waits for a running analysis to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) task() {
	if _, err := s.RunNow(); err != nil {
		slog.Error("Scheduled analysis failed", "instrument", s.Job.Instrument, "error", err)
	}
}

// RunNow fetches the latest bars and analyses them immediately.
func (s *Scheduler) RunNow() (planner.Analysis, error) {
	start := s.now()

	req, err := marketdata.Lookback(s.Job.Instrument, s.Job.Timeframe, s.Job.Bars, start)
	if err != nil {
		return planner.Analysis{}, err
	}
	series, err := s.Source.Series(s.Ctx, req)
	if err != nil {
		return planner.Analysis{}, fmt.Errorf("fetch %s: %w", s.Job.Instrument, err)
	}

	acct := s.Job.Account
	if s.Exposure != nil {
		exp, err := s.Exposure.Exposure(s.Ctx, start, acct.Exposure.OpenPositions)
		if err != nil {
			return planner.Analysis{}, err
		}
		acct.Exposure = exp
	}

	analysis, err := s.Analyzer.Analyze(series, acct)
	if err != nil {
		return planner.Analysis{}, err
	}

	if s.Metrics != nil {
		s.Metrics.ObserveAnalysis(analysis, s.now().Sub(start))
	}
	if analysis.Result.Viable() {
		setup := analysis.Result.Setup
		slog.Info("Trade setup found", "instrument", setup.Instrument, "bias", setup.Bias,
			"entry", setup.Entry, "stop", setup.StopLoss, "confidence", setup.Confidence)
	} else {
		slog.Info("No viable setup", "instrument", s.Job.Instrument, "reason", analysis.Result.Rejection.Reason)
	}
	if s.OnResult != nil {
		s.OnResult(analysis)
	}
	return analysis, nil
}
