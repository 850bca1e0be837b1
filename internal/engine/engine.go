// Package engine wires the store, baseline, detector, tax allocator and
// scenario search into the operations exposed to callers.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/catalog"
	"github.com/lvonguyen/bill-insights/internal/chargeback"
	"github.com/lvonguyen/bill-insights/internal/cohort"
	"github.com/lvonguyen/bill-insights/internal/config"
	"github.com/lvonguyen/bill-insights/internal/narrative"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
	"github.com/lvonguyen/bill-insights/internal/rules"
	"github.com/lvonguyen/bill-insights/internal/whatif"
)

// Source is the read-only snapshot the engine runs against
type Source interface {
	anomaly.BillSource
	whatif.Source
	catalog.Source
	cohort.Source
	Bill(billID int) (normalizer.BillHeader, error)
}

// Engine orchestrates bill analysis over one snapshot
type Engine struct {
	config    *config.Config
	src       Source
	detector  *anomaly.Detector
	evaluator *whatif.Evaluator
	searcher  *whatif.Searcher
	analyzer  *rules.Analyzer
	services  *catalog.Resolver
	logger    *zap.Logger

	mu         sync.RWMutex
	summarizer narrative.Summarizer
}

// New creates an engine. A nil config uses config.Default().
func New(cfg *config.Config, src Source, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	eval := whatif.NewEvaluator(src, cfg.WhatIf.VATRate)
	return &Engine{
		config:    cfg,
		src:       src,
		detector:  anomaly.NewDetector(cfg.DetectorConfig()),
		evaluator: eval,
		searcher:  whatif.NewSearcher(eval, src, cfg.WhatIf.Workers, logger),
		analyzer:  rules.NewAnalyzer(cfg.RulesConfig()),
		services:  catalog.NewResolver(src),
		logger:    logger,
	}
}

// RegisterSummarizer sets the narrative renderer used by Explain
func (e *Engine) RegisterSummarizer(s narrative.Summarizer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summarizer = s
}

func (e *Engine) currentSummarizer() narrative.Summarizer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.summarizer
}

// GetBaseline builds the baseline for a user's period. window <= 0 uses the
// configured baseline window.
func (e *Engine) GetBaseline(userID int, period string, window int) (*anomaly.Baseline, error) {
	if window <= 0 {
		window = e.config.Anomaly.BaselineWindow
	}
	b, err := anomaly.BuildBaseline(e.src, userID, period, window)
	if err != nil {
		return nil, err
	}
	if b.HistoryErr != nil {
		e.logger.Warn("Weak baseline",
			zap.Int("user_id", userID),
			zap.String("period", period),
			zap.Error(b.HistoryErr),
		)
	}
	return b, nil
}

// DetectAnomalies scores the user's bill for period against its baseline
func (e *Engine) DetectAnomalies(userID int, period string) (*anomaly.Report, error) {
	b, err := e.GetBaseline(userID, period, 0)
	if err != nil {
		return nil, err
	}

	report := e.detector.Detect(e.src.LineItems(b.Bill.BillID), b)

	e.logger.Debug("Anomaly detection complete",
		zap.Int("user_id", userID),
		zap.String("period", period),
		zap.Int("anomalies", len(report.Anomalies)),
		zap.Int("subtype_alerts", len(report.SubtypeFirstSeen)),
	)
	return report, nil
}

// AllocateTaxes spreads totalTax over categories pro rata to gross amount
func (e *Engine) AllocateTaxes(totalTax float64, categories []normalizer.CategoryAmount) chargeback.TaxAllocation {
	return chargeback.Allocate(totalTax, categories)
}

// UnitCosts divides net category amounts by measured usage
func (e *Engine) UnitCosts(net map[normalizer.Category]float64, usage normalizer.UsageSummary) chargeback.UnitCosts {
	return chargeback.CalculateUnitCosts(net, usage)
}

// EvaluateScenario prices a single scenario for the user's period
func (e *Engine) EvaluateScenario(ctx context.Context, userID int, period string, sc whatif.Scenario) (*whatif.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := e.evaluator.Evaluate(userID, period, sc)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Scenario evaluated",
		zap.Int("user_id", userID),
		zap.String("period", period),
		zap.Stringer("scenario", sc),
		zap.Float64("new_total", r.NewTotal),
	)
	return r, nil
}

// SearchTopScenarios returns the k cheapest scenarios. k <= 0 uses the
// configured top_k.
func (e *Engine) SearchTopScenarios(ctx context.Context, userID int, period string, k int) ([]whatif.Result, error) {
	if k <= 0 {
		k = e.config.WhatIf.TopK
	}
	return e.searcher.Top(ctx, userID, period, k)
}

// Recommend picks the best-saving scenario among the top candidates
func (e *Engine) Recommend(ctx context.Context, userID int, period string) (*whatif.Recommendation, error) {
	current, err := e.evaluator.CurrentTotal(userID, period)
	if err != nil {
		return nil, err
	}

	results, err := e.SearchTopScenarios(ctx, userID, period, 0)
	if err != nil {
		return nil, err
	}

	rec, err := whatif.Recommend(userID, period, current, results)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Recommendation ready",
		zap.Int("user_id", userID),
		zap.String("period", period),
		zap.Float64("potential_saving", rec.PotentialSaving),
	)
	return rec, nil
}

// Analyze runs the threshold rules over the user's bill for period
func (e *Engine) Analyze(userID int, period string) (*rules.Report, error) {
	report, err := e.DetectAnomalies(userID, period)
	if err != nil {
		return nil, err
	}

	bill, err := e.src.BillFor(userID, period)
	if err != nil {
		return nil, err
	}
	items := e.src.LineItems(bill.BillID)

	in := rules.Input{
		Currency:          bill.Currency,
		Total:             bill.TotalAmount,
		Taxes:             normalizer.TaxTotal(items),
		BaselineTotalMean: report.Overall.BaselineTotalMean,
		TotalDelta:        report.Overall.TotalDelta,
		Breakdown:         normalizer.Amounts(normalizer.Breakdown(items)),
		Contributors:      report.Contributors,
		Usage:             e.src.UsageForBill(bill),
	}
	return e.analyzer.Analyze(in), nil
}

// CompareCohort measures the user's bill for period against subscribers of
// the same customer type
func (e *Engine) CompareCohort(userID int, period string) (*cohort.Comparison, error) {
	c, err := cohort.Compare(e.src, userID, period)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Cohort comparison complete",
		zap.Int("user_id", userID),
		zap.String("period", period),
		zap.String("cohort_type", c.CohortType),
		zap.Int("cohort_size", c.CohortSize),
		zap.String("band", c.Band),
	)
	return c, nil
}
