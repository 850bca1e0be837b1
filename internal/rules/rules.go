// Package rules runs threshold checks over an explained bill: total spikes,
// category deltas, category shares and net unit costs.
package rules

import (
	"fmt"
	"math"
	"sort"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/chargeback"
	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Flag types
const (
	FlagTotalSpike    = "total_spike"
	FlagCategoryDelta = "category_delta"
	FlagCategoryShare = "category_share"
	FlagUnitCost      = "unit_cost"
)

// Config holds rule thresholds
type Config struct {
	TotalDeltaPct       float64                         // fraction of the baseline total
	CategoryDeltaAmount float64                         // currency units
	ShareLimits         map[normalizer.Category]float64 // fraction of the bill total
	MinTotalForShare    float64
	UnitCostLimits      map[string]float64
	HighMultiplier      float64
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		TotalDeltaPct:       0.15,
		CategoryDeltaAmount: 30,
		ShareLimits: map[normalizer.Category]float64{
			normalizer.CategoryRoaming:    0.05,
			normalizer.CategoryPremiumSMS: 0.02,
			normalizer.CategoryVAS:        0.03,
		},
		MinTotalForShare: 100,
		UnitCostLimits: map[string]float64{
			chargeback.MetricDataPerGB:    25,
			chargeback.MetricVoicePerMin:  0.8,
			chargeback.MetricSMSPerSMS:    1.0,
			chargeback.MetricRoamingPerGB: 100,
		},
		HighMultiplier: 1.5,
	}
}

// Input is an explained bill
type Input struct {
	Currency          string
	Total             float64
	Taxes             float64
	BaselineTotalMean *float64
	TotalDelta        *float64
	Breakdown         []normalizer.CategoryAmount
	Contributors      []anomaly.Contributor
	Usage             normalizer.UsageSummary
}

// Flag is one triggered rule
type Flag struct {
	Type     string              `json:"type"`
	Severity string              `json:"severity"`
	Category normalizer.Category `json:"category,omitempty"`
	Metric   string              `json:"metric,omitempty"`
	Message  string              `json:"message"`
	Metrics  map[string]float64  `json:"metrics"`
}

// Report is the rules analysis of a bill
type Report struct {
	Flags         []Flag                   `json:"flags"`
	TaxAllocation chargeback.TaxAllocation `json:"tax_allocation"`
	UnitCosts     chargeback.UnitCosts     `json:"unit_costs"`
}

// Analyzer applies rule thresholds
type Analyzer struct {
	config Config
}

// NewAnalyzer creates an analyzer. Zero fields fall back to defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.TotalDeltaPct <= 0 {
		cfg.TotalDeltaPct = def.TotalDeltaPct
	}
	if cfg.CategoryDeltaAmount <= 0 {
		cfg.CategoryDeltaAmount = def.CategoryDeltaAmount
	}
	if cfg.ShareLimits == nil {
		cfg.ShareLimits = def.ShareLimits
	}
	if cfg.MinTotalForShare <= 0 {
		cfg.MinTotalForShare = def.MinTotalForShare
	}
	if cfg.UnitCostLimits == nil {
		cfg.UnitCostLimits = def.UnitCostLimits
	}
	if cfg.HighMultiplier <= 1 {
		cfg.HighMultiplier = def.HighMultiplier
	}
	return &Analyzer{config: cfg}
}

// Config returns the effective thresholds
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze runs every rule and returns flags in rule order
func (a *Analyzer) Analyze(in Input) *Report {
	alloc := chargeback.Allocate(in.Taxes, in.Breakdown)
	units := chargeback.CalculateUnitCosts(alloc.Net(), in.Usage)

	flags := []Flag{}
	if f := a.totalSpike(in); f != nil {
		flags = append(flags, *f)
	}
	flags = append(flags, a.categoryDeltas(in)...)
	flags = append(flags, a.categoryShares(in)...)
	flags = append(flags, a.unitCosts(units)...)

	return &Report{Flags: flags, TaxAllocation: alloc, UnitCosts: units}
}

func (a *Analyzer) severity(value, limit float64) string {
	if value >= limit*a.config.HighMultiplier {
		return anomaly.SeverityHigh
	}
	return anomaly.SeverityMedium
}

func (a *Analyzer) totalSpike(in Input) *Flag {
	if in.BaselineTotalMean == nil || *in.BaselineTotalMean == 0 {
		return nil
	}
	baseline := *in.BaselineTotalMean
	delta := in.Total - baseline
	if in.TotalDelta != nil {
		delta = *in.TotalDelta
	}

	pct := delta / baseline
	if math.Abs(pct) < a.config.TotalDeltaPct {
		return nil
	}

	direction := "increased"
	if delta < 0 {
		direction = "decreased"
	}
	return &Flag{
		Type:     FlagTotalSpike,
		Severity: a.severity(math.Abs(pct), a.config.TotalDeltaPct),
		Message:  fmt.Sprintf("Bill total %s by %+.0f %s (%.1f%%).", direction, delta, currency(in), pct*100),
		Metrics: map[string]float64{
			"total":         in.Total,
			"baseline_mean": baseline,
			"delta":         delta,
			"pct":           money.Round(pct*100, 1),
		},
	}
}

func (a *Analyzer) categoryDeltas(in Input) []Flag {
	contributors := append([]anomaly.Contributor{}, in.Contributors...)
	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Delta > contributors[j].Delta
	})

	var flags []Flag
	for _, c := range contributors {
		if math.Abs(c.Delta) < a.config.CategoryDeltaAmount {
			continue
		}
		flags = append(flags, Flag{
			Type:     FlagCategoryDelta,
			Severity: a.severity(math.Abs(c.Delta), a.config.CategoryDeltaAmount),
			Category: c.Category,
			Message:  fmt.Sprintf("%s changed by %+.0f %s.", c.Category, c.Delta, currency(in)),
			Metrics: map[string]float64{
				"current":       c.Current,
				"baseline_mean": c.BaselineMean,
				"delta":         c.Delta,
			},
		})
	}
	return flags
}

func (a *Analyzer) categoryShares(in Input) []Flag {
	if in.Total < a.config.MinTotalForShare {
		return nil
	}

	amounts := make(map[normalizer.Category]float64)
	present := make(map[normalizer.Category]bool)
	for _, c := range in.Breakdown {
		amounts[c.Category] += c.Total
		present[c.Category] = true
	}

	var flags []Flag
	for _, cat := range normalizer.Categories {
		limit, ok := a.config.ShareLimits[cat]
		if !ok || !present[cat] {
			continue
		}
		share := amounts[cat] / in.Total
		if share < limit {
			continue
		}
		flags = append(flags, Flag{
			Type:     FlagCategoryShare,
			Severity: a.severity(share, limit),
			Category: cat,
			Message:  fmt.Sprintf("%s is %.1f%% of the bill (limit %.0f%%).", cat, share*100, limit*100),
			Metrics: map[string]float64{
				"share_pct": money.Round(share*100, 1),
				"limit_pct": limit * 100,
				"amount":    amounts[cat],
			},
		})
	}
	return flags
}

func (a *Analyzer) unitCosts(units chargeback.UnitCosts) []Flag {
	var flags []Flag
	for _, m := range units.Metrics() {
		limit, ok := a.config.UnitCostLimits[m.Name]
		if !ok || limit <= 0 || *m.Value < limit {
			continue
		}
		flags = append(flags, Flag{
			Type:     FlagUnitCost,
			Severity: a.severity(*m.Value, limit),
			Metric:   m.Name,
			Message:  fmt.Sprintf("%s is above expectation: %v (limit %v).", m.Name, *m.Value, limit),
			Metrics: map[string]float64{
				"value": *m.Value,
				"limit": limit,
			},
		})
	}
	return flags
}

func currency(in Input) string {
	if in.Currency == "" {
		return "TRY"
	}
	return in.Currency
}
