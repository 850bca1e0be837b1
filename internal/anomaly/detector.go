package anomaly

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Severity levels for anomalies
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Reason texts
const (
	ReasonFirstSeen        = "first occurrence"
	ReasonSensitiveNew     = "absent or negligible in prior periods"
	ReasonDiscountLapsed   = "recurring discount appears to have lapsed"
	ReasonSubtypeFirstSeen = "subtype seen for the first time"
)

// DetectorConfig holds configuration for anomaly detection
type DetectorConfig struct {
	NoiseFloor   float64 // Minimum amount below which signals are ignored
	ZThreshold   float64
	PctThreshold float64 // Fractional change, 0.80 = 80%
	Sensitive    []normalizer.Category
}

// DefaultDetectorConfig returns the stock thresholds
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		NoiseFloor:   5.0,
		ZThreshold:   2.0,
		PctThreshold: 0.80,
		Sensitive: []normalizer.Category{
			normalizer.CategoryRoaming,
			normalizer.CategoryPremiumSMS,
			normalizer.CategoryVAS,
		},
	}
}

// Anomaly is a flagged category of the current bill
type Anomaly struct {
	Category        normalizer.Category `json:"category"`
	Amount          float64             `json:"amount"`
	BaselineMean    float64             `json:"baseline_mean"`
	BaselineStd     *float64            `json:"baseline_std"`
	Z               *float64            `json:"z"`
	PctDelta        *float64            `json:"pct_delta"`
	Reasons         []string            `json:"reasons"`
	Reason          string              `json:"reason"`
	Severity        string              `json:"severity"`
	SuggestedAction string              `json:"suggested_action"`
}

// Contributor is the unfiltered current-vs-baseline delta of a category
type Contributor struct {
	Category     normalizer.Category `json:"category"`
	Current      float64             `json:"current"`
	BaselineMean float64             `json:"baseline_mean"`
	Delta        float64             `json:"delta"`
}

// SubtypeAlert is a (category, subtype) pair absent from the baseline window
type SubtypeAlert struct {
	Category        normalizer.Category `json:"category"`
	Subtype         string              `json:"subtype"`
	Amount          float64             `json:"amount"`
	Reason          string              `json:"reason"`
	SuggestedAction string              `json:"suggested_action"`
}

// Overall compares the bill total with the baseline-of-totals
type Overall struct {
	CurrentTotal      float64  `json:"current_total"`
	BaselineTotalMean *float64 `json:"baseline_total_mean"`
	TotalDelta        *float64 `json:"total_delta"`
}

// Report is the anomaly check result for one bill
type Report struct {
	UserID           int            `json:"user_id"`
	Period           string         `json:"period"`
	BillID           int            `json:"bill_id"`
	Overall          Overall        `json:"overall"`
	Anomalies        []Anomaly      `json:"anomalies"`
	Contributors     []Contributor  `json:"contributors"`
	SubtypeFirstSeen []SubtypeAlert `json:"subtype_first_seen"`
	Warnings         []string       `json:"warnings"`
}

// Detector scores current bill categories against a baseline
type Detector struct {
	config    DetectorConfig
	sensitive map[normalizer.Category]bool
}

// NewDetector creates a new anomaly detector. Non-positive thresholds fall
// back to defaults. A zero noise floor is kept; only a negative one is replaced.
func NewDetector(cfg DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if cfg.NoiseFloor < 0 {
		cfg.NoiseFloor = def.NoiseFloor
	}
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = def.ZThreshold
	}
	if cfg.PctThreshold <= 0 {
		cfg.PctThreshold = def.PctThreshold
	}
	if cfg.Sensitive == nil {
		cfg.Sensitive = def.Sensitive
	}

	sensitive := make(map[normalizer.Category]bool, len(cfg.Sensitive))
	for _, c := range cfg.Sensitive {
		sensitive[c] = true
	}
	return &Detector{config: cfg, sensitive: sensitive}
}

// Config returns the effective configuration
func (d *Detector) Config() DetectorConfig {
	return d.config
}

// Detect scores the items of the baseline's target bill
func (d *Detector) Detect(items []normalizer.LineItem, b *Baseline) *Report {
	current := normalizer.CategoryTotals(items)

	report := &Report{
		UserID:           b.UserID,
		Period:           b.Period,
		BillID:           b.Bill.BillID,
		Overall:          overall(b),
		Anomalies:        []Anomaly{},
		Contributors:     []Contributor{},
		SubtypeFirstSeen: d.subtypeFirstSeen(items, b),
		Warnings:         append([]string{}, b.Warnings...),
	}

	for _, cat := range unionCategories(current, b.Stats) {
		if cat == normalizer.CategoryTax {
			continue
		}
		cur := current[cat]
		st := b.Stats[cat]

		if a := d.checkAnomaly(cat, cur, st); a != nil {
			report.Anomalies = append(report.Anomalies, *a)
		}
		report.Contributors = append(report.Contributors, Contributor{
			Category:     cat,
			Current:      money.Cents(cur),
			BaselineMean: money.Cents(st.Mean),
			Delta:        money.Cents(cur - st.Mean),
		})
	}

	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		return anomalyLess(report.Anomalies[j], report.Anomalies[i])
	})
	sort.SliceStable(report.Contributors, func(i, j int) bool {
		return report.Contributors[i].Delta > report.Contributors[j].Delta
	})

	return report
}

// checkAnomaly applies the first-seen, spike and sensitive rules to one category
func (d *Detector) checkAnomaly(cat normalizer.Category, cur float64, st Stats) *Anomaly {
	floor := d.config.NoiseFloor
	firstSeen := st.Count == 0 && cur > 0 && cur >= floor

	var z *float64
	if st.Std > 0 {
		v := (cur - st.Mean) / st.Std
		z = &v
	}

	pct := 0.0
	if st.Mean > 0 && st.Mean >= floor {
		pct = (cur - st.Mean) / st.Mean
	} else if st.Mean == 0 && cur > 0 && cur >= floor {
		pct = math.Inf(1)
	}

	var reasons []string
	high := false

	if firstSeen {
		reasons = append(reasons, ReasonFirstSeen)
		high = true
	}

	if cur >= floor && !firstSeen {
		if z != nil && *z >= d.config.ZThreshold {
			reasons = append(reasons, fmt.Sprintf("z-score %.2f (>= %.1f)", *z, d.config.ZThreshold))
			if *z >= 3.0 {
				high = true
			}
		}
		if pct >= d.config.PctThreshold {
			reasons = append(reasons, pctReason(pct, d.config.PctThreshold))
			if pct >= 2*d.config.PctThreshold {
				high = true
			}
		}
	}

	if d.sensitive[cat] && cur > 0 && cur >= floor {
		prevSum := 0.0
		if st.Count > 0 {
			prevSum = st.Sum
		}
		if prevSum <= 0 || prevSum < floor {
			reasons = append(reasons, ReasonSensitiveNew)
			high = true
		}
	}

	if len(reasons) == 0 {
		return nil
	}

	a := &Anomaly{
		Category:        cat,
		Amount:          money.Cents(cur),
		BaselineMean:    money.Cents(st.Mean),
		Severity:        SeverityMedium,
		SuggestedAction: SuggestedAction(cat),
	}
	if st.Std != 0 {
		a.BaselineStd = money.Ptr(st.Std, 2)
	}
	if z != nil {
		a.Z = money.Ptr(*z, 2)
	}
	a.PctDelta = money.Ptr(pct, 3)
	if high {
		a.Severity = SeverityHigh
	}

	if cat == normalizer.CategoryDiscount && a.BaselineMean < -floor && a.Amount > a.BaselineMean {
		reasons = append(reasons, ReasonDiscountLapsed)
	}

	a.Reasons = reasons
	a.Reason = strings.Join(reasons, "; ")
	return a
}

// subtypeFirstSeen lists current (category, subtype) pairs never seen in the window
func (d *Detector) subtypeFirstSeen(items []normalizer.LineItem, b *Baseline) []SubtypeAlert {
	sums := make(map[subtypeKey]float64)
	var keys []subtypeKey
	for _, it := range items {
		k := subtypeKey{it.Category, it.Subtype}
		if _, ok := sums[k]; !ok {
			keys = append(keys, k)
		}
		sums[k] += it.Amount
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].subtype < keys[j].subtype
	})

	alerts := []SubtypeAlert{}
	for _, k := range keys {
		if k.category == normalizer.CategoryTax || sums[k] <= 0 || sums[k] < d.config.NoiseFloor || b.SeenSubtype(k.category, k.subtype) {
			continue
		}
		alerts = append(alerts, SubtypeAlert{
			Category:        k.category,
			Subtype:         k.subtype,
			Amount:          money.Cents(sums[k]),
			Reason:          ReasonSubtypeFirstSeen,
			SuggestedAction: SuggestedAction(k.category),
		})
	}
	return alerts
}

func overall(b *Baseline) Overall {
	o := Overall{CurrentTotal: money.Cents(b.Bill.TotalAmount)}
	if b.TotalMean != nil {
		mean := money.Cents(*b.TotalMean)
		delta := money.Cents(b.Bill.TotalAmount - *b.TotalMean)
		o.BaselineTotalMean = &mean
		o.TotalDelta = &delta
	}
	return o
}

func pctReason(pct, threshold float64) string {
	if math.IsInf(pct, 1) {
		return fmt.Sprintf("change unbounded from a zero baseline (>= %d%%)", int(math.Round(threshold*100)))
	}
	return fmt.Sprintf("change %.0f%% (>= %d%%)", pct*100, int(math.Round(threshold*100)))
}

// anomalyLess orders by z, then pct delta, then amount. Missing values count as 0.
func anomalyLess(a, b Anomaly) bool {
	if za, zb := deref(a.Z), deref(b.Z); za != zb {
		return za < zb
	}
	if pa, pb := deref(a.PctDelta), deref(b.PctDelta); pa != pb {
		return pa < pb
	}
	return a.Amount < b.Amount
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func unionCategories(current map[normalizer.Category]float64, stats map[normalizer.Category]Stats) []normalizer.Category {
	all := make(map[normalizer.Category]float64, len(current)+len(stats))
	for c, v := range current {
		all[c] = v
	}
	for c := range stats {
		if _, ok := all[c]; !ok {
			all[c] = 0
		}
	}
	return normalizer.SortedCategories(all)
}
