// Package anomaly provides bill anomaly detection against a subscriber's own history.
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// DefaultWindow is the number of prior billed periods in a baseline
const DefaultWindow = 3

const varianceEpsilon = 1e-9

// BillSource is the read-only bill access the baseline needs
type BillSource interface {
	BillFor(userID int, period string) (normalizer.BillHeader, error)
	BillsForUser(userID int) []normalizer.BillHeader
	Periods(userID int) []string
	LineItems(billID int) []normalizer.LineItem
}

// Stats holds per-category statistics over the bills of a window in which
// the category appears. A category absent from the window has no Stats.
type Stats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"` // population standard deviation
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
}

// Baseline is the statistical reference for one user and target period
type Baseline struct {
	UserID  int                           `json:"user_id"`
	Period  string                        `json:"period"`
	Bill    normalizer.BillHeader         `json:"bill"`
	Window  int                           `json:"window"`
	Periods []string                      `json:"periods"`
	BillIDs []int                         `json:"bill_ids"`
	Stats   map[normalizer.Category]Stats `json:"stats"`
	// TotalMean is the mean bill total_amount over the window, nil without history
	TotalMean *float64 `json:"total_mean"`
	Warnings  []string `json:"warnings"`
	// HistoryErr is set when the window holds no prior periods
	HistoryErr error `json:"-"`

	subtypes map[subtypeKey]bool
}

type subtypeKey struct {
	category normalizer.Category
	subtype  string
}

// Count returns the number of window bills in which the category appears
func (b *Baseline) Count(cat normalizer.Category) int {
	return b.Stats[cat].Count
}

// SeenSubtype reports whether a (category, subtype) pair occurs in the window
func (b *Baseline) SeenSubtype(cat normalizer.Category, subtype string) bool {
	return b.subtypes[subtypeKey{cat, subtype}]
}

// Weak reports whether the baseline has no prior periods
func (b *Baseline) Weak() bool {
	return len(b.Periods) == 0
}

// BuildBaseline selects up to window billed periods immediately preceding
// period and aggregates their category totals.
//
// A missing target bill is a NotFoundError. Missing history is not an error:
// the baseline comes back empty with a warning.
func BuildBaseline(src BillSource, userID int, period string, window int) (*Baseline, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	bill, err := src.BillFor(userID, period)
	if err != nil {
		return nil, err
	}

	bills := src.BillsForUser(userID)
	periods := src.Periods(userID)

	idx := sort.SearchStrings(periods, period)
	prior := periods[max(0, idx-window):idx]

	inWindow := make(map[string]bool, len(prior))
	for _, p := range prior {
		inWindow[p] = true
	}

	b := &Baseline{
		UserID:   userID,
		Period:   period,
		Bill:     bill,
		Window:   window,
		Periods:  append([]string(nil), prior...),
		Stats:    make(map[normalizer.Category]Stats),
		Warnings: []string{},
		subtypes: make(map[subtypeKey]bool),
	}

	values := make(map[normalizer.Category][]float64)
	var totalSum float64
	for _, h := range bills {
		if !inWindow[h.Period()] {
			continue
		}
		b.BillIDs = append(b.BillIDs, h.BillID)
		totalSum += h.TotalAmount

		items := src.LineItems(h.BillID)
		for cat, total := range normalizer.CategoryTotals(items) {
			values[cat] = append(values[cat], total)
		}
		for _, it := range items {
			b.subtypes[subtypeKey{it.Category, it.Subtype}] = true
		}
	}

	for cat, vs := range values {
		b.Stats[cat] = calculateStats(vs)
	}

	if len(b.BillIDs) > 0 {
		mean := totalSum / float64(len(b.BillIDs))
		b.TotalMean = &mean
	} else {
		b.HistoryErr = &billerr.InsufficientHistoryError{UserID: userID, Period: period}
		b.Warnings = append(b.Warnings, fmt.Sprintf("weak baseline: no billed periods before %s", period))
	}

	return b, nil
}

// calculateStats computes mean and population standard deviation
func calculateStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sumSqDiff float64
	for _, v := range values {
		sumSqDiff += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sumSqDiff / float64(len(values)))
	// Identical amounts can leave float residue; that is no variance signal
	if std < varianceEpsilon {
		std = 0
	}

	return Stats{
		Mean:  mean,
		Std:   std,
		Count: len(values),
		Sum:   sum,
	}
}
