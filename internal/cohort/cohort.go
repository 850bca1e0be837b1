// Package cohort compares a subscriber's bill with the bills of subscribers
// of the same customer type for the same period.
package cohort

import (
	"math"
	"sort"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Percentile bands
const (
	BandHigh   = "high"
	BandNormal = "normal"
	BandLow    = "low"
)

// UnknownType labels subscribers without a customer type
const UnknownType = "unknown"

// Source provides subscribers, their bills and their usage
type Source interface {
	User(userID int) (normalizer.User, error)
	Users() []normalizer.User
	BillFor(userID int, period string) (normalizer.BillHeader, error)
	UsageForBill(b normalizer.BillHeader) normalizer.UsageSummary
}

// Dimension compares one usage measure
type Dimension struct {
	User       float64 `json:"user"`
	CohortAvg  float64 `json:"cohort_avg"`
	Difference float64 `json:"difference"`
}

// UsageComparison compares usage per dimension
type UsageComparison struct {
	DataGB  Dimension `json:"data_gb"`
	Minutes Dimension `json:"minutes"`
	SMS     Dimension `json:"sms"`
}

// Comparison is a bill measured against its cohort
type Comparison struct {
	UserID            int             `json:"user_id"`
	Period            string          `json:"period"`
	CohortType        string          `json:"cohort_type"`
	CohortSize        int             `json:"cohort_size"`
	UserTotal         float64         `json:"user_total"`
	CohortAverage     float64         `json:"cohort_avg"`
	Difference        float64         `json:"difference"`
	DifferencePercent float64         `json:"difference_percent"` // 0 when the average is 0
	Band              string          `json:"percentile_band"`
	Percentile25      float64         `json:"percentile_25"`
	Percentile75      float64         `json:"percentile_75"`
	Usage             UsageComparison `json:"usage_comparison"`
}

// member is one cohort subscriber's bill
type member struct {
	total   float64
	gb      float64
	minutes float64
	sms     float64
}

// Compare measures the user's bill for period against every subscriber of the
// same type billed for that period, the user included
func Compare(src Source, userID int, period string) (*Comparison, error) {
	u, err := src.User(userID)
	if err != nil {
		return nil, err
	}
	bill, err := src.BillFor(userID, period)
	if err != nil {
		return nil, err
	}
	self := measure(src, bill)

	typ := typeOf(u)
	var members []member
	for _, other := range src.Users() {
		if typeOf(other) != typ {
			continue
		}
		b, err := src.BillFor(other.UserID, period)
		if err != nil {
			continue
		}
		members = append(members, measure(src, b))
	}
	if len(members) == 0 {
		return nil, billerr.NotFound("cohort", typ+"/"+period)
	}

	totals := make([]float64, len(members))
	var avg member
	for i, m := range members {
		totals[i] = m.total
		avg.total += m.total
		avg.gb += m.gb
		avg.minutes += m.minutes
		avg.sms += m.sms
	}
	n := float64(len(members))
	avg = member{total: avg.total / n, gb: avg.gb / n, minutes: avg.minutes / n, sms: avg.sms / n}

	sort.Float64s(totals)
	p25 := percentile(totals, 0.25)
	p75 := percentile(totals, 0.75)

	diff := self.total - avg.total
	pct := 0.0
	if avg.total > 0 {
		pct = money.Round(diff/avg.total*100, 1)
	}

	band := BandLow
	switch {
	case self.total > p75:
		band = BandHigh
	case self.total > p25:
		band = BandNormal
	}

	return &Comparison{
		UserID:            userID,
		Period:            period,
		CohortType:        typ,
		CohortSize:        len(members),
		UserTotal:         money.Cents(self.total),
		CohortAverage:     money.Cents(avg.total),
		Difference:        money.Cents(diff),
		DifferencePercent: pct,
		Band:              band,
		Percentile25:      money.Cents(p25),
		Percentile75:      money.Cents(p75),
		Usage: UsageComparison{
			DataGB:  dimension(self.gb, avg.gb),
			Minutes: dimension(self.minutes, avg.minutes),
			SMS:     dimension(self.sms, avg.sms),
		},
	}, nil
}

func measure(src Source, b normalizer.BillHeader) member {
	u := src.UsageForBill(b)
	return member{total: b.TotalAmount, gb: u.GB, minutes: u.Minutes, sms: float64(u.SMS)}
}

func dimension(user, avg float64) Dimension {
	return Dimension{
		User:       money.Cents(user),
		CohortAvg:  money.Cents(avg),
		Difference: money.Cents(user - avg),
	}
}

func typeOf(u normalizer.User) string {
	if u.Type == "" {
		return UnknownType
	}
	return u.Type
}

// percentile interpolates linearly between the closest ranks of sorted xs
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*(pos-lo)
}
