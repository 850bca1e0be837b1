package chargeback

import (
	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// UnitCosts is the net cost per unit of measured usage. A field is nil when
// the matching usage is zero.
type UnitCosts struct {
	DataPerGB    *float64 `json:"data_tl_per_gb"`
	VoicePerMin  *float64 `json:"voice_tl_per_min"`
	SMSPerSMS    *float64 `json:"sms_tl_per_sms"`
	RoamingPerGB *float64 `json:"roaming_tl_per_gb"`
}

// Metric names as used in unit cost limits
const (
	MetricDataPerGB    = "data_tl_per_gb"
	MetricVoicePerMin  = "voice_tl_per_min"
	MetricSMSPerSMS    = "sms_tl_per_sms"
	MetricRoamingPerGB = "roaming_tl_per_gb"
)

// CalculateUnitCosts divides net category amounts by period usage
func CalculateUnitCosts(net map[normalizer.Category]float64, usage normalizer.UsageSummary) UnitCosts {
	return UnitCosts{
		DataPerGB:    perUnit(net[normalizer.CategoryData], usage.GB, 2),
		VoicePerMin:  perUnit(net[normalizer.CategoryVoice], usage.Minutes, 3),
		SMSPerSMS:    perUnit(net[normalizer.CategorySMS], float64(usage.SMS), 2),
		RoamingPerGB: perUnit(net[normalizer.CategoryRoaming], usage.RoamingGB, 2),
	}
}

// Metrics returns the non-nil unit costs keyed by metric name, in a fixed order
func (u UnitCosts) Metrics() []Metric {
	var out []Metric
	for _, m := range []Metric{
		{MetricDataPerGB, u.DataPerGB},
		{MetricVoicePerMin, u.VoicePerMin},
		{MetricSMSPerSMS, u.SMSPerSMS},
		{MetricRoamingPerGB, u.RoamingPerGB},
	} {
		if m.Value != nil {
			out = append(out, m)
		}
	}
	return out
}

// Metric is one named unit cost
type Metric struct {
	Name  string
	Value *float64
}

func perUnit(amount, units float64, places int32) *float64 {
	if units == 0 {
		return nil
	}
	return money.Ptr(amount/units, places)
}
