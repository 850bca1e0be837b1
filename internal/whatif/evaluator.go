// Package whatif re-prices a subscriber's measured usage under alternative
// plans, add-ons and service toggles.
package whatif

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// DefaultVATRate is applied to a scenario's subtotal
const DefaultVATRate = 0.18

// Source is the read-only snapshot access the evaluator needs
type Source interface {
	User(userID int) (normalizer.User, error)
	Plan(planID int) (normalizer.Plan, error)
	Plans() []normalizer.Plan
	AddOn(addOnID int) (normalizer.AddOn, error)
	AddOns() []normalizer.AddOn
	BillFor(userID int, period string) (normalizer.BillHeader, error)
	LineItems(billID int) []normalizer.LineItem
	UsageForBill(b normalizer.BillHeader) normalizer.UsageSummary
}

// Scenario is a candidate configuration. A nil PlanID keeps the current plan.
type Scenario struct {
	PlanID          *int  `json:"plan_id"`
	AddOns          []int `json:"addons"`
	DisableVAS      bool  `json:"disable_vas"`
	BlockPremiumSMS bool  `json:"block_premium_sms"`
}

// String renders the scenario for logs
func (s Scenario) String() string {
	plan := "current"
	if s.PlanID != nil {
		plan = fmt.Sprint(*s.PlanID)
	}
	return fmt.Sprintf("plan=%s addons=%v disable_vas=%t block_premium_sms=%t",
		plan, s.AddOns, s.DisableVAS, s.BlockPremiumSMS)
}

// Details itemises every term of a scenario's cost
type Details struct {
	FixedFee         float64 `json:"fixed_fee"`
	AddOnsCost       float64 `json:"addons_cost"`
	OverageDataGB    float64 `json:"overage_data_gb"`
	OverageVoiceMin  float64 `json:"overage_voice_min"`
	OverageSMS       int     `json:"overage_sms"`
	CostOverageData  float64 `json:"cost_overage_data"`
	CostOverageVoice float64 `json:"cost_overage_voice"`
	CostOverageSMS   float64 `json:"cost_overage_sms"`
	KeptVAS          float64 `json:"kept_vas"`
	KeptPremiumSMS   float64 `json:"kept_premium_sms"`
	KeptRoaming      float64 `json:"kept_roaming"`
	KeptOneOff       float64 `json:"kept_one_off"`
	Subtotal         float64 `json:"subtotal"`
	Tax              float64 `json:"tax"`
}

// Result is the priced outcome of a scenario
type Result struct {
	PlanID          int     `json:"plan_id"`
	PlanName        string  `json:"plan_name"`
	AddOns          []int   `json:"addons"`
	DisableVAS      bool    `json:"disable_vas"`
	BlockPremiumSMS bool    `json:"block_premium_sms"`
	CurrentTotal    float64 `json:"current_total"`
	NewTotal        float64 `json:"new_total"`
	Saving          float64 `json:"saving"`
	Details         Details `json:"details"`
}

// Scenario returns the configuration that produced the result
func (r Result) Scenario() Scenario {
	planID := r.PlanID
	return Scenario{
		PlanID:          &planID,
		AddOns:          append([]int{}, r.AddOns...),
		DisableVAS:      r.DisableVAS,
		BlockPremiumSMS: r.BlockPremiumSMS,
	}
}

// Evaluator prices scenarios against a snapshot
type Evaluator struct {
	src     Source
	vatRate float64
}

// NewEvaluator creates an evaluator. A negative vatRate uses DefaultVATRate;
// zero means the scenario bill carries no VAT.
func NewEvaluator(src Source, vatRate float64) *Evaluator {
	if vatRate < 0 {
		vatRate = DefaultVATRate
	}
	return &Evaluator{src: src, vatRate: vatRate}
}

// CurrentTotal returns the billed total for the period
func (e *Evaluator) CurrentTotal(userID int, period string) (float64, error) {
	bill, err := e.src.BillFor(userID, period)
	if err != nil {
		return 0, err
	}
	return bill.TotalAmount, nil
}

// Evaluate recomputes the period's bill under the scenario using the same
// measured usage. Roaming and one-off charges are carried forward, except the
// plan base fee which the scenario's plan replaces.
func (e *Evaluator) Evaluate(userID int, period string, sc Scenario) (*Result, error) {
	bill, err := e.src.BillFor(userID, period)
	if err != nil {
		return nil, err
	}
	usage := e.src.UsageForBill(bill)

	planID := 0
	if sc.PlanID != nil {
		planID = *sc.PlanID
	} else {
		user, err := e.src.User(userID)
		if err != nil {
			return nil, err
		}
		planID = user.CurrentPlanID
	}
	plan, err := e.src.Plan(planID)
	if err != nil {
		return nil, err
	}

	addOnIDs := uniqueSorted(sc.AddOns)
	var extraGB, extraMin, extraSMS, addOnCost float64
	for _, id := range addOnIDs {
		a, err := e.src.AddOn(id)
		if err != nil {
			return nil, err
		}
		extraGB += a.ExtraGB
		extraMin += a.ExtraMin
		extraSMS += a.ExtraSMS
		addOnCost += a.Price
	}

	overGB := max(0, usage.GB-(plan.QuotaGB+extraGB))
	overMin := max(0, usage.Minutes-(plan.QuotaMin+extraMin))
	overSMS := max(0, usage.SMS-int(plan.QuotaSMS+extraSMS))

	costData := overGB * plan.OverageGBRate
	costVoice := overMin * plan.OverageMinRate
	costSMS := float64(overSMS) * plan.OverageSMSRate

	carried := carryForward(e.src.LineItems(bill.BillID))
	keptVAS := carried.vas
	if sc.DisableVAS {
		keptVAS = 0
	}
	keptPremium := carried.premiumSMS
	if sc.BlockPremiumSMS {
		keptPremium = 0
	}

	subtotal := plan.MonthlyPrice + addOnCost + costData + costVoice + costSMS +
		keptVAS + keptPremium + carried.roaming + carried.oneOff
	tax := subtotal * e.vatRate
	newTotal := subtotal + tax

	return &Result{
		PlanID:          plan.PlanID,
		PlanName:        plan.Name,
		AddOns:          addOnIDs,
		DisableVAS:      sc.DisableVAS,
		BlockPremiumSMS: sc.BlockPremiumSMS,
		CurrentTotal:    money.Cents(bill.TotalAmount),
		NewTotal:        money.Cents(newTotal),
		Saving:          money.Cents(bill.TotalAmount - newTotal),
		Details: Details{
			FixedFee:         money.Cents(plan.MonthlyPrice),
			AddOnsCost:       money.Cents(addOnCost),
			OverageDataGB:    money.Cents(overGB),
			OverageVoiceMin:  money.Cents(overMin),
			OverageSMS:       overSMS,
			CostOverageData:  money.Cents(costData),
			CostOverageVoice: money.Cents(costVoice),
			CostOverageSMS:   money.Cents(costSMS),
			KeptVAS:          money.Cents(keptVAS),
			KeptPremiumSMS:   money.Cents(keptPremium),
			KeptRoaming:      money.Cents(carried.roaming),
			KeptOneOff:       money.Cents(carried.oneOff),
			Subtotal:         money.Cents(subtotal),
			Tax:              money.Cents(tax),
		},
	}, nil
}

type carriedAmounts struct {
	vas        float64
	premiumSMS float64
	roaming    float64
	oneOff     float64
}

func carryForward(items []normalizer.LineItem) carriedAmounts {
	var c carriedAmounts
	for _, it := range items {
		switch it.Category {
		case normalizer.CategoryVAS:
			c.vas += it.Amount
		case normalizer.CategoryPremiumSMS:
			c.premiumSMS += it.Amount
		case normalizer.CategoryRoaming:
			c.roaming += it.Amount
		case normalizer.CategoryOneOff:
			if it.Subtype != normalizer.SubtypeBaseFee {
				c.oneOff += it.Amount
			}
		}
	}
	return c
}

func uniqueSorted(ids []int) []int {
	out := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// formatIDs renders add-on ids for rationales
func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
