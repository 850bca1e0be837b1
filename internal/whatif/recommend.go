package whatif

import (
	"fmt"
	"strings"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/money"
)

// ActionApplyRecommendation is the one-click action type
const ActionApplyRecommendation = "apply_recommendation"

// Choice is the recommended configuration with its cost breakdown
type Choice struct {
	PlanID          int     `json:"plan_id"`
	PlanName        string  `json:"plan_name"`
	AddOns          []int   `json:"addons"`
	DisableVAS      bool    `json:"disable_vas"`
	BlockPremiumSMS bool    `json:"block_premium_sms"`
	Details         Details `json:"details"`
}

// Action is a machine-applicable payload; Payload can be evaluated as-is
type Action struct {
	Type    string   `json:"type"`
	Payload Scenario `json:"payload"`
}

// Recommendation is the single best-saving scenario
type Recommendation struct {
	UserID           int      `json:"user_id"`
	Period           string   `json:"period"`
	CurrentTotal     float64  `json:"current_total"`
	RecommendedTotal float64  `json:"recommended_total"`
	PotentialSaving  float64  `json:"potential_saving"`
	SavingPercent    float64  `json:"saving_percent"`
	Recommendation   Choice   `json:"recommendation"`
	Rationale        string   `json:"rationale"`
	OneClickAction   Action   `json:"one_click_action"`
	Alternatives     []Result `json:"alternatives"`
}

// Recommend picks the first maximum-saving result
func Recommend(userID int, period string, currentTotal float64, results []Result) (*Recommendation, error) {
	if len(results) == 0 {
		return nil, billerr.NotFound("scenario", fmt.Sprintf("%d/%s", userID, period))
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Saving > best.Saving {
			best = r
		}
	}

	pct := 0.0
	if currentTotal > 0 {
		pct = money.Round(best.Saving/currentTotal*100, 1)
	}

	return &Recommendation{
		UserID:           userID,
		Period:           period,
		CurrentTotal:     money.Cents(currentTotal),
		RecommendedTotal: best.NewTotal,
		PotentialSaving:  best.Saving,
		SavingPercent:    pct,
		Recommendation: Choice{
			PlanID:          best.PlanID,
			PlanName:        best.PlanName,
			AddOns:          append([]int{}, best.AddOns...),
			DisableVAS:      best.DisableVAS,
			BlockPremiumSMS: best.BlockPremiumSMS,
			Details:         best.Details,
		},
		Rationale:      rationale(best, pct),
		OneClickAction: Action{Type: ActionApplyRecommendation, Payload: best.Scenario()},
		Alternatives:   results,
	}, nil
}

func rationale(best Result, pct float64) string {
	var changes []string
	name := best.PlanName
	if name == "" {
		name = fmt.Sprintf("plan %d", best.PlanID)
	}
	changes = append(changes, "move to "+name)
	if len(best.AddOns) > 0 {
		changes = append(changes, "add add-ons "+formatIDs(best.AddOns))
	}
	if best.DisableVAS {
		changes = append(changes, "cancel value-added services")
	}
	if best.BlockPremiumSMS {
		changes = append(changes, "block premium SMS")
	}
	what := strings.Join(changes, ", ")

	if best.Saving <= 0 {
		return fmt.Sprintf("No cheaper configuration found; the closest option (%s) costs %.2f more.", what, -best.Saving)
	}
	return fmt.Sprintf("You can save %.2f (%.1f%%) if you %s.", best.Saving, pct, what)
}
