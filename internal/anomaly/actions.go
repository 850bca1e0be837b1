package anomaly

import "github.com/lvonguyen/bill-insights/internal/normalizer"

// DefaultAction is suggested for categories without a specific action
const DefaultAction = "review"

var suggestedActions = map[normalizer.Category]string{
	normalizer.CategoryPremiumSMS: "block or cancel premium SMS services",
	normalizer.CategoryVAS:        "review and cancel value-added service subscriptions",
	normalizer.CategoryRoaming:    "buy a roaming pack or turn off data roaming",
	normalizer.CategoryData:       "move to a plan with more data or add a data pack",
	normalizer.CategoryVoice:      "consider a plan with more included minutes",
	normalizer.CategorySMS:        "add an SMS pack or use messaging apps",
	normalizer.CategoryOneOff:     "contact support about the one-off charge",
	normalizer.CategoryDiscount:   "check the discount terms, the campaign may have ended",
}

// SuggestedAction returns the recommended follow-up for a category
func SuggestedAction(cat normalizer.Category) string {
	if a, ok := suggestedActions[cat]; ok {
		return a
	}
	return DefaultAction
}
