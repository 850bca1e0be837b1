// Package normalizer provides the common schema for subscriber bills and usage.
package normalizer

import (
	"strings"
	"time"
)

// Category is a normalized bill line item category
type Category string

const (
	CategoryData       Category = "data"
	CategoryVoice      Category = "voice"
	CategorySMS        Category = "sms"
	CategoryRoaming    Category = "roaming"
	CategoryPremiumSMS Category = "premium_sms"
	CategoryVAS        Category = "vas"
	CategoryOneOff     Category = "one_off"
	CategoryDiscount   Category = "discount"
	CategoryTax        Category = "tax"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategoryData,
	CategoryVoice,
	CategorySMS,
	CategoryRoaming,
	CategoryPremiumSMS,
	CategoryVAS,
	CategoryOneOff,
	CategoryDiscount,
	CategoryTax,
}

// SubtypeBaseFee marks the recurring plan fee, booked under one_off.
const SubtypeBaseFee = "base_fee"

// CategoryMapping maps display or legacy labels to normalized categories
var CategoryMapping = map[string]Category{
	"data":        CategoryData,
	"internet":    CategoryData,
	"voice":       CategoryVoice,
	"calls":       CategoryVoice,
	"sms":         CategorySMS,
	"roaming":     CategoryRoaming,
	"premium":     CategoryPremiumSMS,
	"premium sms": CategoryPremiumSMS,
	"premium_sms": CategoryPremiumSMS,
	"vas":         CategoryVAS,
	"one_off":     CategoryOneOff,
	"one-off":     CategoryOneOff,
	"discount":    CategoryDiscount,
	"tax":         CategoryTax,
	"taxes":       CategoryTax,
	"vat":         CategoryTax,
	"vergiler":    CategoryTax,
}

// NormalizeCategory lower-cases and trims a raw label and maps known aliases.
// Unknown labels are returned normalized but otherwise unchanged.
func NormalizeCategory(raw string) Category {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "unknown"
	}
	if c, ok := CategoryMapping[key]; ok {
		return c
	}
	return Category(key)
}

// NormalizeSubtype lower-cases and trims a subtype, defaulting to "unknown".
func NormalizeSubtype(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "unknown"
	}
	return s
}

// User is a subscriber
type User struct {
	UserID        int    `json:"user_id"`
	Name          string `json:"name"`
	CurrentPlanID int    `json:"current_plan_id"`
	Type          string `json:"type"` // retail, youth, corporate, tourist
	MSISDN        string `json:"msisdn"`
}

// Plan is a tariff catalog entry
type Plan struct {
	PlanID         int     `json:"plan_id"`
	Name           string  `json:"plan_name"`
	Type           string  `json:"type"`
	QuotaGB        float64 `json:"quota_gb"`
	QuotaMin       float64 `json:"quota_min"`
	QuotaSMS       float64 `json:"quota_sms"`
	MonthlyPrice   float64 `json:"monthly_price"`
	OverageGBRate  float64 `json:"overage_gb"`
	OverageMinRate float64 `json:"overage_min"`
	OverageSMSRate float64 `json:"overage_sms"`
}

// AddOn is an add-on pack catalog entry
type AddOn struct {
	AddOnID  int     `json:"addon_id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	ExtraGB  float64 `json:"extra_gb"`
	ExtraMin float64 `json:"extra_min"`
	ExtraSMS float64 `json:"extra_sms"`
	Price    float64 `json:"price"`
}

// VASOffer is a value-added service catalog entry
type VASOffer struct {
	VASID      int     `json:"vas_id"`
	Name       string  `json:"name"`
	MonthlyFee float64 `json:"monthly_fee"`
	Provider   string  `json:"provider"`
}

// PremiumSMSOffer is a premium SMS short code catalog entry
type PremiumSMSOffer struct {
	Shortcode string  `json:"shortcode"`
	Provider  string  `json:"provider"`
	UnitPrice float64 `json:"unit_price"`
}

// BillHeader is one subscriber bill for one period
type BillHeader struct {
	BillID      int       `json:"bill_id"`
	UserID      int       `json:"user_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	IssueDate   time.Time `json:"issue_date"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
}

// Period returns the YYYY-MM key of the bill
func (b BillHeader) Period() string {
	return b.PeriodStart.Format("2006-01")
}

// LineItem is a single bill charge. Discounts carry negative amounts.
type LineItem struct {
	BillID      int       `json:"bill_id"`
	ItemID      int       `json:"item_id"`
	Category    Category  `json:"category"`
	Subtype     string    `json:"subtype"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	UnitPrice   float64   `json:"unit_price"`
	Quantity    float64   `json:"quantity"`
	TaxRate     float64   `json:"tax_rate"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageRecord is one subscriber's measured usage for one day
type UsageRecord struct {
	UserID      int       `json:"user_id"`
	Date        time.Time `json:"date"`
	MBUsed      float64   `json:"mb_used"`
	MinutesUsed float64   `json:"minutes_used"`
	SMSUsed     int       `json:"sms_used"`
	RoamingMB   float64   `json:"roaming_mb"`
}
