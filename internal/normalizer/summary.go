package normalizer

import (
	"fmt"
	"sort"
	"strconv"
)

// CategoryAmount pairs a category with an amount
type CategoryAmount struct {
	Category Category `json:"category"`
	Total    float64  `json:"total"`
}

// BreakdownLine is one rendered line item within a category
type BreakdownLine struct {
	Text   string  `json:"text"`
	Amount float64 `json:"amount"`
}

// CategoryBreakdown holds a category total and its line items
type CategoryBreakdown struct {
	Category Category        `json:"category"`
	Total    float64         `json:"total"`
	Lines    []BreakdownLine `json:"lines"`
}

// UsageSummary holds measured usage over a billing period
type UsageSummary struct {
	GB        float64 `json:"gb"`
	Minutes   float64 `json:"minutes"`
	SMS       int     `json:"sms"`
	RoamingMB float64 `json:"roaming_mb"`
	RoamingGB float64 `json:"roaming_gb"`
}

// CategoryTotals sums line item amounts by category
func CategoryTotals(items []LineItem) map[Category]float64 {
	totals := make(map[Category]float64)
	for _, it := range items {
		totals[it.Category] += it.Amount
	}
	return totals
}

// SortedCategories returns the keys of totals in lexical order
func SortedCategories(totals map[Category]float64) []Category {
	cats := make([]Category, 0, len(totals))
	for c := range totals {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Breakdown groups items by category in order of first appearance
func Breakdown(items []LineItem) []CategoryBreakdown {
	index := make(map[Category]int)
	var out []CategoryBreakdown

	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(out)
			index[it.Category] = i
			out = append(out, CategoryBreakdown{Category: it.Category})
		}
		out[i].Total += it.Amount
		out[i].Lines = append(out[i].Lines, BreakdownLine{
			Text:   lineText(it),
			Amount: it.Amount,
		})
	}

	return out
}

// Amounts flattens a breakdown into category amounts, dropping line detail
func Amounts(breakdown []CategoryBreakdown) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(breakdown))
	for _, b := range breakdown {
		out = append(out, CategoryAmount{Category: b.Category, Total: b.Total})
	}
	return out
}

// TaxTotal sums the tax category
func TaxTotal(items []LineItem) float64 {
	var tax float64
	for _, it := range items {
		if it.Category == CategoryTax {
			tax += it.Amount
		}
	}
	return tax
}

// SummarizeUsage aggregates daily usage records
func SummarizeUsage(records []UsageRecord) UsageSummary {
	var s UsageSummary
	var mb float64

	for _, r := range records {
		mb += r.MBUsed
		s.Minutes += r.MinutesUsed
		s.SMS += r.SMSUsed
		s.RoamingMB += r.RoamingMB
	}

	s.GB = mb / 1024.0
	s.RoamingGB = s.RoamingMB / 1024.0
	return s
}

func lineText(it LineItem) string {
	return fmt.Sprintf("%s - %sx%s",
		it.Description,
		strconv.FormatFloat(it.Quantity, 'f', -1, 64),
		strconv.FormatFloat(it.UnitPrice, 'f', -1, 64),
	)
}
