// Package chargeback allocates a bill's tax across its spending categories.
package chargeback

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// CategoryTax is the tax allocated to one category
type CategoryTax struct {
	Category         normalizer.Category `json:"category"`
	Gross            float64             `json:"gross"`
	Share            float64             `json:"share"`
	AllocatedTax     float64             `json:"allocated_tax"`
	Net              float64             `json:"net"`
	EffectiveTaxRate float64             `json:"effective_tax_rate"`
}

// TaxAllocation is the pro-rata split of a period's tax
type TaxAllocation struct {
	TaxesTotal float64       `json:"taxes_total"`
	ByCategory []CategoryTax `json:"by_category"`
	GrossTotal float64       `json:"gross_total"`
}

// Allocate distributes totalTax over the non-tax categories in proportion to
// their gross amounts. Each line item's own tax rate is not consulted.
// Category order is preserved.
func Allocate(totalTax float64, categories []normalizer.CategoryAmount) TaxAllocation {
	var base []normalizer.CategoryAmount
	var grossTotal float64
	for _, c := range categories {
		if c.Category == normalizer.CategoryTax {
			continue
		}
		base = append(base, c)
		grossTotal += c.Total
	}

	out := TaxAllocation{
		TaxesTotal: money.Cents(totalTax),
		ByCategory: make([]CategoryTax, 0, len(base)),
		GrossTotal: money.Cents(grossTotal),
	}

	for _, c := range base {
		share := 0.0
		if grossTotal != 0 {
			share = c.Total / grossTotal
		}
		allocated := totalTax * share
		net := max(c.Total-allocated, 0)
		rate := 0.0
		if net != 0 {
			rate = allocated / net
		}

		out.ByCategory = append(out.ByCategory, CategoryTax{
			Category:         c.Category,
			Gross:            money.Cents(c.Total),
			Share:            money.Round(share, 4),
			AllocatedTax:     money.Cents(allocated),
			Net:              money.Cents(net),
			EffectiveTaxRate: money.Round(rate, 4),
		})
	}

	return out
}

// Net returns the net amount by category
func (a TaxAllocation) Net() map[normalizer.Category]float64 {
	net := make(map[normalizer.Category]float64, len(a.ByCategory))
	for _, c := range a.ByCategory {
		net[c.Category] += c.Net
	}
	return net
}

// Report is a tax allocation for one bill, ready to export
type Report struct {
	UserID     int
	Period     string
	BillID     int
	Allocation TaxAllocation
	Generated  time.Time
}

// NewReport wraps an allocation for export
func NewReport(userID int, period string, billID int, alloc TaxAllocation) *Report {
	return &Report{
		UserID:     userID,
		Period:     period,
		BillID:     billID,
		Allocation: alloc,
		Generated:  time.Now(),
	}
}

// SaveCSV saves the report as a CSV file
func (r *Report) SaveCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Category", "Gross", "Share", "Allocated Tax", "Net", "Effective Rate"}
	if err := writer.Write(header); err != nil {
		return err
	}

	var allocated, net float64
	for _, c := range r.Allocation.ByCategory {
		allocated += c.AllocatedTax
		net += c.Net
		row := []string{
			string(c.Category),
			fmt.Sprintf("%.2f", c.Gross),
			fmt.Sprintf("%.1f%%", c.Share*100),
			fmt.Sprintf("%.2f", c.AllocatedTax),
			fmt.Sprintf("%.2f", c.Net),
			fmt.Sprintf("%.4f", c.EffectiveTaxRate),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	totalRow := []string{
		"TOTAL",
		fmt.Sprintf("%.2f", r.Allocation.GrossTotal),
		"100.0%",
		fmt.Sprintf("%.2f", allocated),
		fmt.Sprintf("%.2f", net),
		"",
	}
	if err := writer.Write(totalRow); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
