package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/catalog"
	"github.com/lvonguyen/bill-insights/internal/chargeback"
	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/narrative"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Explanation is the full breakdown of one bill
type Explanation struct {
	Summary          narrative.Summary              `json:"summary"`
	Breakdown        []normalizer.CategoryBreakdown `json:"breakdown"`
	Contributors     []anomaly.Contributor          `json:"contributors"`
	Anomalies        []anomaly.Anomaly              `json:"anomalies"`
	SubtypeFirstSeen []anomaly.SubtypeAlert         `json:"subtype_first_seen"`
	TaxAllocation    chargeback.TaxAllocation       `json:"tax_allocation"`
	UnitCosts        chargeback.UnitCosts           `json:"unit_costs"`
	Services         []catalog.Match                `json:"services"`
	Narrative        string                         `json:"narrative"`
	TemplatedSummary bool                           `json:"templated_summary"`
	Warnings         []string                       `json:"warnings"`
}

// Payload returns what the narrative renderer receives
func (x *Explanation) Payload() narrative.Payload {
	return narrative.Payload{
		Summary:      x.Summary,
		Breakdown:    x.Breakdown,
		Contributors: x.Contributors,
	}
}

// Explain breaks a bill down by category, compares it with its baseline,
// allocates its tax and renders a narrative
func (e *Engine) Explain(ctx context.Context, billID int) (*Explanation, error) {
	bill, err := e.src.Bill(billID)
	if err != nil {
		return nil, err
	}

	report, err := e.DetectAnomalies(bill.UserID, bill.Period())
	if err != nil {
		return nil, err
	}

	items := e.src.LineItems(bill.BillID)
	usage := e.src.UsageForBill(bill)
	breakdown := normalizer.Breakdown(items)
	taxes := normalizer.TaxTotal(items)
	alloc := e.AllocateTaxes(taxes, normalizer.Amounts(breakdown))

	x := &Explanation{
		Summary: narrative.Summary{
			UserID:            bill.UserID,
			BillID:            bill.BillID,
			Period:            bill.Period(),
			Currency:          bill.Currency,
			Total:             bill.TotalAmount,
			Taxes:             money.Cents(taxes),
			Usage:             usage,
			BaselineTotalMean: report.Overall.BaselineTotalMean,
			TotalDelta:        report.Overall.TotalDelta,
		},
		Breakdown:        breakdown,
		Contributors:     report.Contributors,
		Anomalies:        report.Anomalies,
		SubtypeFirstSeen: report.SubtypeFirstSeen,
		TaxAllocation:    alloc,
		UnitCosts:        e.UnitCosts(alloc.Net(), usage),
		Services:         e.services.Resolve(items),
		Warnings:         report.Warnings,
	}

	x.Narrative, x.TemplatedSummary = narrative.Render(ctx, e.currentSummarizer(), x.Payload(), e.logger)

	e.logger.Debug("Bill explained",
		zap.Int("bill_id", billID),
		zap.Int("categories", len(breakdown)),
		zap.Int("services", len(x.Services)),
		zap.Bool("templated_summary", x.TemplatedSummary),
	)
	return x, nil
}
