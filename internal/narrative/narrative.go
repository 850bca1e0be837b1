// Package narrative hands bill explanations to an external summary renderer
// and falls back to a fixed template when it is unavailable.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Summary is the headline block of a payload
type Summary struct {
	UserID            int                     `json:"user_id"`
	BillID            int                     `json:"bill_id"`
	Period            string                  `json:"period"`
	Currency          string                  `json:"currency"`
	Total             float64                 `json:"total"`
	Taxes             float64                 `json:"taxes"`
	Usage             normalizer.UsageSummary `json:"usage_summary"`
	BaselineTotalMean *float64                `json:"baseline_total_mean"`
	TotalDelta        *float64                `json:"total_delta"`
}

// Payload is what a Summarizer receives
type Payload struct {
	Summary      Summary                        `json:"summary"`
	Breakdown    []normalizer.CategoryBreakdown `json:"breakdown"`
	Contributors []anomaly.Contributor          `json:"contributors"`
}

// Summarizer turns a payload into prose
type Summarizer interface {
	Summarize(ctx context.Context, p Payload) (string, error)
}

// SummarizerFunc adapts a function to Summarizer
type SummarizerFunc func(ctx context.Context, p Payload) (string, error)

// Summarize calls f
func (f SummarizerFunc) Summarize(ctx context.Context, p Payload) (string, error) {
	return f(ctx, p)
}

// Render asks s for a summary. A nil summarizer, an error or an empty answer
// yields Fallback(p); the second return value reports whether it was used.
func Render(ctx context.Context, s Summarizer, p Payload, logger *zap.Logger) (string, bool) {
	if s == nil {
		return Fallback(p), true
	}

	text, err := s.Summarize(ctx, p)
	if err != nil {
		if logger != nil {
			logger.Warn("Summary renderer failed, using template", zap.Error(err))
		}
		return Fallback(p), true
	}
	if strings.TrimSpace(text) == "" {
		return Fallback(p), true
	}
	return strings.TrimSpace(text), false
}

// Fallback renders the fixed one-line summary
func Fallback(p Payload) string {
	currency := p.Summary.Currency
	if currency == "" {
		currency = "TRY"
	}

	trend := "down"
	if p.Summary.TotalDelta != nil && *p.Summary.TotalDelta > 0 {
		trend = "up"
	}

	parts := []string{
		fmt.Sprintf("Bill total was %.2f %s", p.Summary.Total, currency),
		"trend vs. baseline is " + trend,
	}
	if len(p.Contributors) > 0 {
		parts = append(parts, fmt.Sprintf("largest contributor was %s", p.Contributors[0].Category))
	}
	return strings.Join(parts, "; ")
}
