package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

func payload(delta *float64) Payload {
	return Payload{
		Summary: Summary{Total: 654.78, Currency: "TRY", TotalDelta: delta},
		Contributors: []anomaly.Contributor{
			{Category: normalizer.CategoryData, Delta: 180},
			{Category: normalizer.CategoryRoaming, Delta: 120},
		},
	}
}

func TestFallback(t *testing.T) {
	up := 383.5
	assert.Equal(t,
		"Bill total was 654.78 TRY; trend vs. baseline is up; largest contributor was data",
		Fallback(payload(&up)))

	down := -10.0
	assert.Contains(t, Fallback(payload(&down)), "trend vs. baseline is down")

	p := payload(nil)
	p.Contributors = nil
	p.Summary.Currency = ""
	assert.Equal(t, "Bill total was 654.78 TRY; trend vs. baseline is down", Fallback(p))
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	p := payload(nil)

	text, fallback := Render(ctx, nil, p, logger)
	assert.True(t, fallback)
	assert.Equal(t, Fallback(p), text)

	failing := SummarizerFunc(func(context.Context, Payload) (string, error) {
		return "", errors.New("renderer offline")
	})
	text, fallback = Render(ctx, failing, p, logger)
	assert.True(t, fallback)
	assert.Equal(t, Fallback(p), text)

	blank := SummarizerFunc(func(context.Context, Payload) (string, error) { return "  ", nil })
	_, fallback = Render(ctx, blank, p, logger)
	assert.True(t, fallback)

	ok := SummarizerFunc(func(_ context.Context, got Payload) (string, error) {
		return " Your bill rose because of data. ", nil
	})
	text, fallback = Render(ctx, ok, p, logger)
	assert.False(t, fallback)
	assert.Equal(t, "Your bill rose because of data.", text)
}
