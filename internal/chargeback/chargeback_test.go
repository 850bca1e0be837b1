package chargeback

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

func amounts(pairs ...any) []normalizer.CategoryAmount {
	var out []normalizer.CategoryAmount
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, normalizer.CategoryAmount{
			Category: pairs[i].(normalizer.Category),
			Total:    pairs[i+1].(float64),
		})
	}
	return out
}

func TestAllocateProRata(t *testing.T) {
	alloc := Allocate(27, amounts(
		normalizer.CategoryData, 100.0,
		normalizer.CategoryVoice, 50.0,
		normalizer.CategoryVAS, 0.0,
		normalizer.CategoryTax, 27.0,
	))

	assert.InDelta(t, 150.0, alloc.GrossTotal, 1e-9)
	assert.InDelta(t, 27.0, alloc.TaxesTotal, 1e-9)
	require.Len(t, alloc.ByCategory, 3)

	data, voice, vas := alloc.ByCategory[0], alloc.ByCategory[1], alloc.ByCategory[2]
	assert.Equal(t, normalizer.CategoryData, data.Category)
	assert.InDelta(t, 18.0, data.AllocatedTax, 1e-9)
	assert.InDelta(t, 82.0, data.Net, 1e-9)
	assert.InDelta(t, 0.2195, data.EffectiveTaxRate, 1e-9)
	assert.InDelta(t, 9.0, voice.AllocatedTax, 1e-9)
	assert.InDelta(t, 41.0, voice.Net, 1e-9)
	assert.InDelta(t, 0.0, vas.AllocatedTax, 1e-9)
	assert.InDelta(t, 0.0, vas.EffectiveTaxRate, 1e-9)

	net := alloc.Net()
	assert.InDelta(t, 82.0, net[normalizer.CategoryData], 1e-9)
	_, hasTax := net[normalizer.CategoryTax]
	assert.False(t, hasTax)
}

func TestAllocateZeroTax(t *testing.T) {
	alloc := Allocate(0, amounts(
		normalizer.CategoryData, 123.45,
		normalizer.CategoryRoaming, 99.99,
		normalizer.CategoryOneOff, 10.0,
	))
	for _, c := range alloc.ByCategory {
		assert.Zero(t, c.AllocatedTax, c.Category)
		assert.InDelta(t, c.Gross, c.Net, 1e-9)
	}
}

func TestAllocateZeroGross(t *testing.T) {
	alloc := Allocate(10, amounts(normalizer.CategoryData, 0.0))
	require.Len(t, alloc.ByCategory, 1)
	assert.Zero(t, alloc.ByCategory[0].Share)
	assert.Zero(t, alloc.ByCategory[0].AllocatedTax)
}

func TestAllocateExactness(t *testing.T) {
	cases := []struct {
		name string
		tax  float64
		cats []normalizer.CategoryAmount
	}{
		{"thirds", 10, amounts(normalizer.CategoryData, 33.33, normalizer.CategoryVoice, 33.33, normalizer.CategorySMS, 33.34)},
		{"bill", 99.88, amounts(normalizer.CategoryOneOff, 200.0, normalizer.CategoryData, 180.0,
			normalizer.CategoryVAS, 29.9, normalizer.CategoryRoaming, 120.0, normalizer.CategoryPremiumSMS, 25.0)},
		{"single", 41.38, amounts(normalizer.CategoryOneOff, 229.9)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alloc := Allocate(tc.tax, tc.cats)
			var sum float64
			for _, c := range alloc.ByCategory {
				sum += c.Net + c.AllocatedTax
			}
			assert.InDelta(t, alloc.GrossTotal, sum, 0.01+1e-9)
		})
	}
}

func TestCalculateUnitCosts(t *testing.T) {
	net := map[normalizer.Category]float64{
		normalizer.CategoryData:    150,
		normalizer.CategoryVoice:   10,
		normalizer.CategoryRoaming: 100,
	}

	uc := CalculateUnitCosts(net, normalizer.UsageSummary{GB: 12, Minutes: 300, SMS: 0, RoamingGB: 0.5})
	require.NotNil(t, uc.DataPerGB)
	assert.InDelta(t, 12.5, *uc.DataPerGB, 1e-9)
	require.NotNil(t, uc.VoicePerMin)
	assert.InDelta(t, 0.033, *uc.VoicePerMin, 1e-9)
	assert.Nil(t, uc.SMSPerSMS)
	require.NotNil(t, uc.RoamingPerGB)
	assert.InDelta(t, 200.0, *uc.RoamingPerGB, 1e-9)

	metrics := uc.Metrics()
	require.Len(t, metrics, 3)
	assert.Equal(t, MetricDataPerGB, metrics[0].Name)
	assert.Equal(t, MetricRoamingPerGB, metrics[2].Name)
}

func TestUnitCostsNoUsage(t *testing.T) {
	uc := CalculateUnitCosts(map[normalizer.Category]float64{normalizer.CategoryData: 50}, normalizer.UsageSummary{})
	assert.Nil(t, uc.DataPerGB)
	assert.Nil(t, uc.VoicePerMin)
	assert.Nil(t, uc.SMSPerSMS)
	assert.Nil(t, uc.RoamingPerGB)
	assert.Empty(t, uc.Metrics())
}

func TestReportSaveCSV(t *testing.T) {
	alloc := Allocate(27, amounts(normalizer.CategoryData, 100.0, normalizer.CategoryVoice, 50.0))
	path := filepath.Join(t.TempDir(), "tax.csv")

	require.NoError(t, NewReport(1, "2025-08", 9, alloc).SaveCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"data", "100.00", "66.7%", "18.00", "82.00", "0.2195"}, rows[1])
	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "27.00", rows[3][3])
}
