package anomaly

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
	"github.com/lvonguyen/bill-insights/internal/store"
	"github.com/lvonguyen/bill-insights/internal/store/storetest"
)

const uid = 7

func detect(t *testing.T, s *store.Store, period string) *Report {
	t.Helper()
	b, err := BuildBaseline(s, uid, period, DefaultWindow)
	require.NoError(t, err)
	bill, err := s.BillFor(uid, period)
	require.NoError(t, err)
	return NewDetector(DefaultDetectorConfig()).Detect(s.LineItems(bill.BillID), b)
}

func findAnomaly(r *Report, cat normalizer.Category) *Anomaly {
	for i := range r.Anomalies {
		if r.Anomalies[i].Category == cat {
			return &r.Anomalies[i]
		}
	}
	return nil
}

func roamingHistory(current ...storetest.Item) *store.Store {
	b := storetest.New().User(uid, 1)
	for i, amt := range []float64{120, 130, 125} {
		b.Bill(uid, []string{"2025-01", "2025-02", "2025-03"}[i],
			storetest.S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
			storetest.S(normalizer.CategoryRoaming, "eu", amt),
		)
	}
	b.Bill(uid, "2025-04", current...)
	return b.Store()
}

func TestRoamingZScoreSpike(t *testing.T) {
	s := roamingHistory(
		storetest.S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
		storetest.S(normalizer.CategoryRoaming, "eu", 300),
	)

	base, err := BuildBaseline(s, uid, "2025-04", 3)
	require.NoError(t, err)
	st := base.Stats[normalizer.CategoryRoaming]
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 125.0, st.Mean, 1e-9)
	assert.InDelta(t, 4.08, st.Std, 0.01)
	assert.InDelta(t, 375.0, st.Sum, 1e-9)

	r := detect(t, s, "2025-04")
	a := findAnomaly(r, normalizer.CategoryRoaming)
	require.NotNil(t, a)
	require.NotNil(t, a.Z)
	assert.InDelta(t, 42.87, *a.Z, 0.01)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Contains(t, a.Reasons[0], "z-score")
	assert.NotContains(t, a.Reasons, ReasonSensitiveNew)
	require.NotNil(t, a.BaselineStd)
	assert.InDelta(t, 4.08, *a.BaselineStd, 1e-9)
	assert.Equal(t, SuggestedAction(normalizer.CategoryRoaming), a.SuggestedAction)
}

func TestRoamingBelowFloorIsNotFlagged(t *testing.T) {
	s := roamingHistory(
		storetest.S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
	)

	r := detect(t, s, "2025-04")
	assert.Nil(t, findAnomaly(r, normalizer.CategoryRoaming))

	// still listed as a contributor
	var found bool
	for _, c := range r.Contributors {
		if c.Category == normalizer.CategoryRoaming {
			found = true
			assert.InDelta(t, -125.0, c.Delta, 1e-9)
		}
	}
	assert.True(t, found)
}

func TestFirstSeenTakesPrecedence(t *testing.T) {
	r := detect(t, sampleWithUser(), "2025-08")

	a := findAnomaly(r, normalizer.CategoryPremiumSMS)
	require.NotNil(t, a)
	require.NotEmpty(t, a.Reasons)
	assert.Equal(t, ReasonFirstSeen, a.Reasons[0])
	assert.Equal(t, []string{ReasonFirstSeen, ReasonSensitiveNew}, a.Reasons)
	assert.Equal(t, ReasonFirstSeen+"; "+ReasonSensitiveNew, a.Reason)
	assert.Nil(t, a.Z)
	assert.Nil(t, a.PctDelta)
	assert.Equal(t, SeverityHigh, a.Severity)

	data := findAnomaly(r, normalizer.CategoryData)
	require.NotNil(t, data)
	assert.Equal(t, []string{ReasonFirstSeen}, data.Reasons)
}

func TestAnomalyOrderingAndContributors(t *testing.T) {
	r := detect(t, sampleWithUser(), "2025-08")

	var cats []normalizer.Category
	for _, a := range r.Anomalies {
		cats = append(cats, a.Category)
	}
	// all keys tie on z and pct, so amount decides
	assert.Equal(t, []normalizer.Category{
		normalizer.CategoryData,
		normalizer.CategoryRoaming,
		normalizer.CategoryPremiumSMS,
	}, cats)

	for i := 1; i < len(r.Contributors); i++ {
		assert.GreaterOrEqual(t, r.Contributors[i-1].Delta, r.Contributors[i].Delta)
	}
	for _, c := range r.Contributors {
		assert.NotEqual(t, normalizer.CategoryTax, c.Category)
	}

	require.NotNil(t, r.Overall.BaselineTotalMean)
	assert.InDelta(t, 271.28, *r.Overall.BaselineTotalMean, 1e-9)
	assert.InDelta(t, 654.78, r.Overall.CurrentTotal, 1e-9)
	require.NotNil(t, r.Overall.TotalDelta)
	assert.InDelta(t, 383.5, *r.Overall.TotalDelta, 1e-9)
	assert.Empty(t, r.Warnings)
}

func TestSubtypeFirstSeen(t *testing.T) {
	r := detect(t, sampleWithUser(), "2025-08")

	require.Len(t, r.SubtypeFirstSeen, 3)
	assert.Equal(t, normalizer.CategoryData, r.SubtypeFirstSeen[0].Category)
	assert.Equal(t, "overage", r.SubtypeFirstSeen[0].Subtype)
	assert.Equal(t, normalizer.CategoryPremiumSMS, r.SubtypeFirstSeen[1].Category)
	assert.Equal(t, normalizer.CategoryRoaming, r.SubtypeFirstSeen[2].Category)
	assert.InDelta(t, 120.0, r.SubtypeFirstSeen[2].Amount, 1e-9)
}

func TestWeakBaselineWarns(t *testing.T) {
	s := sampleWithUser()

	b, err := BuildBaseline(s, uid, "2025-05", 3)
	require.NoError(t, err)
	assert.True(t, b.Weak())
	assert.Nil(t, b.TotalMean)
	assert.True(t, billerr.IsInsufficientHistory(b.HistoryErr))

	r := detect(t, s, "2025-05")
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "weak baseline")
	assert.Nil(t, r.Overall.BaselineTotalMean)
	assert.Nil(t, r.Overall.TotalDelta)

	// every material category is new
	for _, a := range r.Anomalies {
		assert.Equal(t, ReasonFirstSeen, a.Reasons[0])
	}
}

func TestBaselineWindowSelection(t *testing.T) {
	b := storetest.New().User(uid, 1)
	for _, p := range []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"} {
		b.Bill(uid, p, storetest.I(normalizer.CategoryVoice, 10))
	}
	s := b.Store()

	base, err := BuildBaseline(s, uid, "2025-05", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02", "2025-03", "2025-04"}, base.Periods)
	assert.Len(t, base.BillIDs, 3)

	base, err = BuildBaseline(s, uid, "2025-02", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, base.Window)
	assert.Equal(t, []string{"2025-01"}, base.Periods)
}

func TestBaselineMissingBill(t *testing.T) {
	_, err := BuildBaseline(sampleWithUser(), uid, "2030-01", 3)
	require.Error(t, err)
	assert.True(t, billerr.IsNotFound(err))
}

func TestObservedAtZeroIsNotFirstSeen(t *testing.T) {
	b := storetest.New().User(uid, 1)
	for _, p := range []string{"2025-01", "2025-02"} {
		b.Bill(uid, p, storetest.S(normalizer.CategoryVAS, "music", 0))
	}
	b.Bill(uid, "2025-03", storetest.S(normalizer.CategoryVAS, "music", 20))

	base, err := BuildBaseline(b.Store(), uid, "2025-03", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, base.Count(normalizer.CategoryVAS))
	assert.Equal(t, 0, base.Count(normalizer.CategoryRoaming))

	r := detect(t, b.Store(), "2025-03")
	a := findAnomaly(r, normalizer.CategoryVAS)
	require.NotNil(t, a)
	require.Len(t, a.Reasons, 2)
	assert.Contains(t, a.Reasons[0], "unbounded")
	assert.Equal(t, ReasonSensitiveNew, a.Reasons[1])
	assert.Nil(t, a.PctDelta)
}

func TestPercentSpike(t *testing.T) {
	b := storetest.New().User(uid, 1)
	b.Bill(uid, "2025-01", storetest.I(normalizer.CategoryVoice, 50))
	b.Bill(uid, "2025-02", storetest.I(normalizer.CategoryVoice, 50))
	b.Bill(uid, "2025-03", storetest.I(normalizer.CategoryVoice, 100))

	r := detect(t, b.Store(), "2025-03")
	a := findAnomaly(r, normalizer.CategoryVoice)
	require.NotNil(t, a)
	assert.Nil(t, a.Z)
	assert.Nil(t, a.BaselineStd)
	require.NotNil(t, a.PctDelta)
	assert.InDelta(t, 1.0, *a.PctDelta, 1e-9)
	assert.Equal(t, []string{"change 100% (>= 80%)"}, a.Reasons)
	assert.Equal(t, SeverityMedium, a.Severity)
}

func TestDiscountLapseNote(t *testing.T) {
	b := storetest.New().User(uid, 1)
	b.Bill(uid, "2025-01", storetest.I(normalizer.CategoryDiscount, -40))
	b.Bill(uid, "2025-02", storetest.I(normalizer.CategoryDiscount, -60))
	b.Bill(uid, "2025-03", storetest.I(normalizer.CategoryDiscount, 10))

	r := detect(t, b.Store(), "2025-03")
	a := findAnomaly(r, normalizer.CategoryDiscount)
	require.NotNil(t, a)
	assert.Equal(t, ReasonDiscountLapsed, a.Reasons[len(a.Reasons)-1])
}

func TestDetectIsIdempotent(t *testing.T) {
	s := sampleWithUser()

	first, err := json.Marshal(detect(t, s, "2025-08"))
	require.NoError(t, err)
	second, err := json.Marshal(detect(t, s, "2025-08"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSuggestedActionDefault(t *testing.T) {
	assert.Equal(t, DefaultAction, SuggestedAction("gadget"))
	assert.NotEqual(t, DefaultAction, SuggestedAction(normalizer.CategoryVAS))
}

func TestNewDetectorDefaults(t *testing.T) {
	d := NewDetector(DetectorConfig{NoiseFloor: -1})
	assert.Equal(t, DefaultDetectorConfig(), d.Config())

	// an explicit zero floor is kept
	d = NewDetector(DetectorConfig{})
	assert.Equal(t, 0.0, d.Config().NoiseFloor)
	assert.Equal(t, DefaultDetectorConfig().ZThreshold, d.Config().ZThreshold)
}

func TestZeroNoiseFloorFlagsSmallDeltas(t *testing.T) {
	b := storetest.New().User(uid, 1)
	for _, p := range []string{"2025-01", "2025-02", "2025-03"} {
		b.Bill(uid, p,
			storetest.S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
			storetest.S(normalizer.CategoryData, "overage", 1),
		)
	}
	b.Bill(uid, "2025-04",
		storetest.S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
		storetest.S(normalizer.CategoryData, "overage", 4),
	)
	s := b.Store()
	base, err := BuildBaseline(s, uid, "2025-04", DefaultWindow)
	require.NoError(t, err)
	bill, err := s.BillFor(uid, "2025-04")
	require.NoError(t, err)

	floored := NewDetector(DefaultDetectorConfig()).Detect(s.LineItems(bill.BillID), base)
	assert.Nil(t, findAnomaly(floored, normalizer.CategoryData))

	cfg := DefaultDetectorConfig()
	cfg.NoiseFloor = 0
	unfloored := NewDetector(cfg).Detect(s.LineItems(bill.BillID), base)
	assert.NotNil(t, findAnomaly(unfloored, normalizer.CategoryData))
}

// sampleWithUser rebuilds the shared sample under uid
func sampleWithUser() *store.Store {
	t := storetest.Sample().Tables()
	for i := range t.Users {
		t.Users[i].UserID = uid
	}
	for i := range t.BillHeaders {
		t.BillHeaders[i].UserID = uid
	}
	for i := range t.Usage {
		t.Usage[i].UserID = uid
	}
	return store.New(t)
}
