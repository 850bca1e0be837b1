package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
	"github.com/lvonguyen/bill-insights/internal/store"
	"github.com/lvonguyen/bill-insights/internal/store/storetest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, store.FileUsers, "user_id,name,current_plan_id,type,msisdn\n1,Ayse,10,retail,905300000001\n")
	writeFile(t, dir, store.FilePlans, "plan_id,plan_name,type,quota_gb,quota_min,quota_sms,monthly_price,overage_gb,overage_min,overage_sms\n"+
		"10,Basic,postpaid,10,500,100,200,40,1,0.5\n")
	writeFile(t, dir, store.FileBillHeaders, "bill_id,user_id,period_start,period_end,issue_date,total_amount,currency\n"+
		"2,1,2025-08-01,2025-08-31,2025-09-01,271.28,TRY\n"+
		"1,1,2025-07-01,2025-07-31,2025-08-01,271.28,TRY\n")
	writeFile(t, dir, store.FileBillItems, "bill_id,item_id,category,subtype,description,amount,unit_price,quantity,tax_rate,created_at\n"+
		"1,2,VAS,Music,Music+,29.9,29.9,1,0.18,2025-07-31\n"+
		"1,1,one_off,base_fee,Monthly fee,200,200,1,0.18,2025-07-31\n"+
		"1,3,tax,,KDV,41.38,41.38,1,0,2025-07-31\n"+
		"2,4,one_off,base_fee,Monthly fee,200,200,1,0.18,2025-08-31\n"+
		"2,5,vas,music,Music+,29.9,29.9,1,0.18,2025-08-31\n"+
		"2,6,tax,,KDV,41.38,41.38,1,0,2025-08-31\n")
	writeFile(t, dir, store.FileUsage, "user_id,date,mb_used,minutes_used,sms_used,roaming_mb\n"+
		"1,2025-07-31,1024,10,2,0\n"+
		"1,2025-08-01,2048,5,1,0\n"+
		"1,2025-08-31,1024,5,1,100\n")
	return dir
}

func TestLoadCSV(t *testing.T) {
	s, err := store.LoadCSV(writeSnapshot(t))
	require.NoError(t, err)

	u, err := s.User(1)
	require.NoError(t, err)
	assert.Equal(t, 10, u.CurrentPlanID)

	p, err := s.Plan(10)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, p.OverageGBRate, 1e-9)

	assert.Equal(t, []string{"2025-07", "2025-08"}, s.Periods(1))

	items := s.LineItems(1)
	require.Len(t, items, 3)
	assert.Equal(t, 1, items[0].ItemID)
	assert.Equal(t, normalizer.CategoryVAS, items[1].Category)
	assert.Equal(t, "music", items[1].Subtype)
	assert.Equal(t, "unknown", items[2].Subtype)

	b, err := s.BillFor(1, "2025-08")
	require.NoError(t, err)
	usage := s.UsageForBill(b)
	assert.InDelta(t, 3.0, usage.GB, 1e-9)
	assert.Equal(t, 2, usage.SMS)
	assert.InDelta(t, 100.0, usage.RoamingMB, 1e-9)

	// optional catalogs are absent
	assert.Empty(t, s.AddOns())
	assert.Empty(t, s.VASCatalog())
}

func TestLoadCSVMissingRequiredFile(t *testing.T) {
	dir := writeSnapshot(t)
	require.NoError(t, os.Remove(filepath.Join(dir, store.FileBillItems)))

	_, err := store.LoadCSV(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), store.FileBillItems)
}

func TestLoadCSVBadNumber(t *testing.T) {
	dir := writeSnapshot(t)
	writeFile(t, dir, store.FileUsers, "user_id,name,current_plan_id\nabc,x,1\n")

	_, err := store.LoadCSV(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLookupsReturnNotFound(t *testing.T) {
	s := storetest.Sample().Store()

	_, err := s.BillFor(storetest.SampleUser, "1999-01")
	assert.True(t, billerr.IsNotFound(err))

	_, err = s.User(42)
	assert.True(t, billerr.IsNotFound(err))

	_, err = s.AddOn(9999)
	assert.True(t, billerr.IsNotFound(err))

	_, err = s.Bill(9999)
	assert.True(t, billerr.IsNotFound(err))
}

func TestUsageBetweenIsInclusive(t *testing.T) {
	s := storetest.Sample().Store()

	start := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	assert.Len(t, s.UsageBetween(storetest.SampleUser, start, end), 2)
	assert.Len(t, s.UsageBetween(storetest.SampleUser, start.AddDate(0, 0, 1), end), 1)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	want := storetest.Sample().Tables()
	path := filepath.Join(t.TempDir(), "snap", "bills.db")

	require.NoError(t, store.SaveSQLite(ctx, path, want))

	s, err := store.LoadSQLite(ctx, path)
	require.NoError(t, err)

	got := s.Tables()
	assert.Equal(t, want.Users, got.Users)
	assert.Equal(t, want.Plans, got.Plans)
	assert.Equal(t, want.AddOns, got.AddOns)
	require.Len(t, got.BillHeaders, len(want.BillHeaders))
	require.Len(t, got.BillItems, len(want.BillItems))
	require.Len(t, got.Usage, len(want.Usage))

	for i := range want.BillHeaders {
		assert.Equal(t, want.BillHeaders[i].BillID, got.BillHeaders[i].BillID)
		assert.True(t, want.BillHeaders[i].PeriodStart.Equal(got.BillHeaders[i].PeriodStart))
		assert.InDelta(t, want.BillHeaders[i].TotalAmount, got.BillHeaders[i].TotalAmount, 1e-9)
	}

	b, err := s.BillFor(storetest.SampleUser, "2025-08")
	require.NoError(t, err)
	assert.InDelta(t, 14.5, s.UsageForBill(b).GB, 1e-9)
}

func TestLoadSQLiteMissingFile(t *testing.T) {
	_, err := store.LoadSQLite(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
}
