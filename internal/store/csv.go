package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Snapshot file names inside a data directory
const (
	FileUsers       = "users.csv"
	FilePlans       = "plans.csv"
	FileAddOns      = "add_on_packs.csv"
	FileVAS         = "vas_catalog.csv"
	FilePremiumSMS  = "premium_sms_catalog.csv"
	FileBillHeaders = "bill_headers.csv"
	FileBillItems   = "bill_items.csv"
	FileUsage       = "usage_daily.csv"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// LoadCSV reads a snapshot directory. Users, plans, bill headers, bill items
// and daily usage are required; the add-on, VAS and premium SMS catalogs are optional.
func LoadCSV(dir string) (*Store, error) {
	var t Tables
	var err error

	if t.Users, err = readTable(dir, FileUsers, true, parseUser); err != nil {
		return nil, err
	}
	if t.Plans, err = readTable(dir, FilePlans, true, parsePlan); err != nil {
		return nil, err
	}
	if t.BillHeaders, err = readTable(dir, FileBillHeaders, true, parseBillHeader); err != nil {
		return nil, err
	}
	if t.BillItems, err = readTable(dir, FileBillItems, true, parseLineItem); err != nil {
		return nil, err
	}
	if t.Usage, err = readTable(dir, FileUsage, true, parseUsage); err != nil {
		return nil, err
	}
	if t.AddOns, err = readTable(dir, FileAddOns, false, parseAddOn); err != nil {
		return nil, err
	}
	if t.VAS, err = readTable(dir, FileVAS, false, parseVAS); err != nil {
		return nil, err
	}
	if t.PremiumSMS, err = readTable(dir, FilePremiumSMS, false, parsePremiumSMS); err != nil {
		return nil, err
	}

	return New(t), nil
}

// row gives by-name access to one CSV record
type row struct {
	cols   map[string]int
	values []string
}

// str returns the first non-empty value among the named columns
func (r row) str(names ...string) string {
	for _, n := range names {
		if i, ok := r.cols[n]; ok && i < len(r.values) {
			if v := strings.TrimSpace(r.values[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (r row) asFloat(names ...string) (float64, error) {
	v := r.str(names...)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", names[0], err)
	}
	return f, nil
}

func (r row) asInt(names ...string) (int, error) {
	f, err := r.asFloat(names...)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (r row) asTime(names ...string) (time.Time, error) {
	v := r.str(names...)
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(v)
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func readTable[T any](dir, name string, required bool, parse func(row) (T, error)) ([]T, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var out []T
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		v, err := parse(row{cols: cols, values: rec})
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		out = append(out, v)
	}

	return out, nil
}

func parseUser(r row) (u normalizer.User, err error) {
	if u.UserID, err = r.asInt("user_id"); err != nil {
		return u, err
	}
	if u.CurrentPlanID, err = r.asInt("current_plan_id"); err != nil {
		return u, err
	}
	u.Name = r.str("name")
	u.Type = r.str("type")
	u.MSISDN = r.str("msisdn")
	return u, nil
}

func parsePlan(r row) (p normalizer.Plan, err error) {
	if p.PlanID, err = r.asInt("plan_id"); err != nil {
		return p, err
	}
	p.Name = r.str("plan_name", "name")
	p.Type = r.str("type")
	fields := []struct {
		dst   *float64
		names []string
	}{
		{&p.QuotaGB, []string{"quota_gb"}},
		{&p.QuotaMin, []string{"quota_min"}},
		{&p.QuotaSMS, []string{"quota_sms"}},
		{&p.MonthlyPrice, []string{"monthly_price"}},
		{&p.OverageGBRate, []string{"overage_gb_rate", "overage_gb"}},
		{&p.OverageMinRate, []string{"overage_min_rate", "overage_min"}},
		{&p.OverageSMSRate, []string{"overage_sms_rate", "overage_sms"}},
	}
	for _, f := range fields {
		if *f.dst, err = r.asFloat(f.names...); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseAddOn(r row) (a normalizer.AddOn, err error) {
	if a.AddOnID, err = r.asInt("addon_id"); err != nil {
		return a, err
	}
	a.Name = r.str("name")
	a.Type = r.str("type")
	if a.ExtraGB, err = r.asFloat("extra_gb"); err != nil {
		return a, err
	}
	if a.ExtraMin, err = r.asFloat("extra_min"); err != nil {
		return a, err
	}
	if a.ExtraSMS, err = r.asFloat("extra_sms"); err != nil {
		return a, err
	}
	if a.Price, err = r.asFloat("price"); err != nil {
		return a, err
	}
	return a, nil
}

func parseVAS(r row) (v normalizer.VASOffer, err error) {
	if v.VASID, err = r.asInt("vas_id"); err != nil {
		return v, err
	}
	v.Name = r.str("name")
	v.Provider = r.str("provider")
	if v.MonthlyFee, err = r.asFloat("monthly_fee"); err != nil {
		return v, err
	}
	return v, nil
}

func parsePremiumSMS(r row) (p normalizer.PremiumSMSOffer, err error) {
	p.Shortcode = r.str("shortcode")
	p.Provider = r.str("provider")
	if p.UnitPrice, err = r.asFloat("unit_price"); err != nil {
		return p, err
	}
	return p, nil
}

func parseBillHeader(r row) (b normalizer.BillHeader, err error) {
	if b.BillID, err = r.asInt("bill_id"); err != nil {
		return b, err
	}
	if b.UserID, err = r.asInt("user_id"); err != nil {
		return b, err
	}
	if b.PeriodStart, err = r.asTime("period_start"); err != nil {
		return b, err
	}
	if b.PeriodEnd, err = r.asTime("period_end"); err != nil {
		return b, err
	}
	if b.IssueDate, err = r.asTime("issue_date"); err != nil {
		return b, err
	}
	if b.TotalAmount, err = r.asFloat("total_amount"); err != nil {
		return b, err
	}
	b.Currency = r.str("currency")
	return b, nil
}

func parseLineItem(r row) (it normalizer.LineItem, err error) {
	if it.BillID, err = r.asInt("bill_id"); err != nil {
		return it, err
	}
	if it.ItemID, err = r.asInt("item_id"); err != nil {
		return it, err
	}
	it.Category = normalizer.NormalizeCategory(r.str("category"))
	it.Subtype = normalizer.NormalizeSubtype(r.str("subtype"))
	it.Description = r.str("description")
	if it.Amount, err = r.asFloat("amount"); err != nil {
		return it, err
	}
	if it.UnitPrice, err = r.asFloat("unit_price"); err != nil {
		return it, err
	}
	if it.Quantity, err = r.asFloat("quantity"); err != nil {
		return it, err
	}
	if it.TaxRate, err = r.asFloat("tax_rate"); err != nil {
		return it, err
	}
	if it.CreatedAt, err = r.asTime("created_at"); err != nil {
		return it, err
	}
	return it, nil
}

func parseUsage(r row) (u normalizer.UsageRecord, err error) {
	if u.UserID, err = r.asInt("user_id"); err != nil {
		return u, err
	}
	if u.Date, err = r.asTime("date"); err != nil {
		return u, err
	}
	if u.MBUsed, err = r.asFloat("mb_used"); err != nil {
		return u, err
	}
	if u.MinutesUsed, err = r.asFloat("minutes_used"); err != nil {
		return u, err
	}
	if u.SMSUsed, err = r.asInt("sms_used"); err != nil {
		return u, err
	}
	if u.RoamingMB, err = r.asFloat("roaming_mb"); err != nil {
		return u, err
	}
	return u, nil
}
