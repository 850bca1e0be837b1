package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"

	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

var snapshotSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		name TEXT,
		current_plan_id INTEGER,
		type TEXT,
		msisdn TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		plan_id INTEGER PRIMARY KEY,
		plan_name TEXT,
		type TEXT,
		quota_gb REAL,
		quota_min REAL,
		quota_sms REAL,
		monthly_price REAL,
		overage_gb REAL,
		overage_min REAL,
		overage_sms REAL
	)`,
	`CREATE TABLE IF NOT EXISTS add_on_packs (
		addon_id INTEGER PRIMARY KEY,
		name TEXT,
		type TEXT,
		extra_gb REAL,
		extra_min REAL,
		extra_sms REAL,
		price REAL
	)`,
	`CREATE TABLE IF NOT EXISTS vas_catalog (
		vas_id INTEGER PRIMARY KEY,
		name TEXT,
		monthly_fee REAL,
		provider TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS premium_sms_catalog (
		shortcode TEXT,
		provider TEXT,
		unit_price REAL
	)`,
	`CREATE TABLE IF NOT EXISTS bill_headers (
		bill_id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		issue_date TEXT,
		total_amount REAL,
		currency TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS bill_items (
		bill_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		subtype TEXT,
		description TEXT,
		amount REAL,
		unit_price REAL,
		quantity REAL,
		tax_rate REAL,
		created_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS usage_daily (
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		mb_used REAL,
		minutes_used REAL,
		sms_used INTEGER,
		roaming_mb REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bill_items_bill ON bill_items(bill_id)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_user_date ON usage_daily(user_id, date)`,
}

// SaveSQLite writes the tables into a SQLite snapshot file in one transaction
func SaveSQLite(ctx context.Context, path string, t Tables) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	for _, stmt := range snapshotSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertAll(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, t Tables) error {
	for _, u := range t.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (user_id, name, current_plan_id, type, msisdn) VALUES (?, ?, ?, ?, ?)`,
			u.UserID, u.Name, u.CurrentPlanID, u.Type, u.MSISDN); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", u.UserID, err)
		}
	}
	for _, p := range t.Plans {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plans (plan_id, plan_name, type, quota_gb, quota_min, quota_sms, monthly_price, overage_gb, overage_min, overage_sms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.PlanID, p.Name, p.Type, p.QuotaGB, p.QuotaMin, p.QuotaSMS, p.MonthlyPrice,
			p.OverageGBRate, p.OverageMinRate, p.OverageSMSRate); err != nil {
			return fmt.Errorf("failed to insert plan %d: %w", p.PlanID, err)
		}
	}
	for _, a := range t.AddOns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO add_on_packs (addon_id, name, type, extra_gb, extra_min, extra_sms, price) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.AddOnID, a.Name, a.Type, a.ExtraGB, a.ExtraMin, a.ExtraSMS, a.Price); err != nil {
			return fmt.Errorf("failed to insert add-on %d: %w", a.AddOnID, err)
		}
	}
	for _, v := range t.VAS {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vas_catalog (vas_id, name, monthly_fee, provider) VALUES (?, ?, ?, ?)`,
			v.VASID, v.Name, v.MonthlyFee, v.Provider); err != nil {
			return fmt.Errorf("failed to insert vas %d: %w", v.VASID, err)
		}
	}
	for _, p := range t.PremiumSMS {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO premium_sms_catalog (shortcode, provider, unit_price) VALUES (?, ?, ?)`,
			p.Shortcode, p.Provider, p.UnitPrice); err != nil {
			return fmt.Errorf("failed to insert premium sms %s: %w", p.Shortcode, err)
		}
	}
	for _, b := range t.BillHeaders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_headers (bill_id, user_id, period_start, period_end, issue_date, total_amount, currency) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.BillID, b.UserID, formatTime(b.PeriodStart), formatTime(b.PeriodEnd), formatTime(b.IssueDate),
			b.TotalAmount, b.Currency); err != nil {
			return fmt.Errorf("failed to insert bill %d: %w", b.BillID, err)
		}
	}
	for _, it := range t.BillItems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_items (bill_id, item_id, category, subtype, description, amount, unit_price, quantity, tax_rate, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.BillID, it.ItemID, string(it.Category), it.Subtype, it.Description, it.Amount,
			it.UnitPrice, it.Quantity, it.TaxRate, formatTime(it.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert item %d/%d: %w", it.BillID, it.ItemID, err)
		}
	}
	for _, u := range t.Usage {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO usage_daily (user_id, date, mb_used, minutes_used, sms_used, roaming_mb) VALUES (?, ?, ?, ?, ?, ?)`,
			u.UserID, formatTime(u.Date), u.MBUsed, u.MinutesUsed, u.SMSUsed, u.RoamingMB); err != nil {
			return fmt.Errorf("failed to insert usage %d: %w", u.UserID, err)
		}
	}
	return nil
}

// LoadSQLite reads a snapshot written by SaveSQLite
func LoadSQLite(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to snapshot: %w", err)
	}

	var t Tables
	if t.Users, err = queryAll(ctx, db, `SELECT user_id, name, current_plan_id, type, msisdn FROM users ORDER BY rowid`, scanUser); err != nil {
		return nil, err
	}
	if t.Plans, err = queryAll(ctx, db, `SELECT plan_id, plan_name, type, quota_gb, quota_min, quota_sms, monthly_price, overage_gb, overage_min, overage_sms FROM plans ORDER BY rowid`, scanPlan); err != nil {
		return nil, err
	}
	if t.AddOns, err = queryAll(ctx, db, `SELECT addon_id, name, type, extra_gb, extra_min, extra_sms, price FROM add_on_packs ORDER BY rowid`, scanAddOn); err != nil {
		return nil, err
	}
	if t.VAS, err = queryAll(ctx, db, `SELECT vas_id, name, monthly_fee, provider FROM vas_catalog ORDER BY rowid`, scanVAS); err != nil {
		return nil, err
	}
	if t.PremiumSMS, err = queryAll(ctx, db, `SELECT shortcode, provider, unit_price FROM premium_sms_catalog ORDER BY rowid`, scanPremiumSMS); err != nil {
		return nil, err
	}
	if t.BillHeaders, err = queryAll(ctx, db, `SELECT bill_id, user_id, period_start, period_end, issue_date, total_amount, currency FROM bill_headers ORDER BY rowid`, scanBillHeader); err != nil {
		return nil, err
	}
	if t.BillItems, err = queryAll(ctx, db, `SELECT bill_id, item_id, category, subtype, description, amount, unit_price, quantity, tax_rate, created_at FROM bill_items ORDER BY rowid`, scanLineItem); err != nil {
		return nil, err
	}
	if t.Usage, err = queryAll(ctx, db, `SELECT user_id, date, mb_used, minutes_used, sms_used, roaming_mb FROM usage_daily ORDER BY rowid`, scanUsage); err != nil {
		return nil, err
	}

	return New(t), nil
}

func queryAll[T any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanUser(rows *sql.Rows) (u normalizer.User, err error) {
	err = rows.Scan(&u.UserID, &u.Name, &u.CurrentPlanID, &u.Type, &u.MSISDN)
	return u, err
}

func scanPlan(rows *sql.Rows) (p normalizer.Plan, err error) {
	err = rows.Scan(&p.PlanID, &p.Name, &p.Type, &p.QuotaGB, &p.QuotaMin, &p.QuotaSMS,
		&p.MonthlyPrice, &p.OverageGBRate, &p.OverageMinRate, &p.OverageSMSRate)
	return p, err
}

func scanAddOn(rows *sql.Rows) (a normalizer.AddOn, err error) {
	err = rows.Scan(&a.AddOnID, &a.Name, &a.Type, &a.ExtraGB, &a.ExtraMin, &a.ExtraSMS, &a.Price)
	return a, err
}

func scanVAS(rows *sql.Rows) (v normalizer.VASOffer, err error) {
	err = rows.Scan(&v.VASID, &v.Name, &v.MonthlyFee, &v.Provider)
	return v, err
}

func scanPremiumSMS(rows *sql.Rows) (p normalizer.PremiumSMSOffer, err error) {
	err = rows.Scan(&p.Shortcode, &p.Provider, &p.UnitPrice)
	return p, err
}

func scanBillHeader(rows *sql.Rows) (b normalizer.BillHeader, err error) {
	var start, end, issue string
	if err = rows.Scan(&b.BillID, &b.UserID, &start, &end, &issue, &b.TotalAmount, &b.Currency); err != nil {
		return b, err
	}
	if b.PeriodStart, err = parseOptionalTime(start); err != nil {
		return b, err
	}
	if b.PeriodEnd, err = parseOptionalTime(end); err != nil {
		return b, err
	}
	b.IssueDate, err = parseOptionalTime(issue)
	return b, err
}

func scanLineItem(rows *sql.Rows) (it normalizer.LineItem, err error) {
	var category, created string
	if err = rows.Scan(&it.BillID, &it.ItemID, &category, &it.Subtype, &it.Description,
		&it.Amount, &it.UnitPrice, &it.Quantity, &it.TaxRate, &created); err != nil {
		return it, err
	}
	it.Category = normalizer.Category(category)
	it.CreatedAt, err = parseOptionalTime(created)
	return it, err
}

func scanUsage(rows *sql.Rows) (u normalizer.UsageRecord, err error) {
	var date string
	if err = rows.Scan(&u.UserID, &date, &u.MBUsed, &u.MinutesUsed, &u.SMSUsed, &u.RoamingMB); err != nil {
		return u, err
	}
	u.Date, err = parseOptionalTime(date)
	return u, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseOptionalTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(v)
}
