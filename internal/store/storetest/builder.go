// Package storetest builds in-memory snapshots for tests.
package storetest

import (
	"fmt"
	"time"

	"github.com/lvonguyen/bill-insights/internal/normalizer"
	"github.com/lvonguyen/bill-insights/internal/store"
)

// Item is a line item shorthand used by Builder.Bill
type Item struct {
	Category    normalizer.Category
	Subtype     string
	Description string // defaults to "<category> <subtype>"
	Amount      float64
}

// I returns an item with an unknown subtype
func I(cat normalizer.Category, amount float64) Item {
	return Item{Category: cat, Subtype: "unknown", Amount: amount}
}

// S returns an item with a subtype
func S(cat normalizer.Category, subtype string, amount float64) Item {
	return Item{Category: cat, Subtype: subtype, Amount: amount}
}

// D returns an item with a subtype and a description
func D(cat normalizer.Category, subtype, description string, amount float64) Item {
	return Item{Category: cat, Subtype: subtype, Description: description, Amount: amount}
}

// Builder accumulates snapshot tables
type Builder struct {
	tables   store.Tables
	nextBill int
	nextItem int
}

// New returns an empty builder
func New() *Builder {
	return &Builder{nextBill: 1, nextItem: 1}
}

// User adds a retail subscriber on the given plan
func (b *Builder) User(userID, planID int) *Builder {
	return b.UserOfType(userID, planID, "retail")
}

// UserOfType adds a subscriber of a customer type
func (b *Builder) UserOfType(userID, planID int, typ string) *Builder {
	b.tables.Users = append(b.tables.Users, normalizer.User{
		UserID:        userID,
		Name:          fmt.Sprintf("user-%d", userID),
		CurrentPlanID: planID,
		Type:          typ,
		MSISDN:        fmt.Sprintf("90530%07d", userID),
	})
	return b
}

// Plan adds a catalog plan
func (b *Builder) Plan(p normalizer.Plan) *Builder {
	b.tables.Plans = append(b.tables.Plans, p)
	return b
}

// AddOn adds an add-on pack
func (b *Builder) AddOn(a normalizer.AddOn) *Builder {
	b.tables.AddOns = append(b.tables.AddOns, a)
	return b
}

// VAS adds a value-added service offer
func (b *Builder) VAS(v normalizer.VASOffer) *Builder {
	b.tables.VAS = append(b.tables.VAS, v)
	return b
}

// PremiumSMS adds a premium SMS short code
func (b *Builder) PremiumSMS(p normalizer.PremiumSMSOffer) *Builder {
	b.tables.PremiumSMS = append(b.tables.PremiumSMS, p)
	return b
}

// Bill adds a bill for a YYYY-MM period. The header total is the sum of all
// item amounts, tax included.
func (b *Builder) Bill(userID int, period string, items ...Item) *Builder {
	b.AddBill(userID, period, items...)
	return b
}

// AddBill is Bill returning the new bill id
func (b *Builder) AddBill(userID int, period string, items ...Item) int {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		panic(fmt.Sprintf("storetest: bad period %q", period))
	}
	end := start.AddDate(0, 1, -1)

	id := b.nextBill
	b.nextBill++

	var total float64
	for _, it := range items {
		total += it.Amount
		desc := it.Description
		if desc == "" {
			desc = fmt.Sprintf("%s %s", it.Category, it.Subtype)
		}
		b.tables.BillItems = append(b.tables.BillItems, normalizer.LineItem{
			BillID:      id,
			ItemID:      b.nextItem,
			Category:    it.Category,
			Subtype:     it.Subtype,
			Description: desc,
			Amount:      it.Amount,
			UnitPrice:   it.Amount,
			Quantity:    1,
			TaxRate:     0.18,
			CreatedAt:   end,
		})
		b.nextItem++
	}

	b.tables.BillHeaders = append(b.tables.BillHeaders, normalizer.BillHeader{
		BillID:      id,
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		IssueDate:   end.AddDate(0, 0, 1),
		TotalAmount: total,
		Currency:    "TRY",
	})
	return id
}

// Usage adds one daily usage record. date is YYYY-MM-DD.
func (b *Builder) Usage(userID int, date string, mb, minutes float64, sms int, roamingMB float64) *Builder {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(fmt.Sprintf("storetest: bad date %q", date))
	}
	b.tables.Usage = append(b.tables.Usage, normalizer.UsageRecord{
		UserID:      userID,
		Date:        d,
		MBUsed:      mb,
		MinutesUsed: minutes,
		SMSUsed:     sms,
		RoamingMB:   roamingMB,
	})
	return b
}

// Tables returns the accumulated tables
func (b *Builder) Tables() store.Tables {
	return b.tables
}

// Store builds an indexed store
func (b *Builder) Store() *store.Store {
	return store.New(b.tables)
}

// Catalog plan and add-on ids used by Sample.
const (
	PlanBasic   = 1
	PlanPlus    = 2
	PlanMax     = 3
	AddOnData5  = 101
	AddOnVoice  = 102
	AddOnData10 = 103
	SampleUser  = 1001
	SampleVAS   = 1
	SampleCode  = "7979"
)

// Sample builds a small but complete snapshot: three plans, three add-ons, a
// VAS and a premium short code, and one subscriber on PlanBasic with four
// monthly bills (2025-05 to 2025-08).
//
// Every bill is consistent with its usage: data overage is billed at the plan
// rate and tax is 18% of the pre-tax subtotal. August adds a first-time
// roaming charge and a premium SMS charge.
func Sample() *Builder {
	b := New().
		Plan(normalizer.Plan{PlanID: PlanBasic, Name: "Basic 10GB", Type: "postpaid", QuotaGB: 10, QuotaMin: 500, QuotaSMS: 100,
			MonthlyPrice: 200, OverageGBRate: 40, OverageMinRate: 1, OverageSMSRate: 0.5}).
		Plan(normalizer.Plan{PlanID: PlanPlus, Name: "Plus 20GB", Type: "postpaid", QuotaGB: 20, QuotaMin: 1000, QuotaSMS: 500,
			MonthlyPrice: 260, OverageGBRate: 30, OverageMinRate: 0.8, OverageSMSRate: 0.4}).
		Plan(normalizer.Plan{PlanID: PlanMax, Name: "Max 50GB", Type: "postpaid", QuotaGB: 50, QuotaMin: 3000, QuotaSMS: 1000,
			MonthlyPrice: 400, OverageGBRate: 20, OverageMinRate: 0.5, OverageSMSRate: 0.25}).
		AddOn(normalizer.AddOn{AddOnID: AddOnData5, Name: "Data 5GB", Type: "data", ExtraGB: 5, Price: 50}).
		AddOn(normalizer.AddOn{AddOnID: AddOnVoice, Name: "Voice 500", Type: "voice", ExtraMin: 500, Price: 30}).
		AddOn(normalizer.AddOn{AddOnID: AddOnData10, Name: "Data 10GB", Type: "data", ExtraGB: 10, Price: 90}).
		VAS(normalizer.VASOffer{VASID: SampleVAS, Name: "Music+", MonthlyFee: 29.9, Provider: "Melodi Media"}).
		VAS(normalizer.VASOffer{VASID: 2, Name: "Cloud 50GB", MonthlyFee: 19.9, Provider: "Bulut AS"}).
		PremiumSMS(normalizer.PremiumSMSOffer{Shortcode: SampleCode, Provider: "GameHub", UnitPrice: 5}).
		User(SampleUser, PlanBasic)

	// May to July: 10GB each, no overage. subtotal 229.9, tax 41.38
	for _, period := range []string{"2025-05", "2025-06", "2025-07"} {
		b.Bill(SampleUser, period,
			S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
			D(normalizer.CategoryVAS, "music", "Music+ monthly fee", 29.9),
			I(normalizer.CategoryTax, 41.38),
		)
		b.Usage(SampleUser, period+"-10", 10*1024, 300, 50, 0)
	}

	// August: 14.5GB (4.5GB overage at 40 = 180), roaming 120, premium SMS 25.
	// subtotal 200+180+29.9+120+25 = 554.9, tax 99.88
	b.Bill(SampleUser, "2025-08",
		S(normalizer.CategoryOneOff, normalizer.SubtypeBaseFee, 200),
		S(normalizer.CategoryData, "overage", 180),
		D(normalizer.CategoryVAS, "music", "Music+ monthly fee", 29.9),
		S(normalizer.CategoryRoaming, "eu", 120),
		D(normalizer.CategoryPremiumSMS, "game", SampleCode+" 5 SMS", 25),
		I(normalizer.CategoryTax, 99.88),
	)
	b.Usage(SampleUser, "2025-08-05", 8*1024, 200, 40, 0)
	b.Usage(SampleUser, "2025-08-20", 6.5*1024, 150, 30, 512)

	return b
}
