// Package store holds the read-only tabular snapshot the engine computes over.
//
// A Store is built once per process from a CSV directory or a SQLite snapshot
// and never mutated afterwards, so it is safe for concurrent readers.
package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/lvonguyen/bill-insights/internal/billerr"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Tables is the raw content of a snapshot
type Tables struct {
	Users       []normalizer.User
	Plans       []normalizer.Plan
	AddOns      []normalizer.AddOn
	VAS         []normalizer.VASOffer
	PremiumSMS  []normalizer.PremiumSMSOffer
	BillHeaders []normalizer.BillHeader
	BillItems   []normalizer.LineItem
	Usage       []normalizer.UsageRecord
}

// Store indexes Tables by user, period and bill
type Store struct {
	tables Tables

	users       map[int]normalizer.User
	plans       map[int]normalizer.Plan
	addOns      map[int]normalizer.AddOn
	bills       map[int]normalizer.BillHeader
	billsByUser map[int][]normalizer.BillHeader
	items       map[int][]normalizer.LineItem
	usage       map[int][]normalizer.UsageRecord
}

// New indexes the given tables. Category and subtype labels are normalized.
func New(t Tables) *Store {
	s := &Store{
		tables:      t,
		users:       make(map[int]normalizer.User, len(t.Users)),
		plans:       make(map[int]normalizer.Plan, len(t.Plans)),
		addOns:      make(map[int]normalizer.AddOn, len(t.AddOns)),
		bills:       make(map[int]normalizer.BillHeader, len(t.BillHeaders)),
		billsByUser: make(map[int][]normalizer.BillHeader),
		items:       make(map[int][]normalizer.LineItem),
		usage:       make(map[int][]normalizer.UsageRecord),
	}

	for _, u := range t.Users {
		s.users[u.UserID] = u
	}
	for _, p := range t.Plans {
		s.plans[p.PlanID] = p
	}
	for _, a := range t.AddOns {
		s.addOns[a.AddOnID] = a
	}

	for _, b := range t.BillHeaders {
		s.bills[b.BillID] = b
		s.billsByUser[b.UserID] = append(s.billsByUser[b.UserID], b)
	}
	for uid := range s.billsByUser {
		bills := s.billsByUser[uid]
		sort.SliceStable(bills, func(i, j int) bool {
			if !bills[i].PeriodStart.Equal(bills[j].PeriodStart) {
				return bills[i].PeriodStart.Before(bills[j].PeriodStart)
			}
			return bills[i].BillID < bills[j].BillID
		})
	}

	for i := range t.BillItems {
		it := t.BillItems[i]
		it.Category = normalizer.NormalizeCategory(string(it.Category))
		it.Subtype = normalizer.NormalizeSubtype(it.Subtype)
		s.items[it.BillID] = append(s.items[it.BillID], it)
	}
	for bid := range s.items {
		items := s.items[bid]
		sort.SliceStable(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	}

	for _, r := range t.Usage {
		s.usage[r.UserID] = append(s.usage[r.UserID], r)
	}
	for uid := range s.usage {
		recs := s.usage[uid]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	}

	return s
}

// Tables returns the snapshot the store was built from
func (s *Store) Tables() Tables {
	return s.tables
}

// User returns a subscriber by id
func (s *Store) User(userID int) (normalizer.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return normalizer.User{}, billerr.NotFound("user", userID)
	}
	return u, nil
}

// Users returns all subscribers in snapshot order
func (s *Store) Users() []normalizer.User {
	return s.tables.Users
}

// Plan returns a catalog plan by id
func (s *Store) Plan(planID int) (normalizer.Plan, error) {
	p, ok := s.plans[planID]
	if !ok {
		return normalizer.Plan{}, billerr.NotFound("plan", planID)
	}
	return p, nil
}

// Plans returns the plan catalog in snapshot order
func (s *Store) Plans() []normalizer.Plan {
	return s.tables.Plans
}

// AddOn returns an add-on pack by id
func (s *Store) AddOn(addOnID int) (normalizer.AddOn, error) {
	a, ok := s.addOns[addOnID]
	if !ok {
		return normalizer.AddOn{}, billerr.NotFound("addon", addOnID)
	}
	return a, nil
}

// AddOns returns the add-on catalog in snapshot order
func (s *Store) AddOns() []normalizer.AddOn {
	return s.tables.AddOns
}

// VASCatalog returns the value-added service catalog
func (s *Store) VASCatalog() []normalizer.VASOffer {
	return s.tables.VAS
}

// PremiumSMSCatalog returns the premium SMS short code catalog
func (s *Store) PremiumSMSCatalog() []normalizer.PremiumSMSOffer {
	return s.tables.PremiumSMS
}

// Bill returns a bill header by id
func (s *Store) Bill(billID int) (normalizer.BillHeader, error) {
	b, ok := s.bills[billID]
	if !ok {
		return normalizer.BillHeader{}, billerr.NotFound("bill", billID)
	}
	return b, nil
}

// BillsForUser returns a user's bills sorted by period ascending.
// The returned slice must not be modified.
func (s *Store) BillsForUser(userID int) []normalizer.BillHeader {
	return s.billsByUser[userID]
}

// BillFor returns the user's bill for a YYYY-MM period
func (s *Store) BillFor(userID int, period string) (normalizer.BillHeader, error) {
	for _, b := range s.billsByUser[userID] {
		if b.Period() == period {
			return b, nil
		}
	}
	return normalizer.BillHeader{}, billerr.NotFound("bill", periodKey(userID, period))
}

// Periods returns the distinct billed periods of a user, ascending
func (s *Store) Periods(userID int) []string {
	var periods []string
	seen := make(map[string]bool)
	for _, b := range s.billsByUser[userID] {
		p := b.Period()
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	return periods
}

// LineItems returns a bill's items ordered by item id.
// The returned slice must not be modified.
func (s *Store) LineItems(billID int) []normalizer.LineItem {
	return s.items[billID]
}

// UsageBetween returns a user's daily usage with start <= date <= end
func (s *Store) UsageBetween(userID int, start, end time.Time) []normalizer.UsageRecord {
	var out []normalizer.UsageRecord
	for _, r := range s.usage[userID] {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// UsageForBill summarizes the bill owner's usage within the bill period
func (s *Store) UsageForBill(b normalizer.BillHeader) normalizer.UsageSummary {
	return normalizer.SummarizeUsage(s.UsageBetween(b.UserID, b.PeriodStart, b.PeriodEnd))
}

func periodKey(userID int, period string) string {
	return fmt.Sprintf("%d/%s", userID, period)
}
