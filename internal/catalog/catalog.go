// Package catalog resolves VAS and premium SMS line items to the catalog
// offers that billed them.
package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/lvonguyen/bill-insights/internal/money"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Source provides the service catalogs
type Source interface {
	VASCatalog() []normalizer.VASOffer
	PremiumSMSCatalog() []normalizer.PremiumSMSOffer
}

// Match links one line item to its catalog offer
type Match struct {
	ItemID    int                 `json:"item_id"`
	Category  normalizer.Category `json:"category"`
	Service   string              `json:"service"` // VAS name or short code
	Provider  string              `json:"provider"`
	ListPrice float64             `json:"list_price"`
	Amount    float64             `json:"amount"`
}

// Resolver matches line items against the catalogs
type Resolver struct {
	vas     []normalizer.VASOffer
	premium map[string]normalizer.PremiumSMSOffer
}

// NewResolver indexes src's catalogs
func NewResolver(src Source) *Resolver {
	vas := append([]normalizer.VASOffer{}, src.VASCatalog()...)
	// longest name first so "Music+ Family" wins over "Music+"
	sort.SliceStable(vas, func(i, j int) bool {
		return len(vas[i].Name) > len(vas[j].Name)
	})

	premium := make(map[string]normalizer.PremiumSMSOffer)
	for _, p := range src.PremiumSMSCatalog() {
		premium[strings.TrimSpace(p.Shortcode)] = p
	}
	return &Resolver{vas: vas, premium: premium}
}

// Resolve returns a match for every VAS and premium SMS item it can place,
// in item order. Items of other categories and unknown services are skipped.
func (r *Resolver) Resolve(items []normalizer.LineItem) []Match {
	matches := []Match{}
	for _, it := range items {
		var m *Match
		switch it.Category {
		case normalizer.CategoryVAS:
			m = r.vasMatch(it)
		case normalizer.CategoryPremiumSMS:
			m = r.premiumMatch(it)
		}
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}

// vasMatch looks for a name prefix, then for a unique monthly fee equal to
// the item's unit price
func (r *Resolver) vasMatch(it normalizer.LineItem) *Match {
	desc := strings.ToLower(strings.TrimSpace(it.Description))
	for _, v := range r.vas {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		if name != "" && strings.HasPrefix(desc, name) {
			return vasResult(it, v)
		}
	}

	var found *normalizer.VASOffer
	for i := range r.vas {
		if !samePrice(r.vas[i].MonthlyFee, it.UnitPrice) {
			continue
		}
		if found != nil {
			return nil
		}
		found = &r.vas[i]
	}
	if found == nil {
		return nil
	}
	return vasResult(it, *found)
}

// premiumMatch uses the first word of the description, then the subtype, as
// the short code
func (r *Resolver) premiumMatch(it normalizer.LineItem) *Match {
	var keys []string
	if f := strings.Fields(it.Description); len(f) > 0 {
		keys = append(keys, f[0])
	}
	keys = append(keys, strings.TrimSpace(it.Subtype))

	for _, k := range keys {
		p, ok := r.premium[k]
		if !ok {
			continue
		}
		return &Match{
			ItemID:    it.ItemID,
			Category:  it.Category,
			Service:   p.Shortcode,
			Provider:  p.Provider,
			ListPrice: p.UnitPrice,
			Amount:    money.Cents(it.Amount),
		}
	}
	return nil
}

func vasResult(it normalizer.LineItem, v normalizer.VASOffer) *Match {
	return &Match{
		ItemID:    it.ItemID,
		Category:  it.Category,
		Service:   v.Name,
		Provider:  v.Provider,
		ListPrice: v.MonthlyFee,
		Amount:    money.Cents(it.Amount),
	}
}

func samePrice(a, b float64) bool {
	return a > 0 && math.Abs(a-b) < 0.005
}
