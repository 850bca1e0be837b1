package whatif

import (
	"fmt"
	"sort"

	"github.com/lvonguyen/bill-insights/internal/normalizer"
)

// Option sets one dimension of a Scenario
type Option struct {
	Label string
	Apply func(*Scenario)
}

// Axis is the set of values one scenario dimension can take
type Axis []Option

// Product returns the Cartesian product of the given sets. The first set
// varies slowest. An empty set yields an empty product.
func Product[T any](sets ...[]T) [][]T {
	out := [][]T{{}}
	for _, set := range sets {
		next := make([][]T, 0, len(out)*len(set))
		for _, prefix := range out {
			for _, v := range set {
				combo := make([]T, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		out = next
	}
	return out
}

// Grid expands axes into scenarios in product order
func Grid(axes ...Axis) []Scenario {
	sets := make([][]Option, len(axes))
	for i, a := range axes {
		sets[i] = a
	}

	combos := Product(sets...)
	scenarios := make([]Scenario, 0, len(combos))
	for _, combo := range combos {
		sc := Scenario{AddOns: []int{}}
		for _, o := range combo {
			o.Apply(&sc)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios
}

// PlanAxis selects each catalog plan in order
func PlanAxis(plans []normalizer.Plan) Axis {
	axis := make(Axis, 0, len(plans))
	for _, p := range plans {
		id := p.PlanID
		axis = append(axis, Option{
			Label: fmt.Sprintf("plan=%d", id),
			Apply: func(s *Scenario) { s.PlanID = &id },
		})
	}
	return axis
}

// AddOnAxis selects each add-on bundle in order
func AddOnAxis(bundles ...[]int) Axis {
	axis := make(Axis, 0, len(bundles))
	for _, b := range bundles {
		ids := append([]int{}, b...)
		axis = append(axis, Option{
			Label: fmt.Sprintf("addons=%v", ids),
			Apply: func(s *Scenario) { s.AddOns = append([]int{}, ids...) },
		})
	}
	return axis
}

// ToggleAxis yields false then true for a boolean field
func ToggleAxis(name string, field func(*Scenario) *bool) Axis {
	return Axis{
		{Label: name + "=false", Apply: func(s *Scenario) { *field(s) = false }},
		{Label: name + "=true", Apply: func(s *Scenario) { *field(s) = true }},
	}
}

// VASAxis toggles DisableVAS
func VASAxis() Axis {
	return ToggleAxis("disable_vas", func(s *Scenario) *bool { return &s.DisableVAS })
}

// PremiumAxis toggles BlockPremiumSMS
func PremiumAxis() Axis {
	return ToggleAxis("block_premium_sms", func(s *Scenario) *bool { return &s.BlockPremiumSMS })
}

// CheapestAddOns returns the ids of the n lowest-priced add-ons, catalog order on ties
func CheapestAddOns(addOns []normalizer.AddOn, n int) []int {
	sorted := append([]normalizer.AddOn{}, addOns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	ids := make([]int, 0, n)
	for i := 0; i < len(sorted) && i < n; i++ {
		ids = append(ids, sorted[i].AddOnID)
	}
	return ids
}

// DefaultAxes is the stock search space: every plan, no add-ons or the two
// cheapest together, and both toggles.
func DefaultAxes(plans []normalizer.Plan, addOns []normalizer.AddOn) []Axis {
	bundles := [][]int{{}}
	if cheap := CheapestAddOns(addOns, 2); len(cheap) > 0 {
		bundles = append(bundles, cheap)
	}
	return []Axis{PlanAxis(plans), AddOnAxis(bundles...), VASAxis(), PremiumAxis()}
}
