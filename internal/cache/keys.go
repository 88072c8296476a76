package cache

import (
	"strconv"

	"finance/internal/core"
)

// Resource names of the finance queries.
const (
	ResourceMovements    = "movements"
	ResourceMovementByID = "movement-by-id"
	ResourceCategories   = "categories"
	ResourceMonths       = "months"
	ResourceYears        = "years"
)

// MovementsKey addresses an invoice by the filter that produced it.
func MovementsKey(f core.Filter) Key {
	return NewKey(ResourceMovements, f.Month, f.Year, f.Category)
}

func MovementKey(id string) Key {
	return NewKey(ResourceMovementByID, id)
}

func CategoriesKey() Key { return NewKey(ResourceCategories) }

func MonthsKey() Key { return NewKey(ResourceMonths) }

func YearsKey() Key { return NewKey(ResourceYears) }

// FilterOf recovers the filter from a movements key.
func FilterOf(k Key) (core.Filter, bool) {
	if k.Resource != ResourceMovements {
		return core.Filter{}, false
	}
	p := k.Params()
	for len(p) < 3 {
		p = append(p, "")
	}
	return core.Filter{Month: p[0], Year: p[1], Category: p[2]}, true
}

// MovementsInPeriod matches invoice keys whose month and year could contain a
// movement dated month/year. Filters that leave month or year empty match any.
func MovementsInPeriod(month, year int) Predicate {
	m, y := strconv.Itoa(month), strconv.Itoa(year)
	return func(k Key) bool {
		f, ok := FilterOf(k)
		if !ok {
			return false
		}
		return (f.Month == "" || f.Month == m) && (f.Year == "" || f.Year == y)
	}
}
