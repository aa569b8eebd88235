// Package billing provides the plan catalog and billing domain logic.
package billing

import (
	"time"

	"subgate/internal/types"
)

// Catalog is the authoritative mapping from plan ID to plan attributes.
// It is the single source of truth for what each plan costs and grants.
type Catalog interface {
	// Get returns the plan for the given ID. The second return value is false
	// for unknown IDs; callers translate that into validation_unknown_plan.
	Get(id types.PlanID) (types.Plan, bool)

	// All returns every plan in display order.
	All() []types.Plan
}

// staticCatalog is a compile-time plan catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	plans map[types.PlanID]types.Plan
	order []types.PlanID
}

// planDefaults defines the hardcoded plans:
//
//	| Plan    | Price (RUB) | Duration |
//	|---------|-------------|----------|
//	| basic   | 999         | 30 days  |
//	| premium | 1999        | 30 days  |
//	| vip     | 3999        | 30 days  |
var planDefaults = map[types.PlanID]types.Plan{
	types.PlanBasic: {
		ID:          types.PlanBasic,
		Name:        "Базовый тариф",
		Description: "Основные функции продукта",
		Price:       999,
		Duration:    30 * 24 * time.Hour,
	},
	types.PlanPremium: {
		ID:          types.PlanPremium,
		Name:        "Премиум тариф",
		Description: "Расширенные возможности",
		Price:       1999,
		Duration:    30 * 24 * time.Hour,
	},
	types.PlanVIP: {
		ID:          types.PlanVIP,
		Name:        "VIP тариф",
		Description: "Максимум преимуществ",
		Price:       3999,
		Duration:    30 * 24 * time.Hour,
	},
}

// displayOrder fixes the order plans appear in menus.
var displayOrder = []types.PlanID{types.PlanBasic, types.PlanPremium, types.PlanVIP}

// NewStaticCatalog returns a Catalog backed by the hardcoded plan table.
// No database or external service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.PlanID]types.Plan, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticCatalog{plans: m, order: displayOrder}
}

// Get returns the plan for the given ID, or false for unknown IDs.
func (c *staticCatalog) Get(id types.PlanID) (types.Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// All returns every plan in display order.
func (c *staticCatalog) All() []types.Plan {
	out := make([]types.Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
