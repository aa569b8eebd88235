package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgate/internal/types"
)

func TestStaticCatalog_Get(t *testing.T) {
	catalog := NewStaticCatalog()

	plan, ok := catalog.Get(types.PlanPremium)
	require.True(t, ok)
	assert.Equal(t, types.PlanPremium, plan.ID)
	assert.Equal(t, "Премиум тариф", plan.Name)
	assert.Equal(t, int64(1999), plan.Price)
	assert.Equal(t, 30*24*time.Hour, plan.Duration)
}

func TestStaticCatalog_UnknownPlan(t *testing.T) {
	catalog := NewStaticCatalog()

	_, ok := catalog.Get(types.PlanID("enterprise"))
	assert.False(t, ok)
}

func TestStaticCatalog_AllInDisplayOrder(t *testing.T) {
	catalog := NewStaticCatalog()

	plans := catalog.All()
	require.Len(t, plans, 3)
	assert.Equal(t, types.PlanBasic, plans[0].ID)
	assert.Equal(t, types.PlanPremium, plans[1].ID)
	assert.Equal(t, types.PlanVIP, plans[2].ID)

	assert.Equal(t, int64(999), plans[0].Price)
	assert.Equal(t, int64(3999), plans[2].Price)
	for _, p := range plans {
		assert.Equal(t, 30*24*time.Hour, p.Duration)
		assert.NotEmpty(t, p.Name)
	}
}
