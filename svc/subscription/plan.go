package subscription

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// UnlimitedUsers is the max-user sentinel for plans without a ceiling.
const UnlimitedUsers = -1

// Plan is a catalog entry. Prices are integer cents per month; quarterly
// and yearly prices derive from the monthly price, never stored.
type Plan struct {
	Code              string   `yaml:"code"`
	Name              string   `yaml:"name"`
	MonthlyPriceCents int64    `yaml:"monthly_price_cents"`
	MaxUsers          int      `yaml:"max_users"`
	Features          []string `yaml:"features"`
}

// PriceCents computes the full-term price for a billing cycle. Quarterly
// carries a 10% discount and yearly a 20% discount on the summed monthly
// price. Integer arithmetic keeps the result exact.
func (p Plan) PriceCents(cycle BillingCycle) (int64, error) {
	switch cycle {
	case CycleMonthly:
		return p.MonthlyPriceCents, nil
	case CycleQuarterly:
		return p.MonthlyPriceCents * 3 * 9 / 10, nil
	case CycleYearly:
		return p.MonthlyPriceCents * 12 * 8 / 10, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBillingCycle, cycle)
	}
}

// HasFeature reports whether a feature flag is enabled on the plan.
func (p Plan) HasFeature(name string) bool {
	for _, f := range p.Features {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultPlanCode is assigned when a signup names no plan.
const DefaultPlanCode = "FREE"

// DefaultPlans is the built-in catalog used when no plan file is
// configured. The same three plans are seeded by the migrations.
func DefaultPlans() []Plan {
	return []Plan{
		{Code: "FREE", Name: "Free", MonthlyPriceCents: 0, MaxUsers: 5, Features: []string{"core"}},
		{Code: "BASIC", Name: "Basic", MonthlyPriceCents: 2900, MaxUsers: 25, Features: []string{"core", "reports"}},
		{Code: "PRO", Name: "Pro", MonthlyPriceCents: 9900, MaxUsers: UnlimitedUsers, Features: []string{"core", "reports", "sso", "audit"}},
	}
}

// Catalog is a read-mostly plan lookup shared across the service.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewCatalog builds a catalog from the given plans. An empty list falls
// back to the defaults.
func NewCatalog(plans []Plan) *Catalog {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	byCode := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byCode[p.Code] = p
	}
	return &Catalog{plans: byCode}
}

// LoadCatalogFile reads a YAML plan catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
	}
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", path, err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog %s: no plans defined", path)
	}
	return NewCatalog(doc.Plans), nil
}

// Get returns the plan for a code.
func (c *Catalog) Get(code string) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[code]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, code)
	}
	return p, nil
}

// Default returns the plan used when a signup names none.
func (c *Catalog) Default() (Plan, error) {
	return c.Get(DefaultPlanCode)
}

// All returns every plan ordered by code.
func (c *Catalog) All() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	plans := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Code < plans[j].Code })
	return plans
}
