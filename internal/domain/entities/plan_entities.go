package entities

import "github.com/shopspring/decimal"

// Plan keys. Plans are additive: an account may hold several at once.
const (
	PlanFree      = "free"
	PlanDiscovery = "discovery"
	PlanBasic     = "basic"
	PlanStarter   = "starter"
	PlanAdvanced  = "advanced"
	PlanPro       = "pro"
	PlanExpert    = "expert"
	PlanVIP       = "vip"
)

// Plan is one catalog entry. The catalog is configuration data; the engine
// only reads Price, MinWithdrawal, MaxWithdrawalsPerDay and DailyGain.
type Plan struct {
	Key                  string
	Name                 string
	Price                decimal.Decimal
	DailyGain            decimal.Decimal
	MinWithdrawal        decimal.Decimal
	MaxWithdrawalsPerDay int
	DurationDays         int
	SessionSeconds       int
	Pairs                int
}

// IsPaid reports whether the plan requires a purchase.
func (p Plan) IsPaid() bool {
	return p.Price.IsPositive()
}

// PlanCatalog maps plan keys to their catalog entries.
type PlanCatalog map[string]Plan

// Get returns the plan for key, falling back to the free plan for unknown
// keys (display paths only; purchase paths validate the key first).
func (c PlanCatalog) Get(key string) Plan {
	if p, ok := c[key]; ok {
		return p
	}
	return c[PlanFree]
}

// Has reports whether the key names a catalog plan.
func (c PlanCatalog) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// DefaultPlans is the shipped catalog.
func DefaultPlans() PlanCatalog {
	return PlanCatalog{
		PlanFree: {
			Key:                  PlanFree,
			Name:                 "Free Trial",
			Price:                decimal.Zero,
			DailyGain:            decimal.RequireFromString("0.005"),
			MinWithdrawal:        decimal.RequireFromString("0.02"),
			MaxWithdrawalsPerDay: 1,
			DurationDays:         14,
			SessionSeconds:       120,
			Pairs:                10,
		},
		PlanDiscovery: {
			Key:                  PlanDiscovery,
			Name:                 "Discovery",
			Price:                decimal.RequireFromString("0.1"),
			DailyGain:            decimal.RequireFromString("0.005"),
			MinWithdrawal:        decimal.RequireFromString("0.01"),
			MaxWithdrawalsPerDay: 1,
			DurationDays:         30,
			SessionSeconds:       150,
			Pairs:                12,
		},
		PlanBasic: {
			Key:                  PlanBasic,
			Name:                 "Basic",
			Price:                decimal.RequireFromString("0.5"),
			DailyGain:            decimal.RequireFromString("0.025"),
			MinWithdrawal:        decimal.RequireFromString("0.1"),
			MaxWithdrawalsPerDay: 1,
			DurationDays:         30,
			SessionSeconds:       180,
			Pairs:                15,
		},
		PlanStarter: {
			Key:                  PlanStarter,
			Name:                 "Starter",
			Price:                decimal.NewFromInt(1),
			DailyGain:            decimal.RequireFromString("0.05"),
			MinWithdrawal:        decimal.RequireFromString("0.2"),
			MaxWithdrawalsPerDay: 2,
			DurationDays:         30,
			SessionSeconds:       210,
			Pairs:                18,
		},
		PlanAdvanced: {
			Key:                  PlanAdvanced,
			Name:                 "Advanced",
			Price:                decimal.RequireFromString("1.5"),
			DailyGain:            decimal.RequireFromString("0.075"),
			MinWithdrawal:        decimal.RequireFromString("0.3"),
			MaxWithdrawalsPerDay: 2,
			DurationDays:         30,
			SessionSeconds:       240,
			Pairs:                22,
		},
		PlanPro: {
			Key:                  PlanPro,
			Name:                 "Pro",
			Price:                decimal.NewFromInt(2),
			DailyGain:            decimal.RequireFromString("0.10"),
			MinWithdrawal:        decimal.RequireFromString("0.5"),
			MaxWithdrawalsPerDay: 3,
			DurationDays:         30,
			SessionSeconds:       270,
			Pairs:                25,
		},
		PlanExpert: {
			Key:                  PlanExpert,
			Name:                 "Expert",
			Price:                decimal.NewFromInt(4),
			DailyGain:            decimal.RequireFromString("0.20"),
			MinWithdrawal:        decimal.NewFromInt(1),
			MaxWithdrawalsPerDay: 3,
			DurationDays:         30,
			SessionSeconds:       300,
			Pairs:                30,
		},
		PlanVIP: {
			Key:                  PlanVIP,
			Name:                 "VIP Global",
			Price:                decimal.NewFromInt(10),
			DailyGain:            decimal.RequireFromString("0.50"),
			MinWithdrawal:        decimal.NewFromInt(2),
			MaxWithdrawalsPerDay: 5,
			DurationDays:         30,
			SessionSeconds:       360,
			Pairs:                35,
		},
	}
}
