package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }

func TestComputeBaseTieredMarginal(t *testing.T) {
	rule := &CommissionRule{Method: MethodTiered}
	tiers := []CommissionTier{
		{MinAmountCents: 10000, MaxAmountCents: int64p(50000), RateBps: 1000},
		{MinAmountCents: 0, MaxAmountCents: int64p(10000), RateBps: 500},
	}

	// 300.00: first 100.00 at 5% plus the remaining 200.00 at 10% = 25.00.
	base, lines := ComputeBase(rule, tiers, 30000)
	assert.EqualValues(t, 2500, base)

	assert.Len(t, lines, 2)
	assert.EqualValues(t, 10000, lines[0].PortionCents)
	assert.EqualValues(t, 500, lines[0].CommissionCents)
	assert.EqualValues(t, 20000, lines[1].PortionCents)
	assert.EqualValues(t, 2000, lines[1].CommissionCents)
}

func TestComputeBaseTieredWithinFirstBand(t *testing.T) {
	rule := &CommissionRule{Method: MethodTiered}
	tiers := []CommissionTier{
		{MinAmountCents: 0, MaxAmountCents: int64p(10000), RateBps: 500},
		{MinAmountCents: 10000, MaxAmountCents: nil, RateBps: 1000},
	}

	base, lines := ComputeBase(rule, tiers, 5000)
	assert.EqualValues(t, 250, base)
	assert.Len(t, lines, 1)
}

func TestComputeBasePercentage(t *testing.T) {
	rule := &CommissionRule{Method: MethodPercentage, RateBps: 750}
	base, _ := ComputeBase(rule, nil, 20000)
	assert.EqualValues(t, 1500, base)
}

func TestComputeBaseFlat(t *testing.T) {
	rule := &CommissionRule{Method: MethodFlat, FlatAmountCents: 499}
	base, _ := ComputeBase(rule, nil, 123456)
	assert.EqualValues(t, 499, base)
}

func TestComputeBaseProgressive(t *testing.T) {
	rule := &CommissionRule{
		Method:               MethodProgressive,
		RateBps:              500,
		ProgressiveStepCents: 10000,
		ProgressiveIncBps:    100,
		ProgressiveMaxBps:    900,
	}

	// 250.00 earns 5% + 2 steps of 1% = 7%.
	base, _ := ComputeBase(rule, nil, 25000)
	assert.EqualValues(t, 1750, base)

	// A huge sale hits the 9% ceiling.
	base, _ = ComputeBase(rule, nil, 1000000)
	assert.EqualValues(t, 90000, base)
}

func TestMultiplierOrderBonusBeforeTime(t *testing.T) {
	// base 10.00, bonus 1.2, time 0.9 -> 10.80.
	final := ApplyMultipliers(1000, 1.2, 0.9)
	assert.EqualValues(t, 1080, final)
}

func TestBonusMultiplierAdditiveAndCapped(t *testing.T) {
	policy := &BonusPolicy{
		VolumeTiers: []VolumeBonus{
			{MinVolumeCents: 100000, Bonus: 0.1},
			{MinVolumeCents: 500000, Bonus: 0.5},
		},
		ConversionRateThreshold: 0.05,
		ConversionBonus:         0.3,
		ConsistencyThreshold:    0.8,
		ConsistencyBonus:        0.4,
		MaxMultiplier:           2.0,
	}

	perf := &PerformanceSnapshot{
		MonthlyVolumeCents: 600000,
		ConversionRate:     0.06,
		ConsistencyScore:   0.9,
	}

	// 1 + 0.5 + 0.3 + 0.4 = 2.2, capped at 2.0.
	mult, parts := BonusMultiplier(policy, perf)
	assert.InDelta(t, 2.0, mult, 1e-9)
	assert.InDelta(t, 0.5, parts["volume"], 1e-9)

	// No qualifying metrics: neutral multiplier.
	mult, parts = BonusMultiplier(policy, &PerformanceSnapshot{})
	assert.InDelta(t, 1.0, mult, 1e-9)
	assert.Nil(t, parts)
}

func TestTimeMultiplierClamped(t *testing.T) {
	policy := &TimePolicy{
		Seasonal: []MonthAdjustment{{Month: 12, Multiplier: 1.5}},
		Weekdays: []WeekdayAdjustment{{Weekday: int(time.Saturday), Multiplier: 1.6}},
	}

	// Saturday in December composes 1.5 x 1.6 = 2.4, clamped to 2.0.
	at := time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)
	mult, parts := TimeMultiplier(policy, at, nil)
	assert.InDelta(t, 2.0, mult, 1e-9)
	assert.InDelta(t, 1.5, parts["seasonal"], 1e-9)
	assert.InDelta(t, 1.6, parts["weekday"], 1e-9)

	// A Tuesday in March matches nothing.
	at = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	mult, parts = TimeMultiplier(policy, at, nil)
	assert.InDelta(t, 1.0, mult, 1e-9)
	assert.Nil(t, parts)
}

func TestTimeMultiplierNewAffiliateBoost(t *testing.T) {
	policy := &TimePolicy{
		NewBoost: &NewAffiliateBoost{WindowDays: 30, Multiplier: 1.25},
	}
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	inside := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	mult, _ := TimeMultiplier(policy, inside, &since)
	assert.InDelta(t, 1.25, mult, 1e-9)

	outside := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	mult, _ = TimeMultiplier(policy, outside, &since)
	assert.InDelta(t, 1.0, mult, 1e-9)
}

func TestHourWindowWrapsMidnight(t *testing.T) {
	window := HourWindow{StartHour: 22, EndHour: 2, Multiplier: 1.1}
	assert.True(t, hourInWindow(23, window))
	assert.True(t, hourInWindow(1, window))
	assert.False(t, hourInWindow(12, window))
}
