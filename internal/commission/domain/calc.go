package domain

import (
	"math"
	"sort"
	"time"
)

const (
	defaultBonusCap = 2.0
	defaultTimeMin  = 0.5
	defaultTimeMax  = 2.0
)

// applyBps computes amount × rate with round-half-up at the cent.
func applyBps(amountCents, rateBps int64) int64 {
	if amountCents <= 0 || rateBps <= 0 {
		return 0
	}
	return (amountCents*rateBps + 5000) / 10000
}

// ComputeBase returns the base commission for a rule before cap, bonus, and
// time adjustment. Tiered rules sum each band's rate over the portion of the
// amount inside [min, max); the whole amount never lands in a single band.
func ComputeBase(rule *CommissionRule, tiers []CommissionTier, amountCents int64) (int64, []TierLine) {
	switch rule.Method {
	case MethodFlat:
		return rule.FlatAmountCents, nil

	case MethodPercentage:
		return applyBps(amountCents, rule.RateBps), nil

	case MethodProgressive:
		rate := rule.RateBps
		if rule.ProgressiveStepCents > 0 && rule.ProgressiveIncBps > 0 {
			rate += (amountCents / rule.ProgressiveStepCents) * rule.ProgressiveIncBps
		}
		if rule.ProgressiveMaxBps > 0 && rate > rule.ProgressiveMaxBps {
			rate = rule.ProgressiveMaxBps
		}
		return applyBps(amountCents, rate), nil

	case MethodTiered:
		sorted := make([]CommissionTier, len(tiers))
		copy(sorted, tiers)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].MinAmountCents < sorted[j].MinAmountCents
		})

		var total int64
		lines := make([]TierLine, 0, len(sorted))
		for _, tier := range sorted {
			upper := amountCents
			if tier.MaxAmountCents != nil && *tier.MaxAmountCents < upper {
				upper = *tier.MaxAmountCents
			}
			portion := upper - tier.MinAmountCents
			if portion <= 0 {
				continue
			}
			part := applyBps(portion, tier.RateBps)
			total += part
			lines = append(lines, TierLine{
				MinAmountCents:  tier.MinAmountCents,
				MaxAmountCents:  tier.MaxAmountCents,
				RateBps:         tier.RateBps,
				PortionCents:    portion,
				CommissionCents: part,
			})
		}
		return total, lines
	}
	return 0, nil
}

// PerformanceSnapshot carries the affiliate metrics the bonus policy reads.
type PerformanceSnapshot struct {
	MonthlyVolumeCents int64   `json:"monthly_volume_cents"`
	ConversionRate     float64 `json:"conversion_rate"`
	ConsistencyScore   float64 `json:"consistency_score"`
}

// BonusMultiplier composes the additive sub-bonuses and caps the total.
func BonusMultiplier(policy *BonusPolicy, perf *PerformanceSnapshot) (float64, map[string]float64) {
	if policy == nil || perf == nil {
		return 1.0, nil
	}

	components := map[string]float64{}

	best := 0.0
	for _, tier := range policy.VolumeTiers {
		if perf.MonthlyVolumeCents >= tier.MinVolumeCents && tier.Bonus > best {
			best = tier.Bonus
		}
	}
	if best > 0 {
		components["volume"] = best
	}

	if policy.ConversionRateThreshold > 0 && perf.ConversionRate >= policy.ConversionRateThreshold {
		components["conversion"] = policy.ConversionBonus
	}
	if policy.ConsistencyThreshold > 0 && perf.ConsistencyScore >= policy.ConsistencyThreshold {
		components["consistency"] = policy.ConsistencyBonus
	}

	multiplier := 1.0
	for _, bonus := range components {
		multiplier += bonus
	}

	limit := policy.MaxMultiplier
	if limit <= 0 {
		limit = defaultBonusCap
	}
	if multiplier > limit {
		multiplier = limit
	}
	if len(components) == 0 {
		return multiplier, nil
	}
	return multiplier, components
}

// TimeMultiplier composes the matching time adjustments multiplicatively and
// clamps the product to the policy band.
func TimeMultiplier(policy *TimePolicy, at time.Time, affiliateSince *time.Time) (float64, map[string]float64) {
	if policy == nil {
		return 1.0, nil
	}

	components := map[string]float64{}
	multiplier := 1.0

	for _, adj := range policy.Seasonal {
		if adj.Month == int(at.Month()) && adj.Multiplier > 0 {
			multiplier *= adj.Multiplier
			components["seasonal"] = adj.Multiplier
			break
		}
	}
	for _, window := range policy.Hours {
		if hourInWindow(at.Hour(), window) && window.Multiplier > 0 {
			multiplier *= window.Multiplier
			components["hour"] = window.Multiplier
			break
		}
	}
	for _, adj := range policy.Weekdays {
		if adj.Weekday == int(at.Weekday()) && adj.Multiplier > 0 {
			multiplier *= adj.Multiplier
			components["weekday"] = adj.Multiplier
			break
		}
	}
	if boost := policy.NewBoost; boost != nil && affiliateSince != nil && boost.Multiplier > 0 {
		cutoff := affiliateSince.AddDate(0, 0, boost.WindowDays)
		if at.Before(cutoff) {
			multiplier *= boost.Multiplier
			components["new_affiliate"] = boost.Multiplier
		}
	}

	lo := policy.MinMultiplier
	if lo <= 0 {
		lo = defaultTimeMin
	}
	hi := policy.MaxMultiplier
	if hi <= 0 {
		hi = defaultTimeMax
	}
	if multiplier < lo {
		multiplier = lo
	}
	if multiplier > hi {
		multiplier = hi
	}
	if len(components) == 0 {
		return multiplier, nil
	}
	return multiplier, components
}

func hourInWindow(hour int, window HourWindow) bool {
	if window.StartHour == window.EndHour {
		return false
	}
	if window.StartHour < window.EndHour {
		return hour >= window.StartHour && hour < window.EndHour
	}
	// Wraps midnight.
	return hour >= window.StartHour || hour < window.EndHour
}

// ApplyMultipliers scales the base commission in the fixed order bonus then
// time, rounding once at the end.
func ApplyMultipliers(baseCents int64, bonus, timeAdj float64) int64 {
	return int64(math.Round(float64(baseCents) * bonus * timeAdj))
}

// EffectiveRateBps reports the realised rate of a calculation.
func EffectiveRateBps(commissionCents, amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	return int64(math.Round(float64(commissionCents) / float64(amountCents) * 10000))
}
