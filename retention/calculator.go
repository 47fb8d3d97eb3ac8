package retention

import (
	"github.com/shopspring/decimal"
	"github.com/warp/retention-engine/generic"
)

// =============================================================================
// FLAT RETENTION
// =============================================================================

// CalculateRetentionAmount returns invoiceAmount x percentage / 100, rounded
// to 2 decimals.
func CalculateRetentionAmount(invoiceAmount, percentage decimal.Decimal) decimal.Decimal {
	return generic.Round2(generic.PercentOf(invoiceAmount, percentage))
}

// CalculateRetentionAmountFromInput is CalculateRetentionAmount over raw form
// input. Missing or non-numeric values count as zero.
func CalculateRetentionAmountFromInput(invoiceAmount, percentage any) decimal.Decimal {
	return CalculateRetentionAmount(generic.ParseAmount(invoiceAmount), generic.ParsePercentage(percentage))
}

// CalculateAmountAfterRetention returns what is paid out now.
func CalculateAmountAfterRetention(invoiceAmount, percentage decimal.Decimal) decimal.Decimal {
	return invoiceAmount.Sub(CalculateRetentionAmount(invoiceAmount, percentage))
}

// =============================================================================
// TIERED RETENTION
// =============================================================================

// CalculateTieredRetention applies progressive brackets: each tier's
// percentage covers only the slice of totalAmount between its threshold and
// the next tier's threshold. The last tier has no upper bound. Any amount
// below the first threshold carries no retention.
//
// Tiers must be strictly ascending by threshold; anything else returns
// ErrUnsortedTiers rather than being silently reordered.
func CalculateTieredRetention(totalAmount decimal.Decimal, tiers []Tier) (decimal.Decimal, error) {
	if err := checkTierOrder(tiers); err != nil {
		return decimal.Zero, err
	}

	retained := decimal.Zero
	for i, tier := range tiers {
		if !totalAmount.GreaterThan(tier.Threshold) {
			break
		}
		upper := totalAmount
		if i+1 < len(tiers) && tiers[i+1].Threshold.LessThan(totalAmount) {
			upper = tiers[i+1].Threshold
		}
		slice := upper.Sub(tier.Threshold)
		retained = retained.Add(generic.PercentOf(slice, tier.Percentage))
	}
	return generic.Round2(retained), nil
}

func checkTierOrder(tiers []Tier) error {
	for i := 1; i < len(tiers); i++ {
		if !tiers[i].Threshold.GreaterThan(tiers[i-1].Threshold) {
			return ErrUnsortedTiers
		}
	}
	return nil
}

// EffectivePercentage returns retention / base x 100 rounded to 2 decimals,
// or zero when base is zero.
func EffectivePercentage(retention, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return retention.Mul(generic.Hundred).Div(base).Round(2)
}

// =============================================================================
// BALANCE
// =============================================================================

// CalculateBalanceAmount returns retentionAmount - releasedAmount.
func CalculateBalanceAmount(retentionAmount, releasedAmount decimal.Decimal) decimal.Decimal {
	return retentionAmount.Sub(releasedAmount)
}

// CalculateReleasePercentage returns the share of totalRetention already
// released, 0 when totalRetention is 0.
func CalculateReleasePercentage(releasedAmount, totalRetention decimal.Decimal) decimal.Decimal {
	return EffectivePercentage(releasedAmount, totalRetention)
}
