package retention

import "github.com/shopspring/decimal"

// DeriveStatus maps amounts to a lifecycle status. Rules are evaluated in order:
//  1. balance <= 0 and released > 0 -> FULLY_RELEASED
//  2. released > 0 and balance > 0  -> PARTIALLY_RELEASED
//  3. released = 0 and retention > 0 -> HELD
//  4. otherwise                     -> HELD
//
// FORFEITED is never derived; see ResolveStatus.
func DeriveStatus(retention, released, balance decimal.Decimal) Status {
	switch {
	case !balance.IsPositive() && released.IsPositive():
		return StatusFullyReleased
	case released.IsPositive() && balance.IsPositive():
		return StatusPartiallyReleased
	case released.IsZero() && retention.IsPositive():
		return StatusHeld
	default:
		return StatusHeld
	}
}

// ResolveStatus is DeriveStatus that leaves a forfeited account forfeited.
func ResolveStatus(current Status, retention, released, balance decimal.Decimal) Status {
	if current == StatusForfeited {
		return StatusForfeited
	}
	return DeriveStatus(retention, released, balance)
}

// IsTerminal reports whether no further releases can change the status.
func (s Status) IsTerminal() bool {
	return s == StatusForfeited || s == StatusFullyReleased
}
