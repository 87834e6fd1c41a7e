package quota

import "time"

// CanonicalLimit is the limit a tier must have. Unknown tiers get the trial
// limit.
func CanonicalLimit(t Tier) uint64 {
	if t == TierPaid {
		return PaidTokenLimit
	}
	return TrialTokenLimit
}

// Reconcile returns a with its limit set to the tier default. When the
// stored limit was wrong, usage is capped at the new limit and changed is
// true. Accounts that already carry the right limit are returned as is, even
// when usage has run past it.
func Reconcile(a Account) (Account, bool) {
	limit := CanonicalLimit(a.Tier)
	if a.TokenLimit == limit {
		return a, false
	}
	a.TokenLimit = limit
	if a.TokensUsed > limit {
		a.TokensUsed = limit
	}
	return a, true
}

// ReconcilePatch is the write that moves stored account before to its
// reconciled form after. Usage is only written when the cap lowered it, so a
// concurrent increment is not overwritten by a stale read.
func ReconcilePatch(before, after Account) Patch {
	p := Patch{TokenLimit: Uint64(after.TokenLimit)}
	if after.TokensUsed != before.TokensUsed {
		p.TokensUsed = Uint64(after.TokensUsed)
	}
	return p
}

// Evaluate derives the usage report for a reconciled account at time now.
func Evaluate(a Account, now time.Time) UsageReport {
	limit := CanonicalLimit(a.Tier)
	var remaining uint64
	if a.TokensUsed < limit {
		remaining = limit - a.TokensUsed
	}
	hasTokens := remaining > 0

	var allowed bool
	switch a.Tier {
	case TierTrial:
		allowed = hasTokens
	case TierPaid:
		active := a.SubscriptionExpiresAt == nil || a.SubscriptionExpiresAt.After(now)
		allowed = hasTokens && active
	}
	return UsageReport{
		Allowed:         allowed,
		TokensUsed:      a.TokensUsed,
		TokensRemaining: remaining,
		Limit:           limit,
		Tier:            a.Tier,
	}
}
