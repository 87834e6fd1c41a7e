package quota

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goarticle/internal/metrics"
)

// ConsumePolicy decides what happens when a charge would pass the limit.
type ConsumePolicy int

const (
	// PolicyAllowOverage records the full charge and logs when usage passes
	// the limit. The next check blocks the account.
	PolicyAllowOverage ConsumePolicy = iota
	// PolicyClampToLimit caps usage at the tier limit.
	PolicyClampToLimit
)

// ParsePolicy maps "allow" and "clamp" to a policy. Empty means allow.
func ParsePolicy(s string) (ConsumePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow", "overage":
		return PolicyAllowOverage, nil
	case "clamp", "cap":
		return PolicyClampToLimit, nil
	default:
		return PolicyAllowOverage, fmt.Errorf("unknown consume policy %q", s)
	}
}

func (p ConsumePolicy) String() string {
	if p == PolicyClampToLimit {
		return "clamp"
	}
	return "allow"
}

// Ledger checks and records token usage. Check and consume are separate
// calls, so two concurrent requests may both pass the check; the overage is
// visible to the next check.
type Ledger struct {
	Store  Store
	Now    func() time.Time
	Policy ConsumePolicy
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Ledger) load(ctx context.Context, id string) (*Account, error) {
	acct, err := l.Store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acct, nil
}

// CheckLimit reports whether the account may run another request. A stale
// stored limit is corrected and written back; if the write fails the report
// still uses the corrected values.
func (l *Ledger) CheckLimit(ctx context.Context, id string) (UsageReport, error) {
	acct, err := l.load(ctx, id)
	if err != nil {
		return UsageReport{}, err
	}
	rec, changed := Reconcile(*acct)
	if changed {
		metrics.QuotaMigrationsTotal.Inc()
		log.Info().Str("account", id).
			Uint64("old_limit", acct.TokenLimit).Uint64("new_limit", rec.TokenLimit).
			Uint64("old_used", acct.TokensUsed).Uint64("new_used", rec.TokensUsed).
			Msg("reconciling token limit")
		if err := l.Store.Update(ctx, id, ReconcilePatch(*acct, rec)); err != nil {
			log.Warn().Err(err).Str("account", id).Msg("persist reconciled limit failed")
		}
	}
	report := Evaluate(rec, l.now())
	metrics.RecordQuotaCheck(string(rec.Tier), report.Allowed)
	return report, nil
}

// Consume charges tokens to the account.
func (l *Ledger) Consume(ctx context.Context, id string, tokens uint64) error {
	acct, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	if tokens == 0 {
		return nil
	}
	limit := CanonicalLimit(acct.Tier)
	var ceiling *uint64
	if l.Policy == PolicyClampToLimit {
		ceiling = &limit
	}

	var used uint64
	if inc, ok := l.Store.(Incrementer); ok {
		used, err = inc.IncrementTokensUsed(ctx, id, tokens, ceiling)
		if err != nil {
			return fmt.Errorf("consume %d tokens for %s: %w", tokens, id, err)
		}
	} else {
		used = ApplyIncrement(acct.TokensUsed, tokens, ceiling)
		if err := l.Store.Update(ctx, id, Patch{TokensUsed: &used}); err != nil {
			return fmt.Errorf("consume %d tokens for %s: %w", tokens, id, err)
		}
	}

	metrics.RecordConsumption(string(acct.Tier), tokens)
	if used > limit {
		log.Warn().Str("account", id).Uint64("used", used).Uint64("limit", limit).Msg("token usage past limit")
	}
	return nil
}

// ApplyIncrement computes the new usage for the Incrementer contract. It
// saturates instead of overflowing.
func ApplyIncrement(current, delta uint64, ceiling *uint64) uint64 {
	next := current + delta
	if next < current {
		next = math.MaxUint64
	}
	if ceiling != nil {
		capAt := *ceiling
		if current > capAt {
			capAt = current
		}
		if next > capAt {
			next = capAt
		}
	}
	return next
}
