// Package quota meters generation work against per-account token limits.
package quota

import (
	"context"
	"errors"
	"time"
)

// Tier is the account plan.
type Tier string

const (
	TierTrial Tier = "trial"
	TierPaid  Tier = "paid"
)

// Canonical per-tier limits. Stored limits are reconciled to these on read.
const (
	TrialTokenLimit uint64 = 1_000
	PaidTokenLimit  uint64 = 100_000
)

// ErrAccountNotFound is returned when the store has no record for an id.
var ErrAccountNotFound = errors.New("account not found")

// Account is the persisted quota state of one user.
type Account struct {
	ID                    string
	Tier                  Tier
	TokensUsed            uint64
	TokenLimit            uint64
	SubscriptionExpiresAt *time.Time
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	TokensUsed *uint64
	TokenLimit *uint64
}

// UsageReport is derived from an Account on every check and never stored.
type UsageReport struct {
	Allowed         bool
	TokensUsed      uint64
	TokensRemaining uint64
	Limit           uint64
	Tier            Tier
}

// Store is the narrow persistence contract the ledger needs.
type Store interface {
	// FindByID returns (nil, nil) when the account does not exist.
	FindByID(ctx context.Context, id string) (*Account, error)
	Update(ctx context.Context, id string, p Patch) error
}

// Incrementer is implemented by stores that can add to TokensUsed atomically.
// When ceiling is non-nil the stored value becomes
// min(current+delta, max(current, *ceiling)), so usage is capped at the
// ceiling but never lowered. It returns the new TokensUsed and
// ErrAccountNotFound for unknown ids.
type Incrementer interface {
	IncrementTokensUsed(ctx context.Context, id string, delta uint64, ceiling *uint64) (uint64, error)
}

// Lister is implemented by stores that can enumerate accounts.
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// ListingStore is a Store that can also enumerate its accounts.
type ListingStore interface {
	Store
	Lister
}

// Uint64 returns a pointer to v, for building a Patch.
func Uint64(v uint64) *uint64 { return &v }
