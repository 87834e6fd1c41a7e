// Package store provides account stores for the quota ledger: an in-memory
// map, SQLite and Redis. All of them implement quota.Store, quota.Incrementer
// and quota.Lister.
package store

import (
	"context"
	"errors"

	"github.com/hyperifyio/goarticle/internal/quota"
)

// ErrAccountExists is returned by Create for a duplicate id.
var ErrAccountExists = errors.New("account already exists")

// Accounts is the full capability set shared by every store here.
type Accounts interface {
	quota.Store
	quota.Incrementer
	quota.Lister
	Create(ctx context.Context, a quota.Account) error
	Close() error
}

var (
	_ Accounts = (*Memory)(nil)
	_ Accounts = (*SQLite)(nil)
	_ Accounts = (*Redis)(nil)
)

func validateID(id string) error {
	if id == "" {
		return errors.New("empty account id")
	}
	return nil
}
