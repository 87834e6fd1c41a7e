package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperifyio/goarticle/internal/quota"
)

// Memory keeps accounts in a map guarded by a mutex.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]quota.Account
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{accounts: map[string]quota.Account{}}
}

func (m *Memory) Create(_ context.Context, a quota.Account) error {
	if err := validateID(a.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.ID)
	}
	m.accounts[a.ID] = copyAccount(a)
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*quota.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	out := copyAccount(a)
	return &out, nil
}

func (m *Memory) Update(_ context.Context, id string, p quota.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", quota.ErrAccountNotFound, id)
	}
	if p.TokensUsed != nil {
		a.TokensUsed = *p.TokensUsed
	}
	if p.TokenLimit != nil {
		a.TokenLimit = *p.TokenLimit
	}
	m.accounts[id] = a
	return nil
}

func (m *Memory) IncrementTokensUsed(_ context.Context, id string, delta uint64, ceiling *uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", quota.ErrAccountNotFound, id)
	}
	a.TokensUsed = quota.ApplyIncrement(a.TokensUsed, delta, ceiling)
	m.accounts[id] = a
	return a.TokensUsed, nil
}

func (m *Memory) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }

func copyAccount(a quota.Account) quota.Account {
	if a.SubscriptionExpiresAt != nil {
		t := *a.SubscriptionExpiresAt
		a.SubscriptionExpiresAt = &t
	}
	return a
}
