package quota

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// fakeStore is a map-backed Store that counts writes and can fail them.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	updates   int
	lastPatch Patch
	failWrite bool
	failRead  map[string]bool
}

func newFakeStore(accts ...Account) *fakeStore {
	s := &fakeStore{accounts: map[string]Account{}, failRead: map[string]bool{}}
	for _, a := range accts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead[id] {
		return nil, errors.New("read failed")
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *fakeStore) Update(_ context.Context, id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errors.New("write failed")
	}
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if p.TokensUsed != nil {
		a.TokensUsed = *p.TokensUsed
	}
	if p.TokenLimit != nil {
		a.TokenLimit = *p.TokenLimit
	}
	s.accounts[id] = a
	s.updates++
	s.lastPatch = p
	return nil
}

func (s *fakeStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) get(id string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

// atomicStore adds the Incrementer capability.
type atomicStore struct {
	*fakeStore
	increments int
}

func (s *atomicStore) IncrementTokensUsed(_ context.Context, id string, delta uint64, ceiling *uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	a.TokensUsed = ApplyIncrement(a.TokensUsed, delta, ceiling)
	s.accounts[id] = a
	s.increments++
	return a.TokensUsed, nil
}
