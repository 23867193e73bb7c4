package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{wallets: make(map[string]Wallet)}
}

func (m *Memory) Name() string { return "memory" }

// SaveWallet inserts or replaces w.
func (m *Memory) SaveWallet(_ context.Context, w Wallet) (Wallet, error) {
	if w.PhoneNumberID == "" {
		return Wallet{}, ErrInvalidWallet
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.wallets[w.ID]; ok {
		w.CreatedAt = existing.CreatedAt
	} else if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	m.wallets[w.ID] = w
	return w, nil
}

// FindByPhoneNumbers returns matching wallets ordered by creation time.
func (m *Memory) FindByPhoneNumbers(_ context.Context, ids []string) ([]Wallet, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Wallet
	for _, w := range m.wallets {
		if _, ok := want[w.PhoneNumberID]; ok {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
