// Package wallet resolves contact hashes to the wallets registered for them.
//
// A wallet is linked to a verified phone number whose identifier is the hash
// clients share as a contact. Looking up a batch of contact hashes returns the
// wallet id and phone id for each registered wallet.
package wallet

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidWallet is returned when saving a wallet without a phone number.
var ErrInvalidWallet = errors.New("wallet: phone number id is required")

// Wallet is a stored wallet record.
type Wallet struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name,omitempty" db:"name"`
	Address       string    `json:"address,omitempty" db:"address"`
	PhoneNumberID string    `json:"phoneNumberId" db:"phone_number_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// Match pairs a wallet with the contact hash it was found by.
type Match struct {
	Wallet string `json:"wallet"`
	Phone  string `json:"phone"`
}

// Store persists wallets.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	SaveWallet(ctx context.Context, w Wallet) (Wallet, error)
	// FindByPhoneNumbers returns wallets whose phone number id is in ids.
	FindByPhoneNumbers(ctx context.Context, ids []string) ([]Wallet, error)
}

// normalizeHashes trims, drops blanks and removes duplicates, keeping the
// first occurrence order.
func normalizeHashes(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
