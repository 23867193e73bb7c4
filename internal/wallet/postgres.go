package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres is a Store backed by the wallets table.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to dsn with the lib/pq driver and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgres(db), nil
}

// DB returns the underlying handle.
func (p *Postgres) DB() *sqlx.DB { return p.db }

func (p *Postgres) Name() string { return "postgres" }

// SaveWallet upserts w by id. The phone number row the wallet references is
// created in the same transaction when it does not exist yet.
func (p *Postgres) SaveWallet(ctx context.Context, w Wallet) (saved Wallet, err error) {
	if w.PhoneNumberID == "" {
		return Wallet{}, ErrInvalidWallet
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return Wallet{}, fmt.Errorf("save wallet %s: begin: %w", w.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO phone_numbers (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, w.PhoneNumberID); err != nil {
		return Wallet{}, fmt.Errorf("save wallet %s: phone number: %w", w.ID, err)
	}

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO wallets (id, name, address, phone_number_id, created_at)
		VALUES (:id, :name, :address, :phone_number_id, :created_at)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, address = EXCLUDED.address, phone_number_id = EXCLUDED.phone_number_id
	`, w); err != nil {
		return Wallet{}, fmt.Errorf("save wallet %s: %w", w.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return Wallet{}, fmt.Errorf("save wallet %s: commit: %w", w.ID, err)
	}
	return w, nil
}

// FindByPhoneNumbers returns matching wallets ordered by creation time.
func (p *Postgres) FindByPhoneNumbers(ctx context.Context, ids []string) ([]Wallet, error) {
	var wallets []Wallet
	err := p.db.SelectContext(ctx, &wallets, `
		SELECT id, name, address, phone_number_id, created_at
		FROM wallets
		WHERE phone_number_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
