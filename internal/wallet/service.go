package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liquichain/contract_layer/internal/events"
	"github.com/liquichain/contract_layer/internal/metrics"
	"github.com/liquichain/contract_layer/pkg/logger"
)

// ServiceConfig wires a Service. Only Store is required.
type ServiceConfig struct {
	Store   Store
	Logger  *logger.Logger
	Metrics metrics.Recorder
	Events  events.Recorder
}

// Service answers wallet-by-contact queries.
type Service struct {
	store   Store
	log     *logger.Logger
	metrics metrics.Recorder
	events  events.Recorder
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("wallet: store is required")
	}
	s := &Service{
		store:   cfg.Store,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		events:  cfg.Events,
	}
	if s.log == nil {
		s.log = logger.NewDefault("wallet")
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOp{}
	}
	if s.events == nil {
		s.events = events.NoOp{}
	}
	return s, nil
}

// FindByContactHashes returns one Match per wallet whose phone number id is
// among hashes. An input with no usable hash yields an empty result and does
// not reach the store.
func (s *Service) FindByContactHashes(ctx context.Context, hashes []string) ([]Match, error) {
	ids := normalizeHashes(hashes)
	s.log.WithField("contact_hashes", len(ids)).Debug("wallet lookup")
	if len(ids) == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	wallets, err := s.store.FindByPhoneNumbers(ctx, ids)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordWalletLookup(s.store.Name(), len(ids), 0, elapsed, err)
		events.New(events.EventWalletLookupFailed).
			Metadata("store", s.store.Name()).
			Err(err).
			Duration(elapsed).
			LogTo(ctx, s.events)
		return nil, fmt.Errorf("find wallets by contact: %w", err)
	}

	matches := make([]Match, 0, len(wallets))
	for _, w := range wallets {
		matches = append(matches, Match{Wallet: w.ID, Phone: w.PhoneNumberID})
	}

	s.metrics.RecordWalletLookup(s.store.Name(), len(ids), len(matches), elapsed, nil)
	events.New(events.EventWalletLookup).
		Severity(events.SeverityDebug).
		Metadata("store", s.store.Name()).
		Metadata("requested", fmt.Sprint(len(ids))).
		Metadata("matched", fmt.Sprint(len(matches))).
		Duration(elapsed).
		LogTo(ctx, s.events)
	s.log.WithField("wallets", len(matches)).Debug("wallet lookup complete")
	return matches, nil
}

// Register stores a wallet, assigning an id when it has none. Registering an
// existing id updates its name, address and phone number.
func (s *Service) Register(ctx context.Context, w Wallet) (Wallet, error) {
	w.PhoneNumberID = strings.TrimSpace(w.PhoneNumberID)
	if w.PhoneNumberID == "" {
		return Wallet{}, ErrInvalidWallet
	}

	saved, err := s.store.SaveWallet(ctx, w)
	if err != nil {
		return Wallet{}, fmt.Errorf("register wallet: %w", err)
	}

	events.New(events.EventWalletRegistered).
		Message("wallet " + saved.ID + " linked to contact " + saved.PhoneNumberID).
		Metadata("store", s.store.Name()).
		Metadata("wallet", saved.ID).
		LogTo(ctx, s.events)
	s.log.WithFields(map[string]any{
		"wallet": saved.ID,
		"store":  s.store.Name(),
	}).Info("wallet registered")
	return saved, nil
}
