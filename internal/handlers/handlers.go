// Package handlers contains the built-in token method handlers.
//
// Each handler decodes its arguments from the transaction call data and
// returns a description of the state change it represents. Register wires
// them into a handler.Loader under their identifiers.
package handlers

import (
	"context"
	"fmt"

	"github.com/liquichain/contract_layer/internal/handler"
	"github.com/liquichain/contract_layer/internal/selector"
)

// Handler identifiers.
const (
	MintID     = "handlers.Mint"
	TransferID = "handlers.Transfer"
	BurnID     = "handlers.Burn"
)

// Method signatures, in selector-hashing form.
const (
	MintSignature     = "mint(uint256)"
	TransferSignature = "transfer(address,uint256)"
	BurnSignature     = "burn(uint256)"
)

// TokenABI describes the methods the built-in handlers serve.
const TokenABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256","internalType":"uint256"}],"outputs":[]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address","internalType":"address"},{"name":"amount","type":"uint256","internalType":"uint256"}],
   "outputs":[{"name":"","type":"bool","internalType":"bool"}]},
  {"type":"function","name":"burn","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256","internalType":"uint256"}],"outputs":[]}
]`

// Register adds every built-in handler to l.
func Register(l *handler.Loader) error {
	for id, f := range map[string]handler.Factory{
		MintID:     NewMint,
		TransferID: NewTransfer,
		BurnID:     NewBurn,
	} {
		if err := l.Register(id, f); err != nil {
			return err
		}
	}
	return nil
}

// Selectors returns routing entries for the built-in handlers, keyed by the
// Keccak selector of each method signature.
func Selectors() []selector.Entry {
	return []selector.Entry{
		{Selector: selectorOf(MintSignature), Handler: MintID},
		{Selector: selectorOf(TransferSignature), Handler: TransferID},
		{Selector: selectorOf(BurnSignature), Handler: BurnID},
	}
}

// Mint credits amount to the transaction sender.
type Mint struct{}

func NewMint() (handler.Handler, error) { return &Mint{}, nil }

func (*Mint) ProcessData(ctx context.Context, in handler.Input) (*handler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args, err := parseCallData(in.Transaction.Data)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	amount, err := args.uint256(0)
	if err != nil {
		return nil, fmt.Errorf("mint amount: %w", err)
	}
	return &handler.Result{
		Handler: MintID,
		Method:  "mint",
		Value: map[string]any{
			"to":     in.Transaction.From,
			"amount": amount.String(),
		},
		Metadata: txMetadata(in.Transaction),
	}, nil
}

// Transfer moves amount from the sender to an address.
type Transfer struct{}

func NewTransfer() (handler.Handler, error) { return &Transfer{}, nil }

func (*Transfer) ProcessData(ctx context.Context, in handler.Input) (*handler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args, err := parseCallData(in.Transaction.Data)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	to, err := args.address(0)
	if err != nil {
		return nil, fmt.Errorf("transfer recipient: %w", err)
	}
	amount, err := args.uint256(1)
	if err != nil {
		return nil, fmt.Errorf("transfer amount: %w", err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("transfer: zero amount")
	}
	return &handler.Result{
		Handler: TransferID,
		Method:  "transfer",
		Value: map[string]any{
			"from":   in.Transaction.From,
			"to":     to.Hex(),
			"amount": amount.String(),
		},
		Metadata: txMetadata(in.Transaction),
	}, nil
}

// Burn destroys amount of the sender's balance.
type Burn struct{}

func NewBurn() (handler.Handler, error) { return &Burn{}, nil }

func (*Burn) ProcessData(ctx context.Context, in handler.Input) (*handler.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args, err := parseCallData(in.Transaction.Data)
	if err != nil {
		return nil, fmt.Errorf("burn: %w", err)
	}
	amount, err := args.uint256(0)
	if err != nil {
		return nil, fmt.Errorf("burn amount: %w", err)
	}
	return &handler.Result{
		Handler: BurnID,
		Method:  "burn",
		Value: map[string]any{
			"from":   in.Transaction.From,
			"amount": amount.String(),
		},
		Metadata: txMetadata(in.Transaction),
	}, nil
}

func txMetadata(tx handler.RawTransaction) map[string]string {
	md := make(map[string]string, 2)
	if tx.Hash != "" {
		md["tx_hash"] = tx.Hash
	}
	if tx.ChainID != "" {
		md["chain_id"] = tx.ChainID
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
