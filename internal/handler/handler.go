// Package handler defines the contract-method handler capability and the
// loader that turns handler identifiers into fresh handler instances.
//
// Concrete handlers live in their own packages and register a Factory under a
// string identifier at startup. The dispatcher only ever sees identifiers from
// its selector table and resolves them here; it never imports a handler.
package handler

import (
	"context"
)

// Handler processes one dispatched contract call.
type Handler interface {
	ProcessData(ctx context.Context, in Input) (*Result, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, in Input) (*Result, error)

// ProcessData calls f.
func (f HandlerFunc) ProcessData(ctx context.Context, in Input) (*Result, error) {
	return f(ctx, in)
}

// Factory constructs a handler with no arguments. Each dispatch calls the
// factory again, so handlers must not rely on state surviving between calls.
type Factory func() (Handler, error)

// RawTransaction is the decoded form of a submitted transaction.
type RawTransaction struct {
	Hash     string `json:"hash,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Nonce    uint64 `json:"nonce"`
	Value    string `json:"value,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
	ChainID  string `json:"chainId,omitempty"`

	// Data is the hex-encoded call data, with or without "0x".
	Data string `json:"data"`
}

// Input is one dispatch request. The dispatcher treats it as read-only.
type Input struct {
	RequestID   string         `json:"requestId,omitempty"`
	Transaction RawTransaction `json:"transaction"`
	Params      map[string]any `json:"params,omitempty"`
}

// Result is the handler-defined outcome of a dispatch.
type Result struct {
	// Handler and Method are filled in by the dispatcher when left empty. The
	// dispatcher fills a copy, so a handler may return a shared Result.
	Handler string `json:"handler,omitempty"`
	Method  string `json:"method,omitempty"`

	Value    any               `json:"value,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
