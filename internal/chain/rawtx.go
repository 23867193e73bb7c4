// Package chain decodes signed transactions into dispatch input.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/liquichain/contract_layer/internal/handler"
)

// ErrEmptyTransaction is returned for blank input.
var ErrEmptyTransaction = errors.New("empty raw transaction")

// DecodeRawTransaction parses a hex-encoded, signed transaction in either the
// legacy RLP or the typed envelope encoding and recovers its sender.
func DecodeRawTransaction(rawHex string) (handler.RawTransaction, error) {
	rawHex = strings.TrimSpace(rawHex)
	if rawHex == "" {
		return handler.RawTransaction{}, ErrEmptyTransaction
	}
	if !strings.HasPrefix(rawHex, "0x") && !strings.HasPrefix(rawHex, "0X") {
		rawHex = "0x" + rawHex
	}

	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return handler.RawTransaction{}, fmt.Errorf("decode raw transaction hex: %w", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return handler.RawTransaction{}, fmt.Errorf("decode raw transaction: %w", err)
	}

	out := handler.RawTransaction{
		Hash:     tx.Hash().Hex(),
		Nonce:    tx.Nonce(),
		GasLimit: tx.Gas(),
		Data:     hexutil.Encode(tx.Data()),
	}
	if to := tx.To(); to != nil {
		out.To = to.Hex()
	}
	if v := tx.Value(); v != nil {
		out.Value = v.String()
	}
	if p := tx.GasPrice(); p != nil {
		out.GasPrice = p.String()
	}

	// Unprotected legacy transactions report chain id 0 and need the
	// Homestead signer, which LatestSignerForChainID returns for nil.
	chainID := tx.ChainId()
	if chainID != nil && chainID.Sign() > 0 {
		out.ChainID = chainID.String()
	} else {
		chainID = nil
	}

	signer := types.LatestSignerForChainID(chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return handler.RawTransaction{}, fmt.Errorf("recover transaction sender: %w", err)
	}
	out.From = from.Hex()

	return out, nil
}
