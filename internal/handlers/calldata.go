package handlers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrShortCallData   = errors.New("call data too short")
	ErrInvalidCallData = errors.New("call data is not valid hex")
)

const wordSize = 32

// callData is ABI-encoded arguments with the 4-byte selector removed.
type callData []byte

func parseCallData(data string) (callData, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(data)), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallData, err)
	}
	if len(raw) < 4 {
		return nil, ErrShortCallData
	}
	return callData(raw[4:]), nil
}

func (c callData) word(i int) ([]byte, error) {
	start := i * wordSize
	if start+wordSize > len(c) {
		return nil, fmt.Errorf("%w: argument %d needs %d bytes, have %d", ErrShortCallData, i, start+wordSize, len(c))
	}
	return c[start : start+wordSize], nil
}

func (c callData) uint256(i int) (*big.Int, error) {
	w, err := c.word(i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// Addresses are right-aligned in their 32-byte word.
func (c callData) address(i int) (common.Address, error) {
	w, err := c.word(i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[12:]), nil
}

func selectorOf(signature string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(signature))[:4])
}
