package chain

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var testChainID = big.NewInt(1337)

func signedRaw(t *testing.T, data types.TxData, chainID *big.Int) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), data)
	if err != nil {
		t.Fatalf("SignNewTx: %v", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return hexutil.Encode(raw), crypto.PubkeyToAddress(key.PublicKey)
}

func TestDecodeRawTransaction_DynamicFee(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	callData := common.FromHex("0xa1b2c3d40000000000000000000000000000000000000000000000000000000000000001")

	raw, from := signedRaw(t, &types.DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(42),
		Data:      callData,
	}, testChainID)

	tx, err := DecodeRawTransaction(raw)
	if err != nil {
		t.Fatalf("DecodeRawTransaction: %v", err)
	}
	if tx.From != from.Hex() {
		t.Errorf("From = %s, want %s", tx.From, from.Hex())
	}
	if tx.To != to.Hex() {
		t.Errorf("To = %s, want %s", tx.To, to.Hex())
	}
	if tx.Nonce != 7 || tx.GasLimit != 21000 || tx.Value != "42" || tx.ChainID != "1337" {
		t.Errorf("tx = %+v", tx)
	}
	if tx.Data != hexutil.Encode(callData) {
		t.Errorf("Data = %s", tx.Data)
	}
	if !strings.HasPrefix(tx.Hash, "0x") || len(tx.Hash) != 66 {
		t.Errorf("Hash = %s", tx.Hash)
	}
}

func TestDecodeRawTransaction_LegacyWithoutPrefix(t *testing.T) {
	raw, from := signedRaw(t, &types.LegacyTx{
		Nonce:    1,
		GasPrice: big.NewInt(10),
		Gas:      50000,
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	}, testChainID)

	tx, err := DecodeRawTransaction(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		t.Fatalf("DecodeRawTransaction: %v", err)
	}
	if tx.From != from.Hex() {
		t.Errorf("From = %s, want %s", tx.From, from.Hex())
	}
	if tx.To != "" {
		t.Errorf("contract creation should have empty To, got %s", tx.To)
	}
	if tx.GasPrice != "10" || tx.Data != "0xdeadbeef" {
		t.Errorf("tx = %+v", tx)
	}
}

func TestDecodeRawTransaction_Errors(t *testing.T) {
	if _, err := DecodeRawTransaction("   "); !errors.Is(err, ErrEmptyTransaction) {
		t.Errorf("err = %v, want ErrEmptyTransaction", err)
	}
	for _, raw := range []string{"0xzz", "0x01", "c0ffee"} {
		if _, err := DecodeRawTransaction(raw); err == nil {
			t.Errorf("DecodeRawTransaction(%q) should fail", raw)
		}
	}
}
