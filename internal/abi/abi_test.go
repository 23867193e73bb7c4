package abi

import (
	"errors"
	"reflect"
	"testing"
)

const tokenABI = `[
  {
    "name": "transfer",
    "stateMutability": "nonpayable",
    "type": "function",
    "inputs": [
      {"name": "to", "type": "address", "internalType": "address"},
      {"name": "amount", "type": "uint256", "internalType": "uint256"}
    ],
    "outputs": [
      {"name": "", "type": "bool", "internalType": "bool"}
    ]
  },
  {
    "name": "balanceOf",
    "stateMutability": "view",
    "type": "function",
    "inputs": [{"name": "account", "type": "address", "internalType": "address"}],
    "outputs": [{"name": "", "type": "uint256", "internalType": "uint256"}]
  },
  {
    "stateMutability": "nonpayable",
    "type": "constructor",
    "inputs": [{"name": "supply", "type": "uint256", "internalType": "uint256"}]
  },
  {
    "name": "Transfer",
    "type": "event",
    "inputs": [
      {"name": "from", "type": "address", "internalType": "address"},
      {"name": "to", "type": "address", "internalType": "address"},
      {"name": "value", "type": "uint256", "internalType": "uint256"}
    ]
  }
]`

func TestParse_PreservesOrderAndFields(t *testing.T) {
	fns, err := Parse(tokenABI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fns) != 4 {
		t.Fatalf("len = %d, want 4", len(fns))
	}

	want := []struct {
		name, mutability, typ string
		inputs                int
	}{
		{"transfer", "nonpayable", "function", 2},
		{"balanceOf", "view", "function", 1},
		{"", "nonpayable", "constructor", 1},
		{"Transfer", "", "event", 3},
	}
	for i, w := range want {
		fn := fns[i]
		if fn.Name != w.name || fn.StateMutability != w.mutability || fn.Type != w.typ {
			t.Errorf("fns[%d] = %q/%q/%q, want %q/%q/%q", i, fn.Name, fn.StateMutability, fn.Type, w.name, w.mutability, w.typ)
		}
		if len(fn.Inputs) != w.inputs {
			t.Errorf("fns[%d] inputs = %d, want %d", i, len(fn.Inputs), w.inputs)
		}
	}

	if fns[0].Inputs[0].Name != "to" || fns[0].Inputs[1].Name != "amount" {
		t.Errorf("transfer inputs out of order: %+v", fns[0].Inputs)
	}
	if fns[0].Inputs[1].InternalType != "uint256" {
		t.Errorf("internalType = %q, want uint256", fns[0].Inputs[1].InternalType)
	}
	if fns[3].Outputs != nil {
		t.Errorf("event without outputs should have nil outputs, got %+v", fns[3].Outputs)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"not json":  "abi goes here",
		"truncated": `[{"name": "transfer"`,
		"object":    `{"name": "transfer"}`,
		"string":    `"transfer"`,
		"number":    `42`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			fns, err := Parse(doc)
			if err == nil {
				t.Fatalf("expected error, got %d functions", len(fns))
			}
			if !errors.Is(err, ErrMalformedABI) {
				t.Errorf("error %v should match ErrMalformedABI", err)
			}
			var malformed *MalformedABIError
			if !errors.As(err, &malformed) {
				t.Errorf("error %T should be *MalformedABIError", err)
			}
		})
	}
}

func TestParse_PartialEntriesDoNotAbort(t *testing.T) {
	doc := `[
		{"name": 7, "type": "function", "inputs": "nope"},
		{"type": "function", "inputs": [{"type": "address"}, 12]},
		"garbage",
		{}
	]`

	fns, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fns) != 4 {
		t.Fatalf("len = %d, want 4", len(fns))
	}
	if fns[0].Name != "" {
		t.Errorf("non-string name should be empty, got %q", fns[0].Name)
	}
	if fns[0].Inputs != nil {
		t.Errorf("non-array inputs should be nil, got %+v", fns[0].Inputs)
	}
	if len(fns[1].Inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(fns[1].Inputs))
	}
	if fns[1].Inputs[0].Type != "address" || fns[1].Inputs[0].Name != "" {
		t.Errorf("inputs[0] = %+v", fns[1].Inputs[0])
	}
	if !reflect.DeepEqual(fns[1].Inputs[1], ContractFunctionParameter{}) {
		t.Errorf("non-object parameter should be empty, got %+v", fns[1].Inputs[1])
	}
	if !reflect.DeepEqual(fns[2], ContractFunction{}) {
		t.Errorf("non-object entry should be empty, got %+v", fns[2])
	}
}

func TestParse_EmptyArray(t *testing.T) {
	fns, err := Parse(" [ ] ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(fns) != 0 {
		t.Errorf("len = %d, want 0", len(fns))
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	fns, err := Parse(tokenABI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	data, err := Marshal(fns)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	again, err := Parse(string(data))
	if err != nil {
		t.Fatalf("Parse round trip: %v", err)
	}
	if !reflect.DeepEqual(fns, again) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", again, fns)
	}
}

func TestMarshal_Nil(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Marshal(nil) = %s, want []", data)
	}
}

func TestParseWithObserver(t *testing.T) {
	var seen []string
	_, err := ParseWithObserver(tokenABI, func(i int, fn ContractFunction) {
		seen = append(seen, fn.Type)
		if i != len(seen)-1 {
			t.Errorf("index %d out of order", i)
		}
	})
	if err != nil {
		t.Fatalf("ParseWithObserver: %v", err)
	}
	want := []string{"function", "function", "constructor", "event"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("observed %v, want %v", seen, want)
	}
}

func TestSelector(t *testing.T) {
	fns, err := Parse(tokenABI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := fns[0].Signature(); got != "transfer(address,uint256)" {
		t.Errorf("Signature = %q", got)
	}
	if got := fns[0].Selector(); got != "a9059cbb" {
		t.Errorf("transfer selector = %q, want a9059cbb", got)
	}
	if got := fns[1].Selector(); got != "70a08231" {
		t.Errorf("balanceOf selector = %q, want 70a08231", got)
	}
	if got := fns[2].Selector(); got != "" {
		t.Errorf("constructor selector = %q, want empty", got)
	}
	if got := fns[3].Selector(); got != "" {
		t.Errorf("event selector = %q, want empty", got)
	}
}

func TestSignature_Tuple(t *testing.T) {
	fn := ContractFunction{
		Name: "submit",
		Type: TypeFunction,
		Inputs: []ContractFunctionParameter{
			{Name: "orders", Type: "tuple[]", Components: []ContractFunctionParameter{
				{Name: "maker", Type: "address"},
				{Name: "amount", Type: "uint256"},
			}},
			{Name: "nonce", Type: "uint64"},
		},
	}
	if got := fn.Signature(); got != "submit((address,uint256)[],uint64)" {
		t.Errorf("Signature = %q", got)
	}
}

func TestIndex(t *testing.T) {
	fns, err := Parse(tokenABI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	idx := Index(fns)
	if len(idx) != 2 {
		t.Fatalf("len(Index) = %d, want 2", len(idx))
	}
	if idx["a9059cbb"].Name != "transfer" {
		t.Errorf("a9059cbb -> %q", idx["a9059cbb"].Name)
	}
}

func TestContractFunction_String(t *testing.T) {
	fns, err := Parse(tokenABI)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "function transfer(address to, uint256 amount) nonpayable returns (bool)"
	if got := fns[0].String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}
