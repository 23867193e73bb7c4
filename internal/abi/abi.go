// Package abi parses contract ABI documents into function descriptors.
//
// The parser is lenient inside the document: an entry with missing or
// wrongly-typed fields yields empty attributes instead of failing the parse.
// Only a document that is not JSON, or whose top level is not an array, is
// rejected. Descriptors are used to describe the contract surface and to
// name matched methods; they play no part in routing.
package abi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tidwall/gjson"
)

// Entry types defined by the Solidity ABI specification.
const (
	TypeFunction    = "function"
	TypeConstructor = "constructor"
	TypeEvent       = "event"
	TypeError       = "error"
	TypeFallback    = "fallback"
	TypeReceive     = "receive"
)

// ErrMalformedABI is the sentinel matched by every MalformedABIError.
var ErrMalformedABI = errors.New("malformed ABI")

// MalformedABIError reports a document that cannot be read as an ABI array.
type MalformedABIError struct {
	Reason string
}

func (e *MalformedABIError) Error() string {
	return fmt.Sprintf("malformed ABI: %s", e.Reason)
}

func (e *MalformedABIError) Unwrap() error {
	return ErrMalformedABI
}

// ContractFunctionParameter is one argument or return slot of a function.
type ContractFunctionParameter struct {
	Name         string                      `json:"name"`
	Type         string                      `json:"type"`
	InternalType string                      `json:"internalType"`
	Components   []ContractFunctionParameter `json:"components,omitempty"`
}

// ContractFunction is one entry of a parsed ABI document.
type ContractFunction struct {
	Name            string                      `json:"name"`
	StateMutability string                      `json:"stateMutability"`
	Type            string                      `json:"type"`
	Inputs          []ContractFunctionParameter `json:"inputs"`
	Outputs         []ContractFunctionParameter `json:"outputs"`
}

// Observer receives each decoded entry, in document order.
type Observer func(index int, fn ContractFunction)

// Parse decodes an ABI document.
func Parse(abiJSON string) ([]ContractFunction, error) {
	return ParseWithObserver(abiJSON, nil)
}

// ParseWithObserver decodes an ABI document and reports every entry to obs.
// A nil observer is allowed.
func ParseWithObserver(abiJSON string, obs Observer) ([]ContractFunction, error) {
	if !gjson.Valid(abiJSON) {
		return nil, &MalformedABIError{Reason: "document is not valid JSON"}
	}

	doc := gjson.Parse(abiJSON)
	if !doc.IsArray() {
		return nil, &MalformedABIError{Reason: "top-level value is not an array"}
	}

	entries := doc.Array()
	fns := make([]ContractFunction, 0, len(entries))
	for i, entry := range entries {
		fn := decodeFunction(entry)
		fns = append(fns, fn)
		if obs != nil {
			obs(i, fn)
		}
	}
	return fns, nil
}

// Marshal renders functions back into an ABI JSON array.
func Marshal(fns []ContractFunction) ([]byte, error) {
	if fns == nil {
		fns = []ContractFunction{}
	}
	return json.Marshal(fns)
}

func decodeFunction(entry gjson.Result) ContractFunction {
	return ContractFunction{
		Name:            stringField(entry, "name"),
		StateMutability: stringField(entry, "stateMutability"),
		Type:            stringField(entry, "type"),
		Inputs:          decodeParameters(entry.Get("inputs")),
		Outputs:         decodeParameters(entry.Get("outputs")),
	}
}

func decodeParameters(list gjson.Result) []ContractFunctionParameter {
	if !list.IsArray() {
		return nil
	}

	items := list.Array()
	params := make([]ContractFunctionParameter, 0, len(items))
	for _, item := range items {
		params = append(params, ContractFunctionParameter{
			Name:         stringField(item, "name"),
			Type:         stringField(item, "type"),
			InternalType: stringField(item, "internalType"),
			Components:   decodeParameters(item.Get("components")),
		})
	}
	return params
}

func stringField(obj gjson.Result, key string) string {
	if !obj.IsObject() {
		return ""
	}
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// IsFunction reports whether the entry is a callable function. The ABI
// specification treats an omitted type as "function".
func (f ContractFunction) IsFunction() bool {
	return f.Type == TypeFunction || (f.Type == "" && f.Name != "")
}

// Signature returns the canonical form used for selector hashing,
// e.g. "transfer(address,uint256)".
func (f ContractFunction) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = canonicalType(in)
	}
	return f.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector returns the lowercase hex of the first four bytes of the
// Keccak-256 hash of the signature. It is empty for non-function entries.
func (f ContractFunction) Selector() string {
	if !f.IsFunction() || f.Name == "" {
		return ""
	}
	return hex.EncodeToString(crypto.Keccak256([]byte(f.Signature()))[:4])
}

func (f ContractFunction) String() string {
	var b strings.Builder
	kind := f.Type
	if kind == "" {
		kind = TypeFunction
	}
	b.WriteString(kind)
	if f.Name != "" {
		b.WriteString(" ")
		b.WriteString(f.Name)
	}
	b.WriteString("(")
	b.WriteString(describeParameters(f.Inputs))
	b.WriteString(")")
	if f.StateMutability != "" {
		b.WriteString(" ")
		b.WriteString(f.StateMutability)
	}
	if len(f.Outputs) > 0 {
		b.WriteString(" returns (")
		b.WriteString(describeParameters(f.Outputs))
		b.WriteString(")")
	}
	return b.String()
}

func describeParameters(params []ContractFunctionParameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p.Name == "" {
			parts[i] = p.Type
		} else {
			parts[i] = p.Type + " " + p.Name
		}
	}
	return strings.Join(parts, ", ")
}

// canonicalType expands tuple types into their component list, keeping any
// array suffix: "tuple[]" with components (address,uint256) becomes
// "(address,uint256)[]".
func canonicalType(p ContractFunctionParameter) string {
	if !strings.HasPrefix(p.Type, "tuple") {
		return p.Type
	}
	inner := make([]string, len(p.Components))
	for i, c := range p.Components {
		inner[i] = canonicalType(c)
	}
	return "(" + strings.Join(inner, ",") + ")" + strings.TrimPrefix(p.Type, "tuple")
}

// Index maps the selector of every function entry to its descriptor. When two
// entries hash to the same selector the first one is kept.
func Index(fns []ContractFunction) map[string]ContractFunction {
	idx := make(map[string]ContractFunction, len(fns))
	for _, fn := range fns {
		sel := fn.Selector()
		if sel == "" {
			continue
		}
		if _, exists := idx[sel]; !exists {
			idx[sel] = fn
		}
	}
	return idx
}
