// Package selector derives the sorted, deduplicated set of 4-byte function
// selectors a facet exposes, either from an explicit list in the release
// config or from its interface description.
package selector

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/hashing"
)

// Param is one function parameter's canonical Solidity type, e.g. "uint256"
// or "address[]". Tuple types are pre-expanded by the caller into their
// canonical "(...)" form before reaching this package.
type Param struct {
	Type string
}

// Function describes one entry of a facet's interface: a name and its
// ordered parameter list. Constructors, fallback, and receive entries must
// be excluded by the caller before calling Derive.
type Function struct {
	Name   string
	Inputs []Param
}

// Signature returns the canonical signature string "name(type1,type2,...)"
// with no spaces.
func (f Function) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, p := range f.Inputs {
		types[i] = canonicalType(p.Type)
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(types, ","))
}

// canonicalType normalizes a small set of Solidity type aliases the way
// solc does when computing selectors ("uint" -> "uint256", "int" ->
// "int256", and the same for the dynamic arrays "uint[]" and "int[]").
// Every other type, including tuples and fixed-size arrays, is passed
// through unchanged since the caller is expected to have already
// expanded them.
func canonicalType(t string) string {
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "uint[]":
		return "uint256[]"
	case "int[]":
		return "int256[]"
	default:
		return t
	}
}

// Selector computes the 4-byte selector for one function: the first 4
// bytes of keccak256 over its canonical signature.
func (f Function) Selector() hashing.Selector {
	digest := hashing.Keccak256([]byte(f.Signature()))
	var sel hashing.Selector
	copy(sel[:], digest[:4])
	return sel
}

// Derive computes the sorted, deduplicated selector set for a facet.
//
// If explicit is non-empty, it is used verbatim (sorted and deduplicated)
// and no derivation from fns is performed — explicit entries always take
// precedence. Otherwise selectors are derived from fns, which must already
// exclude constructor/fallback/receive entries.
//
// Fails with EmptySelectorSet if there is nothing to return.
func Derive(fns []Function, explicit []hashing.Selector) ([]hashing.Selector, error) {
	var selectors []hashing.Selector
	if len(explicit) > 0 {
		selectors = append(selectors, explicit...)
	} else {
		for _, fn := range fns {
			selectors = append(selectors, fn.Selector())
		}
	}

	if len(selectors) == 0 {
		return nil, coreerr.New(coreerr.KindEmptySelectorSet, "facet exposes no externally callable functions and no explicit selector list was given")
	}

	return sortDedup(selectors), nil
}

// sortDedup sorts selectors ascending by their 4-byte value and removes
// duplicates.
func sortDedup(in []hashing.Selector) []hashing.Selector {
	out := make([]hashing.Selector, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})

	deduped := out[:0]
	for i, sel := range out {
		if i == 0 || sel != out[i-1] {
			deduped = append(deduped, sel)
		}
	}
	return deduped
}

// IsSorted reports whether a selector slice is in strictly ascending
// order, used by the preflight validator to assert invariant §8.3.
func IsSorted(selectors []hashing.Selector) bool {
	for i := 1; i < len(selectors); i++ {
		if bytes.Compare(selectors[i-1][:], selectors[i][:]) >= 0 {
			return false
		}
	}
	return true
}
