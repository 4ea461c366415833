package distribution

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a lowercase 0x-prefixed hex account address. Two addresses are equal
// iff their normalized strings are equal; ordering is plain byte order.
type Address string

// NormalizeAddress lowercases and trims s without validating it.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// ParseAddress validates s as a 20-byte hex address and returns its normalized form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return NormalizeAddress(common.HexToAddress(s).Hex()), nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// Compare orders addresses lexicographically.
func (a Address) Compare(b Address) int {
	return strings.Compare(string(a), string(b))
}

func sortedKeys[V any](m map[Address]V) []Address {
	keys := make([]Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Address.Compare)
	return keys
}
