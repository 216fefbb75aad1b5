package membership

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// FromHex parses a 0x-prefixed (or bare) hex scalar into i.
func FromHex(i *big.Int, s string) error {
	s = strings.TrimPrefix(s, "0x")
	_, ok := i.SetString(s, 16)
	if !ok {
		return fmt.Errorf("invalid number: %s", s)
	}
	return nil
}

// ToHex renders i as the canonical 32-byte 0x-prefixed hex string used on
// every wire surface of the engine.
func ToHex(i *big.Int) string {
	return fmt.Sprintf("0x%064x", i)
}

// hashPair computes the parent of two tree nodes. The same permutation is
// used for signal hashing so that every value the circuit sees lives in one
// hash domain.
func hashPair(left, right *big.Int) (*big.Int, error) {
	return poseidon.Hash([]*big.Int{left, right})
}

// HashSignal maps an arbitrary signal byte string into the scalar field.
func HashSignal(signal []byte) (*big.Int, error) {
	return poseidon.HashBytes(signal)
}
