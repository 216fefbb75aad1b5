package membership

import "math/big"

// ComputeRoot reduces an ordered list of member commitments to a single
// root. Leaves are paired left to right and hashed level by level; a
// trailing unpaired node is hashed against zero so that every node of a
// level sits at the same hash depth. The reduction terminates when one node
// remains.
//
// An empty leaf set yields the zero sentinel, distinguishable in practice
// from any Poseidon output. A single leaf is its own root.
//
// The root is a pure function of leaf values and order; it is recomputed in
// full on every membership mutation rather than updated incrementally.
func ComputeRoot(leaves []*big.Int) (*big.Int, error) {
	if len(leaves) == 0 {
		return big.NewInt(0), nil
	}

	level := make([]*big.Int, len(leaves))
	copy(level, leaves)

	zero := big.NewInt(0)
	for len(level) > 1 {
		next := make([]*big.Int, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := zero
			if i+1 < len(level) {
				right = level[i+1]
			}
			parent, err := hashPair(level[i], right)
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		level = next
	}
	return new(big.Int).Set(level[0]), nil
}
