package membership

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ProofNumElements is the width of the Groth16 calldata encoding on BN254:
// two coordinates for point A, four for point B, two for point C.
const ProofNumElements = 8

// Proof is the fixed-width field-element vector a prover submits, in the
// calldata order [A.x, A.y, B.x1, B.x0, B.y1, B.y0, C.x, C.y]. It carries
// no state of its own; the engine consumes it and never stores it.
type Proof []*big.Int

type proofJSON struct {
	Ar  [2]string    `json:"ar"`
	Bs  [2][2]string `json:"bs"`
	Krs [2]string    `json:"krs"`
}

func (p Proof) MarshalJSON() ([]byte, error) {
	if len(p) != ProofNumElements {
		return nil, fmt.Errorf("proof has %d elements, expected %d", len(p), ProofNumElements)
	}
	var hex [ProofNumElements]string
	for i, e := range p {
		if e == nil {
			return nil, fmt.Errorf("proof element %d is nil", i)
		}
		hex[i] = ToHex(e)
	}
	return json.Marshal(proofJSON{
		Ar:  [2]string{hex[0], hex[1]},
		Bs:  [2][2]string{{hex[2], hex[3]}, {hex[4], hex[5]}},
		Krs: [2]string{hex[6], hex[7]},
	})
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var envelope proofJSON
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	hex := [ProofNumElements]string{
		envelope.Ar[0], envelope.Ar[1],
		envelope.Bs[0][0], envelope.Bs[0][1],
		envelope.Bs[1][0], envelope.Bs[1][1],
		envelope.Krs[0], envelope.Krs[1],
	}
	out := make(Proof, ProofNumElements)
	for i, s := range hex {
		out[i] = new(big.Int)
		if err := FromHex(out[i], s); err != nil {
			return fmt.Errorf("proof element %d: %w", i, err)
		}
	}
	*p = out
	return nil
}

// WellFormed reports whether the vector has the fixed proof-system width
// and no zero elements. A zero slot signals a placeholder, not a real
// cryptographic artifact.
func (p Proof) WellFormed() bool {
	if len(p) != ProofNumElements {
		return false
	}
	for _, e := range p {
		if e == nil || e.Sign() == 0 {
			return false
		}
	}
	return true
}
