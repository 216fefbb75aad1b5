// Package verifier provides the Groth16 verification capability consumed by
// the membership engine. Proofs arrive as the 8-element BN254 calldata
// vector; the package rebuilds the gnark proof object and public witness
// and delegates the pairing check to gnark.
package verifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"

	"github.com/limitlxx/kirito-sdk-sub003/logging"
	"github.com/limitlxx/kirito-sdk-sub003/membership"
)

const fpSize = 32

// GnarkVerifier verifies membership proofs against verification keys loaded
// at startup, keyed by verification-key id. It is injected into the engine
// via membership.WithVerifier and is safe for concurrent use: the key set
// is immutable after construction.
type GnarkVerifier struct {
	keys map[string]groth16.VerifyingKey
}

func NewGnarkVerifier(keys map[string]groth16.VerifyingKey) *GnarkVerifier {
	return &GnarkVerifier{keys: keys}
}

// HasKey reports whether a verification key is loaded under the given id.
func (v *GnarkVerifier) HasKey(keyID string) bool {
	_, ok := v.keys[keyID]
	return ok
}

// VerifyProof implements membership.ProofVerifier. Unknown key ids and
// undecodable proof points are reported as errors so the gateway can log
// the cause; a proof that simply fails the pairing check is (false, nil).
func (v *GnarkVerifier) VerifyProof(proof membership.Proof, publicInputs []*big.Int, keyID string) (bool, error) {
	vk, ok := v.keys[keyID]
	if !ok {
		return false, fmt.Errorf("no verification key loaded for id %q", keyID)
	}

	gnarkProof, err := reconstructProof(proof)
	if err != nil {
		return false, fmt.Errorf("decode proof: %w", err)
	}

	publicWitness, err := buildPublicWitness(publicInputs)
	if err != nil {
		return false, fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(gnarkProof, vk, publicWitness); err != nil {
		logging.Logger().Debug().Err(err).Str("vkey_id", keyID).Msg("pairing check failed")
		return false, nil
	}
	return true, nil
}

// reconstructProof rebuilds a gnark Groth16 proof from its calldata
// encoding. The 8 scalars are laid out exactly as WriteRawTo serializes the
// three proof points, so re-serializing them and reading back yields the
// original object. gnark v0.14 appends commitment fields to the raw
// encoding; those are zero for circuits without commitments, so the buffer
// is padded out to the expected size.
func reconstructProof(proof membership.Proof) (groth16.Proof, error) {
	if len(proof) != membership.ProofNumElements {
		return nil, fmt.Errorf("proof has %d elements, expected %d", len(proof), membership.ProofNumElements)
	}

	proofBytes := make([]byte, membership.ProofNumElements*fpSize)
	for i, e := range proof {
		if e == nil {
			return nil, fmt.Errorf("proof element %d is nil", i)
		}
		intBytes := e.Bytes()
		if len(intBytes) > fpSize {
			return nil, fmt.Errorf("proof element %d exceeds %d bytes", i, fpSize)
		}
		copy(proofBytes[i*fpSize+fpSize-len(intBytes):(i+1)*fpSize], intBytes)
	}

	var tempBuf bytes.Buffer
	if _, err := groth16.NewProof(ecc.BN254).WriteRawTo(&tempBuf); err != nil {
		return nil, err
	}
	expectedSize := tempBuf.Len()

	var fullBuf bytes.Buffer
	fullBuf.Write(proofBytes)
	if expectedSize > len(proofBytes) {
		fullBuf.Write(make([]byte, expectedSize-len(proofBytes)))
	}

	gnarkProof := groth16.NewProof(ecc.BN254)
	if _, err := gnarkProof.ReadFrom(bytes.NewReader(fullBuf.Bytes())); err != nil {
		return nil, err
	}
	return gnarkProof, nil
}

func buildPublicWitness(publicInputs []*big.Int) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	chValues := make(chan any)
	go func() {
		defer close(chValues)
		for _, input := range publicInputs {
			chValues <- new(big.Int).Set(input)
		}
	}()
	if err := w.Fill(len(publicInputs), 0, chValues); err != nil {
		return nil, err
	}
	return w, nil
}
