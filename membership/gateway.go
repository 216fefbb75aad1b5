package membership

import (
	"encoding/hex"
	"math/big"

	"github.com/limitlxx/kirito-sdk-sub003/events"
	"github.com/limitlxx/kirito-sdk-sub003/logging"
)

// VerifyProof checks an anonymous membership attestation: that the prover
// belongs to the group behind the current root and is signaling `signal`
// under the given external nullifier. Checks run in order and short-circuit
// to false on the first failure; verification outcomes are never errors, so
// callers can branch on the boolean and use the call as a side-effect-free
// dry run.
//
// VerifyProof mutates nothing. Consuming the nullifier is a separate,
// explicit MarkNullifierUsed call made by the orchestrating caller after a
// true result; atomicity across that pair is the caller's concern.
func (e *Engine) VerifyProof(groupID uint64, signal []byte, nullifierHash, externalNullifier *big.Int, proof Proof) bool {
	e.mu.RLock()
	used := nullifierHash != nil && e.nullifiers[key(nullifierHash)]
	var root *big.Int
	if g, ok := e.groups[groupID]; ok {
		root = new(big.Int).Set(g.root)
	} else {
		root = big.NewInt(0)
	}
	verifier := e.verifier
	vkeyID := e.vkeyID
	e.mu.RUnlock()

	if used {
		return false
	}
	// A zero root means the group is absent or empty; an empty group has no
	// members to prove membership of.
	if root.Sign() == 0 {
		return false
	}
	if !proof.WellFormed() {
		return false
	}
	if nullifierHash == nil || nullifierHash.Sign() == 0 {
		return false
	}
	if externalNullifier == nil || externalNullifier.Sign() == 0 {
		return false
	}

	signalHash, err := HashSignal(signal)
	if err != nil {
		logging.Logger().Warn().Err(err).Uint64("group_id", groupID).Msg("signal hashing failed")
		return false
	}

	publicInputs := []*big.Int{root, nullifierHash, signalHash, externalNullifier}

	// No verifier capability configured: fail closed, never open.
	if verifier == nil {
		logging.Logger().Warn().Uint64("group_id", groupID).Msg("proof rejected: no verifier capability configured")
		return false
	}

	valid, err := verifier.VerifyProof(proof, publicInputs, vkeyID)
	if err != nil {
		// An unreachable or failing verifier is indistinguishable from an
		// invalid proof as far as callers are concerned.
		logging.Logger().Warn().Err(err).
			Uint64("group_id", groupID).
			Str("vkey_id", vkeyID).
			Msg("verifier delegation failed")
		return false
	}
	if !valid {
		return false
	}

	event := events.New(events.ProofVerified)
	event.GroupID = groupID
	event.Signal = "0x" + hex.EncodeToString(signal)
	event.NullifierHash = ToHex(nullifierHash)
	e.emit(event)
	return true
}
