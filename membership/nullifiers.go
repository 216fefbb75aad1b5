package membership

import (
	"math/big"

	"github.com/limitlxx/kirito-sdk-sub003/events"
)

// IsNullifierUsed reports whether a nullifier hash has been consumed. The
// set is global across groups: a nullifier is spendable at most once, ever.
func (e *Engine) IsNullifierUsed(nullifierHash *big.Int) bool {
	if nullifierHash == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nullifiers[key(nullifierHash)]
}

// MarkNullifierUsed consumes a nullifier hash unconditionally. It performs
// no proof checking of its own; the caller must have already established,
// via VerifyProof, that the nullifier was unused and the proof valid.
// Records are permanent: there is no expiry and no deletion.
func (e *Engine) MarkNullifierUsed(nullifierHash *big.Int) {
	if nullifierHash == nil {
		return
	}
	e.mu.Lock()
	e.nullifiers[key(nullifierHash)] = true
	e.mu.Unlock()

	event := events.New(events.NullifierUsed)
	event.NullifierHash = ToHex(nullifierHash)
	e.emit(event)
}
