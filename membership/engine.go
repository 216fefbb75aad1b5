package membership

import (
	"math/big"
	"sync"

	"github.com/limitlxx/kirito-sdk-sub003/events"
)

// ProofVerifier is the external verification capability the gateway
// delegates to. The pairing-check algorithm, trusted-setup artifacts and
// curve arithmetic all live behind this interface; the engine only consumes
// the boolean outcome.
type ProofVerifier interface {
	VerifyProof(proof Proof, publicInputs []*big.Int, keyID string) (bool, error)
}

type group struct {
	admin *big.Int
	// slots is the dense, 0-based member array; index maps a commitment to
	// its slot. The two must agree for every active member, and every read
	// path re-validates the slot contents rather than trusting the index.
	slots []*big.Int
	index map[string]uint32
	root  *big.Int
}

// Engine owns all shared mutable state: group metadata, member slots, the
// reverse index and the consumed-nullifier set. No other component writes
// it; every mutation runs to completion under the engine lock, so each
// operation is atomic relative to all others.
type Engine struct {
	mu         sync.RWMutex
	owner      *big.Int
	groups     map[uint64]*group
	nullifiers map[string]bool
	verifier   ProofVerifier
	vkeyID     string
	sink       events.Sink
}

type Option func(*Engine)

// WithOwner sets the global owner identity, which may change any group's
// admin in addition to the group admin itself.
func WithOwner(owner *big.Int) Option {
	return func(e *Engine) {
		e.owner = new(big.Int).Set(owner)
	}
}

// WithVerifier configures the proof verification capability and the
// verification-key id used for every delegated check. Without a verifier
// the gateway fails closed: VerifyProof returns false for every input.
func WithVerifier(verifier ProofVerifier, keyID string) Option {
	return func(e *Engine) {
		e.verifier = verifier
		e.vkeyID = keyID
	}
}

func WithSink(sink events.Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		groups:     make(map[uint64]*group),
		nullifiers: make(map[string]bool),
		sink:       events.LogSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) emit(event events.Event) {
	e.sink.Emit(event)
}

// authorize is the single admin check shared by every mutating group
// operation.
func (e *Engine) authorize(caller *big.Int, g *group) error {
	if caller == nil {
		return ErrUnauthorized
	}
	if g.admin != nil && g.admin.Cmp(caller) == 0 {
		return nil
	}
	if e.owner != nil && e.owner.Cmp(caller) == 0 {
		return nil
	}
	return ErrUnauthorized
}

func key(commitment *big.Int) string {
	return commitment.Text(16)
}
