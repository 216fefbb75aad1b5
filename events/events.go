package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/limitlxx/kirito-sdk-sub003/logging"
)

type Type string

const (
	GroupCreated  Type = "group_created"
	MemberAdded   Type = "member_added"
	MemberRemoved Type = "member_removed"
	ProofVerified Type = "proof_verified"
	NullifierUsed Type = "nullifier_used"
)

// Event is a single audit record. Field-element values (admin, commitment,
// nullifier hash) are canonical 0x-prefixed hex strings; only the fields
// relevant to the record type are populated.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	GroupID       uint64    `json:"group_id,omitempty"`
	Admin         string    `json:"admin,omitempty"`
	Commitment    string    `json:"commitment,omitempty"`
	MemberCount   uint32    `json:"member_count,omitempty"`
	Signal        string    `json:"signal,omitempty"`
	NullifierHash string    `json:"nullifier_hash,omitempty"`
	EmittedAt     time.Time `json:"emitted_at"`
}

func New(eventType Type) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		EmittedAt: time.Now().UTC(),
	}
}

// Sink consumes audit records. Sinks are fire-and-forget: a sink must never
// fail the operation that emitted the record.
type Sink interface {
	Emit(event Event)
}

// Recorder is an in-memory sink for tests and introspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) ByType(eventType Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// LogSink writes every record as a structured log line.
type LogSink struct{}

func (LogSink) Emit(event Event) {
	logging.Logger().Info().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Uint64("group_id", event.GroupID).
		Str("commitment", event.Commitment).
		Str("nullifier_hash", event.NullifierHash).
		Uint32("member_count", event.MemberCount).
		Msg("audit record")
}

// MultiSink fans a record out to every configured sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}
