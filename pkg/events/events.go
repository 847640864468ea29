// Package events provides structured diagnostic events emitted by the core.
// Emitters replace ad hoc console output so callers and tests can observe
// corrections, invariant violations, and payment state transitions.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Type identifies a diagnostic event.
type Type string

const (
	// TotalPaidReconstructed: a record without totalPaid was rebuilt from installmentsPaid.
	TotalPaidReconstructed Type = "total_paid_reconstructed"
	// TotalPaidClamped: a paid total was negative or above the total amount.
	TotalPaidClamped Type = "total_paid_clamped"
	// StatusHealed: a status flag disagreed with the balance and was corrected.
	StatusHealed Type = "status_healed"
	// ActiveDebtExcluded: a debt with an outstanding balance was not classified as active.
	ActiveDebtExcluded Type = "active_debt_excluded"
	// PaymentStateChanged: a payment attempt moved to a new state.
	PaymentStateChanged Type = "payment_state_changed"
	// VerificationRetry: the first verification did not match and a retry is scheduled.
	VerificationRetry Type = "verification_retry"
)

// Event is a single diagnostic.
type Event struct {
	Type      Type
	ExpenseID string
	Message   string
	Attrs     map[string]any
}

// Emitter receives diagnostic events. Implementations must not block.
type Emitter interface {
	Emit(Event)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// OrDiscard returns e, or Discard when e is nil.
func OrDiscard(e Emitter) Emitter {
	if e == nil {
		return Discard
	}
	return e
}

// LogEmitter writes events to a slog.Logger.
type LogEmitter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEmitter creates a LogEmitter. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger, level slog.Level) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, level: level}
}

// Emit logs the event with its attributes.
func (l *LogEmitter) Emit(e Event) {
	args := make([]any, 0, 4+2*len(e.Attrs))
	args = append(args, "event", string(e.Type))
	if e.ExpenseID != "" {
		args = append(args, "expense_id", e.ExpenseID)
	}
	for k, v := range e.Attrs {
		args = append(args, k, v)
	}
	l.logger.Log(context.Background(), l.level, e.Message, args...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans an event out to several emitters.
type Multi []Emitter

// Emit forwards e to every emitter.
func (m Multi) Emit(e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(e)
		}
	}
}
