package reconcile

// State is the stage of a payment attempt.
type State int

const (
	StateInitiated State = iota
	StateValidated
	StateSubmitted
	StateAwaitingVerification
	StateVerified
	StateMismatch
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateValidated:
		return "validated"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateVerified:
		return "verified"
	case StateMismatch:
		return "mismatch"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateMismatch || s == StateFailed
}
