package domain

import "fmt"

type Status string

const (
	Pending   Status = "pending"
	Committed Status = "committed"
	Failed    Status = "failed"
)

// CanTransition reports whether a record may move from one status to another.
// Committed and failed are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case Pending:
		return to == Committed || to == Failed
	case Committed:
		return false
	case Failed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
