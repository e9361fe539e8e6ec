package ledger

import "fmt"

// ValidationError reports a missing or invalid field on authoring input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that an assignment, submission or answer slot is
// absent from the current course snapshot.
type NotFoundError struct {
	Kind string // "assignment", "submission", "answer"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IncompleteSubmissionError names the first unanswered question of a
// submission attempt. Submit fails fast on the first gap rather than
// collecting all of them.
type IncompleteSubmissionError struct {
	QuestionIndex int
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("question %d is not answered", e.QuestionIndex+1)
}
