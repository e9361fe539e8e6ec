package ledger

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	suffixLength   = 9
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewAssignmentID builds a course-unique assignment ID:
// name-<assignedMillis>-<dueMillis>-<9 alphanumeric chars>.
// The prefix keeps the ID human-traceable; the suffix carries the entropy.
// Uniqueness is still checked against the course snapshot before commit
// (see NewAssignment), since the suffix is random, not guaranteed.
func NewAssignmentID(name string, assignedAt time.Time, dueAt time.Time) string {
	return fmt.Sprintf("%s-%d-%d-%s", name, assignedAt.UnixMilli(), dueAt.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	b := make([]byte, suffixLength)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
