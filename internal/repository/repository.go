package repository

import (
	"context"

	"zeroplus/course-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound = RepositoryError("not found")
	// ErrTransactionConflict means a conditional course write lost the race
	// against a concurrent writer even after the bounded retries.
	ErrTransactionConflict = RepositoryError("course update conflict")
	ErrAlreadyExists       = RepositoryError("already exists")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// CourseRepository defines the interface for interacting with course
// documents. The homework collection is embedded in the course document, so
// every mutation that touches it goes through UpdateAssignments'
// read-compute-write cycle, except per-student submission upserts which use
// a keyed write (UpsertSubmission) and therefore never collide with each
// other.
type CourseRepository interface {
	Create(ctx context.Context, course *domain.Course) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Course, error)
	List(ctx context.Context) ([]domain.Course, error)

	// UpdateAssignments loads the course, applies mutate to the in-memory
	// snapshot and writes the homework collection back conditionally on the
	// document being unchanged since the read. The cycle retries from a
	// fresh read on conflict, bounded, then fails with
	// ErrTransactionConflict. An error returned by mutate aborts without
	// retrying and is propagated as-is.
	UpdateAssignments(ctx context.Context, id primitive.ObjectID, mutate func(*domain.Course) error) (*domain.Course, error)

	// UpsertSubmission writes one student's submission under its key in the
	// assignment's submissions map without reserializing the homework array,
	// so concurrent submissions from different students never erase each
	// other.
	UpsertSubmission(ctx context.Context, id primitive.ObjectID, assignmentID string, submission domain.Submission) error

	AddStudent(ctx context.Context, id primitive.ObjectID, studentID string) error
	RemoveStudent(ctx context.Context, id primitive.ObjectID, studentID string) error
}
