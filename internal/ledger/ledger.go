// Package ledger holds the pure assignment-ledger logic: building and
// mutating a course's homework collection and grading submissions. All
// functions here transform in-memory snapshots; durability and conflict
// detection live in the repository layer.
package ledger

import (
	"time"

	"zeroplus/course-app/internal/domain"
)

// InsertPolicy controls where a new assignment lands in the course's
// homework sequence.
type InsertPolicy int

const (
	// InsertByAssignedDate places the assignment before the first existing
	// one with a later assigned date, keeping the list chronological.
	InsertByAssignedDate InsertPolicy = iota
	// InsertAppend always appends, preserving raw creation order.
	InsertAppend
)

// AssignmentDraft is the authoring input for a new assignment.
type AssignmentDraft struct {
	Name        string
	Description string
	DueAt       *time.Time
	Quiz        []domain.Question
	Files       []domain.AttachedFile
}

// AssignmentPatch is a partial update to an existing assignment. Nil fields
// are left untouched. ID, assigned date and submissions are never patched.
type AssignmentPatch struct {
	Name        *string
	Description *string
	DueAt       *time.Time
	Quiz        []domain.Question
	Files       []domain.AttachedFile
}

// NewAssignment validates a draft against the course snapshot and returns a
// fully populated assignment: assignedDate = now truncated to local midnight,
// posted=false, locked=true, empty submissions. The generated ID is checked
// for collisions against the snapshot and regenerated until unique.
func NewAssignment(course *domain.Course, draft AssignmentDraft, now time.Time) (domain.Assignment, error) {
	if draft.Name == "" {
		return domain.Assignment{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if draft.DueAt == nil {
		return domain.Assignment{}, &ValidationError{Field: "dueDate", Reason: "required"}
	}

	assignedAt := TruncateToDay(now)
	if draft.DueAt.Before(assignedAt) {
		return domain.Assignment{}, &ValidationError{Field: "dueDate", Reason: "must not be before the assigned date"}
	}
	if err := ValidateQuiz(draft.Quiz); err != nil {
		return domain.Assignment{}, err
	}

	id := NewAssignmentID(draft.Name, assignedAt, *draft.DueAt)
	for existing, _ := course.FindAssignment(id); existing != nil; existing, _ = course.FindAssignment(id) {
		id = NewAssignmentID(draft.Name, assignedAt, *draft.DueAt)
	}

	due := *draft.DueAt
	return domain.Assignment{
		ID:          id,
		Name:        draft.Name,
		Description: draft.Description,
		AssignedAt:  assignedAt,
		DueAt:       &due,
		Posted:      false,
		Locked:      true,
		Quiz:        draft.Quiz,
		Files:       draft.Files,
		Submissions: map[string]domain.Submission{},
	}, nil
}

// InsertAssignment places the assignment into the course's homework sequence
// according to the given policy.
func InsertAssignment(course *domain.Course, assignment domain.Assignment, policy InsertPolicy) {
	if policy == InsertByAssignedDate {
		for i := range course.Homework {
			if course.Homework[i].AssignedAt.After(assignment.AssignedAt) {
				course.Homework = append(course.Homework[:i],
					append([]domain.Assignment{assignment}, course.Homework[i:]...)...)
				return
			}
		}
	}
	course.Homework = append(course.Homework, assignment)
}

// ApplyAssignmentPatch updates the mutable fields of the assignment matching
// id. Immutable fields (id, assignedDate, submissions) are untouched
// regardless of patch content.
func ApplyAssignmentPatch(course *domain.Course, id string, patch AssignmentPatch) (*domain.Assignment, error) {
	assignment, _ := course.FindAssignment(id)
	if assignment == nil {
		return nil, &NotFoundError{Kind: "assignment", ID: id}
	}

	if patch.DueAt != nil && patch.DueAt.Before(assignment.AssignedAt) {
		return nil, &ValidationError{Field: "dueDate", Reason: "must not be before the assigned date"}
	}
	if patch.Quiz != nil {
		if err := ValidateQuiz(patch.Quiz); err != nil {
			return nil, err
		}
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "required"}
		}
		assignment.Name = *patch.Name
	}
	if patch.Description != nil {
		assignment.Description = *patch.Description
	}
	if patch.DueAt != nil {
		due := *patch.DueAt
		assignment.DueAt = &due
	}
	if patch.Quiz != nil {
		assignment.Quiz = patch.Quiz
	}
	if patch.Files != nil {
		assignment.Files = patch.Files
	}
	return assignment, nil
}

// TogglePosted flips visibility to students and returns the new value.
func TogglePosted(course *domain.Course, id string) (bool, error) {
	assignment, _ := course.FindAssignment(id)
	if assignment == nil {
		return false, &NotFoundError{Kind: "assignment", ID: id}
	}
	assignment.Posted = !assignment.Posted
	return assignment.Posted, nil
}

// ToggleLocked flips whether students may still submit and returns the new
// value. Independent of Posted.
func ToggleLocked(course *domain.Course, id string) (bool, error) {
	assignment, _ := course.FindAssignment(id)
	if assignment == nil {
		return false, &NotFoundError{Kind: "assignment", ID: id}
	}
	assignment.Locked = !assignment.Locked
	return assignment.Locked, nil
}

// RemoveAssignment deletes the assignment matching id. Idempotent: removing
// an absent id is a no-op and reports false.
func RemoveAssignment(course *domain.Course, id string) bool {
	_, i := course.FindAssignment(id)
	if i < 0 {
		return false
	}
	course.Homework = append(course.Homework[:i], course.Homework[i+1:]...)
	return true
}

// VisibleAssignments returns the assignments a student may see as of the
// given time: posted, and not past due. The due-date comparison is at day
// granularity so an assignment due today stays visible through the whole day.
func VisibleAssignments(course *domain.Course, asOf time.Time) []domain.Assignment {
	today := TruncateToDay(asOf)
	visible := make([]domain.Assignment, 0, len(course.Homework))
	for _, hw := range course.Homework {
		if !hw.Posted {
			continue
		}
		if hw.DueAt != nil && TruncateToDay(*hw.DueAt).Before(today) {
			continue
		}
		visible = append(visible, hw)
	}
	return visible
}

// ValidateQuiz checks the authoring rules for each question: text and
// points >= 1 always; multiple choice needs at least two distinct non-empty
// options with the correct answer among them; short answer needs a reference
// answer; file upload needs at least one allowed MIME pattern.
func ValidateQuiz(quiz []domain.Question) error {
	for _, q := range quiz {
		if q.Text == "" {
			return &ValidationError{Field: "question.text", Reason: "required"}
		}
		if q.Points < 1 {
			return &ValidationError{Field: "question.points", Reason: "must be at least 1"}
		}
		switch q.Type {
		case domain.QuestionMultipleChoice:
			if len(q.Options) < 2 {
				return &ValidationError{Field: "question.options", Reason: "at least 2 options required"}
			}
			seen := make(map[string]bool, len(q.Options))
			for _, opt := range q.Options {
				if opt == "" {
					return &ValidationError{Field: "question.options", Reason: "options must not be empty"}
				}
				if seen[opt] {
					return &ValidationError{Field: "question.options", Reason: "options must be distinct"}
				}
				seen[opt] = true
			}
			if !seen[q.CorrectAnswer] {
				return &ValidationError{Field: "question.correctAnswer", Reason: "must match one of the options"}
			}
		case domain.QuestionShortAnswer:
			if q.CorrectAnswer == "" {
				return &ValidationError{Field: "question.correctAnswer", Reason: "required"}
			}
		case domain.QuestionFileUpload:
			if len(q.AllowedFileTypes) == 0 {
				return &ValidationError{Field: "question.allowedFileTypes", Reason: "at least one file type required"}
			}
		default:
			return &ValidationError{Field: "question.type", Reason: "unknown question type"}
		}
	}
	return nil
}

// TruncateToDay strips the time-of-day component.
func TruncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
