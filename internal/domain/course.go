package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QuestionType tags the kind of quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionFileUpload     QuestionType = "file_upload"
)

// Question is one quiz question inside an assignment.
// Options/CorrectAnswer/AllowedFileTypes are populated depending on Type.
type Question struct {
	Type             QuestionType `bson:"type" json:"type"`
	Text             string       `bson:"text" json:"text"`
	Points           int          `bson:"points" json:"points"`
	Options          []string     `bson:"options,omitempty" json:"options,omitempty"`                   // multiple_choice
	CorrectAnswer    string       `bson:"correctAnswer,omitempty" json:"correctAnswer,omitempty"`       // multiple_choice, short_answer
	AllowedFileTypes []string     `bson:"allowedFileTypes,omitempty" json:"allowedFileTypes,omitempty"` // file_upload, MIME patterns like "image/*"
}

// Answer is one student's answer to the question at QuestionIndex.
// IsCorrect is nil until graded: multiple choice answers are graded at submit
// time, short answers stay nil until an admin marks them, file uploads are
// never auto-graded.
type Answer struct {
	QuestionIndex    int    `bson:"questionIndex" json:"questionIndex"`
	Value            string `bson:"value,omitempty" json:"value,omitempty"`
	FileURL          string `bson:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	OriginalFilename string `bson:"originalFilename,omitempty" json:"originalFilename,omitempty"`
	IsCorrect        *bool  `bson:"isCorrect,omitempty" json:"isCorrect,omitempty"`
}

// Score aggregates graded answers. Total counts only answers whose IsCorrect
// is set, so marking a short answer grows Total and reshapes Percentage.
type Score struct {
	Correct    int `bson:"correct" json:"correct"`
	Total      int `bson:"total" json:"total"`
	Percentage int `bson:"percentage" json:"percentage"`
}

// Submission is one student's recorded answer set for one assignment.
// At most one per student; resubmitting replaces it whole.
type Submission struct {
	StudentID   string    `bson:"studentId" json:"studentId"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
	Answers     []Answer  `bson:"answers" json:"answers"`
	Score       Score     `bson:"score" json:"score"`
}

// AttachedFile is a guide file attached to an assignment by an admin.
type AttachedFile struct {
	Name string `bson:"name" json:"name"`
	URL  string `bson:"url" json:"url"`
}

// Assignment is one homework/quiz unit embedded in a course document.
// ID and AssignedAt are immutable once set. Submissions is keyed by student
// ID so concurrent writes from different students never collide.
type Assignment struct {
	ID          string                `bson:"id" json:"id"`
	Name        string                `bson:"name" json:"name"`
	Description string                `bson:"description,omitempty" json:"description,omitempty"`
	AssignedAt  time.Time             `bson:"assignedDate" json:"assignedDate"`
	DueAt       *time.Time            `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	Posted      bool                  `bson:"posted" json:"posted"`
	Locked      bool                  `bson:"locked" json:"locked"`
	Quiz        []Question            `bson:"quiz,omitempty" json:"quiz,omitempty"`
	Files       []AttachedFile        `bson:"files,omitempty" json:"files,omitempty"`
	Submissions map[string]Submission `bson:"submissions" json:"submissions"`
}

// HasSubmitted reports whether the student has a recorded submission.
// Derived from the submissions map; there is no separately maintained flag.
func (a *Assignment) HasSubmitted(studentID string) bool {
	_, ok := a.Submissions[studentID]
	return ok
}

// SubmissionFor returns the student's submission, if any.
func (a *Assignment) SubmissionFor(studentID string) (Submission, bool) {
	sub, ok := a.Submissions[studentID]
	return sub, ok
}

// Course is the top-level container: enrolled students plus the ordered
// homework collection. Revision backs the conditional writes in the mongo
// repository; every write that touches Homework bumps it.
type Course struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"courseName" json:"courseName"`
	Students  []string           `bson:"students" json:"students"` // user IDs (hex)
	Homework  []Assignment       `bson:"homework" json:"homework"`
	Revision  int64              `bson:"revision" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FindAssignment returns the assignment with the given ID and its position,
// or (nil, -1) when absent.
func (c *Course) FindAssignment(id string) (*Assignment, int) {
	for i := range c.Homework {
		if c.Homework[i].ID == id {
			return &c.Homework[i], i
		}
	}
	return nil, -1
}

// IsEnrolled reports whether the student ID appears in the course roster.
func (c *Course) IsEnrolled(studentID string) bool {
	for _, id := range c.Students {
		if id == studentID {
			return true
		}
	}
	return false
}
