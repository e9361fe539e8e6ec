package ledger

import (
	"fmt"
	"math"
	"time"

	"zeroplus/course-app/internal/domain"
)

// RawAnswer is a student's ungraded answer to one question, index-aligned to
// the assignment's quiz.
type RawAnswer struct {
	Value            string
	FileURL          string
	OriginalFilename string
}

// BuildSubmission grades the raw answers against the assignment's quiz and
// returns the submission to record. Every question must be answered; for
// file-upload questions the file must already be uploaded and its URL passed
// in. The check fails fast with the first missing index. Multiple choice is
// graded by string equality to the correct answer; short answers stay
// ungraded until an admin marks them; file uploads have no correctness.
func BuildSubmission(assignment *domain.Assignment, studentID string, answers []RawAnswer, now time.Time) (domain.Submission, error) {
	if len(answers) < len(assignment.Quiz) {
		return domain.Submission{}, &IncompleteSubmissionError{QuestionIndex: len(answers)}
	}

	graded := make([]domain.Answer, len(assignment.Quiz))
	for i, q := range assignment.Quiz {
		raw := answers[i]
		answer := domain.Answer{QuestionIndex: i}

		switch q.Type {
		case domain.QuestionFileUpload:
			if raw.FileURL == "" {
				return domain.Submission{}, &IncompleteSubmissionError{QuestionIndex: i}
			}
			answer.FileURL = raw.FileURL
			answer.OriginalFilename = raw.OriginalFilename
		case domain.QuestionMultipleChoice:
			if raw.Value == "" {
				return domain.Submission{}, &IncompleteSubmissionError{QuestionIndex: i}
			}
			answer.Value = raw.Value
			correct := raw.Value == q.CorrectAnswer
			answer.IsCorrect = &correct
		default: // short answer: recorded now, graded later
			if raw.Value == "" {
				return domain.Submission{}, &IncompleteSubmissionError{QuestionIndex: i}
			}
			answer.Value = raw.Value
		}
		graded[i] = answer
	}

	return domain.Submission{
		StudentID:   studentID,
		SubmittedAt: now,
		Answers:     graded,
		Score:       computeScore(graded),
	}, nil
}

// MarkShortAnswer records a manual verdict for one answer of a student's
// submission and recomputes the score. The recompute is a full rescan over
// every graded answer, not an incremental adjustment, so repeated re-grades
// of the same answer stay correct. Returns the updated submission.
func MarkShortAnswer(assignment *domain.Assignment, studentID string, questionIndex int, verdict bool) (domain.Submission, error) {
	sub, ok := assignment.Submissions[studentID]
	if !ok {
		return domain.Submission{}, &NotFoundError{Kind: "submission", ID: studentID}
	}
	if questionIndex < 0 || questionIndex >= len(sub.Answers) {
		return domain.Submission{}, &NotFoundError{Kind: "answer", ID: fmt.Sprintf("%s[%d]", assignment.ID, questionIndex)}
	}

	v := verdict
	sub.Answers[questionIndex].IsCorrect = &v
	sub.Score = computeScore(sub.Answers)
	assignment.Submissions[studentID] = sub
	return sub, nil
}

// computeScore aggregates over answers whose correctness is defined. At
// submit time that is exactly the multiple-choice answers; after manual
// grading it also covers the marked short answers.
func computeScore(answers []domain.Answer) domain.Score {
	var correct, total int
	for _, a := range answers {
		if a.IsCorrect == nil {
			continue
		}
		total++
		if *a.IsCorrect {
			correct++
		}
	}
	if total == 0 {
		return domain.Score{}
	}
	return domain.Score{
		Correct:    correct,
		Total:      total,
		Percentage: int(math.Round(float64(correct) / float64(total) * 100)),
	}
}
