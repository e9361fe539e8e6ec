package ledger

import (
	"testing"
	"time"

	"zeroplus/course-app/internal/domain"

	"github.com/stretchr/testify/require"
)

func quizAssignment() *domain.Assignment {
	return &domain.Assignment{
		ID:     "quiz-1",
		Name:   "Quiz 1",
		Posted: true,
		Quiz: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "2+2?", Points: 1, Options: []string{"3", "4"}, CorrectAnswer: "4"},
			{Type: domain.QuestionShortAnswer, Text: "Capital of France?", Points: 1, CorrectAnswer: "Paris"},
			{Type: domain.QuestionFileUpload, Text: "Upload your work", Points: 1, AllowedFileTypes: []string{"application/pdf"}},
		},
		Submissions: map[string]domain.Submission{},
	}
}

func TestBuildSubmission_GradesMultipleChoiceOnly(t *testing.T) {
	hw := quizAssignment()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "4"},
		{Value: "paris"},
		{FileURL: "submissions/c/quiz-1/student-1/2-abc-work.pdf", OriginalFilename: "work.pdf"},
	}, now)
	require.NoError(t, err)

	require.Equal(t, "student-1", sub.StudentID)
	require.Equal(t, now, sub.SubmittedAt)
	require.Len(t, sub.Answers, 3)

	// Multiple choice graded at submit time.
	require.NotNil(t, sub.Answers[0].IsCorrect)
	require.True(t, *sub.Answers[0].IsCorrect)
	// Short answer waits for manual grading.
	require.Nil(t, sub.Answers[1].IsCorrect)
	// File upload never gets a correctness verdict.
	require.Nil(t, sub.Answers[2].IsCorrect)
	require.Equal(t, "work.pdf", sub.Answers[2].OriginalFilename)

	// Only the one graded answer counts toward the score.
	require.Equal(t, domain.Score{Correct: 1, Total: 1, Percentage: 100}, sub.Score)
}

func TestBuildSubmission_WrongChoice(t *testing.T) {
	hw := quizAssignment()

	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "3"},
		{Value: "Lyon"},
		{FileURL: "key"},
	}, time.Now())
	require.NoError(t, err)

	require.False(t, *sub.Answers[0].IsCorrect)
	require.Equal(t, domain.Score{Correct: 0, Total: 1, Percentage: 0}, sub.Score)
}

func TestBuildSubmission_FailsFastOnFirstGap(t *testing.T) {
	hw := quizAssignment()

	// Too few answers: reported index is the first missing one.
	_, err := BuildSubmission(hw, "student-1", []RawAnswer{{Value: "4"}}, time.Now())
	var incErr *IncompleteSubmissionError
	require.ErrorAs(t, err, &incErr)
	require.Equal(t, 1, incErr.QuestionIndex)

	// Empty value counts as unanswered.
	_, err = BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: ""},
		{Value: ""},
		{FileURL: ""},
	}, time.Now())
	require.ErrorAs(t, err, &incErr)
	require.Equal(t, 0, incErr.QuestionIndex)

	// File question without an uploaded file is unanswered even with a value.
	_, err = BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "4"},
		{Value: "Paris"},
		{Value: "forgot to upload"},
	}, time.Now())
	require.ErrorAs(t, err, &incErr)
	require.Equal(t, 2, incErr.QuestionIndex)
}

func TestMarkShortAnswer_FullRescan(t *testing.T) {
	hw := quizAssignment()
	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "4"},
		{Value: "Paris"},
		{FileURL: "key"},
	}, time.Now())
	require.NoError(t, err)
	hw.Submissions["student-1"] = sub

	// 1 MC correct out of 1 graded.
	require.Equal(t, domain.Score{Correct: 1, Total: 1, Percentage: 100}, sub.Score)

	graded, err := MarkShortAnswer(hw, "student-1", 1, true)
	require.NoError(t, err)

	// Marking grows Total: 2 correct of 2 graded.
	require.Equal(t, domain.Score{Correct: 2, Total: 2, Percentage: 100}, graded.Score)
	require.True(t, *graded.Answers[1].IsCorrect)

	// Re-grading the same answer is a rescan, not an increment.
	regraded, err := MarkShortAnswer(hw, "student-1", 1, false)
	require.NoError(t, err)
	require.Equal(t, domain.Score{Correct: 1, Total: 2, Percentage: 50}, regraded.Score)

	// The assignment map holds the updated copy.
	stored := hw.Submissions["student-1"]
	require.Equal(t, regraded.Score, stored.Score)
}

func TestMarkShortAnswer_PercentageRounding(t *testing.T) {
	hw := &domain.Assignment{
		ID: "quiz-2",
		Quiz: []domain.Question{
			{Type: domain.QuestionMultipleChoice, Text: "a", Points: 1, Options: []string{"x", "y"}, CorrectAnswer: "x"},
			{Type: domain.QuestionMultipleChoice, Text: "b", Points: 1, Options: []string{"x", "y"}, CorrectAnswer: "x"},
			{Type: domain.QuestionShortAnswer, Text: "c", Points: 1, CorrectAnswer: "z"},
		},
		Submissions: map[string]domain.Submission{},
	}

	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "x"},
		{Value: "y"},
		{Value: "w"},
	}, time.Now())
	require.NoError(t, err)
	hw.Submissions["student-1"] = sub

	// 1 of 2 graded = 50%.
	require.Equal(t, 50, sub.Score.Percentage)

	graded, err := MarkShortAnswer(hw, "student-1", 2, true)
	require.NoError(t, err)

	// 2 of 3 graded rounds to 67%.
	require.Equal(t, domain.Score{Correct: 2, Total: 3, Percentage: 67}, graded.Score)
}

func TestMarkShortAnswer_Errors(t *testing.T) {
	hw := quizAssignment()

	var nfErr *NotFoundError
	_, err := MarkShortAnswer(hw, "nobody", 0, true)
	require.ErrorAs(t, err, &nfErr)
	require.Equal(t, "submission", nfErr.Kind)

	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "4"}, {Value: "Paris"}, {FileURL: "key"},
	}, time.Now())
	require.NoError(t, err)
	hw.Submissions["student-1"] = sub

	_, err = MarkShortAnswer(hw, "student-1", 3, true)
	require.ErrorAs(t, err, &nfErr)
	require.Equal(t, "answer", nfErr.Kind)

	_, err = MarkShortAnswer(hw, "student-1", -1, true)
	require.ErrorAs(t, err, &nfErr)
}

func TestResubmissionReplacesWhole(t *testing.T) {
	hw := quizAssignment()

	first, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "3"}, {Value: "Lyon"}, {FileURL: "key-1"},
	}, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	hw.Submissions["student-1"] = first

	second, err := BuildSubmission(hw, "student-1", []RawAnswer{
		{Value: "4"}, {Value: "Paris"}, {FileURL: "key-2"},
	}, time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	hw.Submissions["student-1"] = second

	stored := hw.Submissions["student-1"]
	require.Equal(t, "key-2", stored.Answers[2].FileURL)
	require.Equal(t, domain.Score{Correct: 1, Total: 1, Percentage: 100}, stored.Score)
	require.Len(t, hw.Submissions, 1, "at most one submission per student")
}

func TestScoreEmptyWhenNothingGraded(t *testing.T) {
	hw := &domain.Assignment{
		ID: "essay",
		Quiz: []domain.Question{
			{Type: domain.QuestionShortAnswer, Text: "Discuss.", Points: 5, CorrectAnswer: "n/a"},
		},
		Submissions: map[string]domain.Submission{},
	}

	sub, err := BuildSubmission(hw, "student-1", []RawAnswer{{Value: "My essay."}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, domain.Score{}, sub.Score, "no graded answers means a zero score, not a division by zero")
}
