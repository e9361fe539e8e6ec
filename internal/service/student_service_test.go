package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/ledger"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type studentFixture struct {
	svc        StudentService
	admin      AdminService
	courseRepo *fakeCourseRepo
	userRepo   *fakeUserRepo
	store      *fakeStorage
	courseID   primitive.ObjectID
	studentID  string
}

// newStudentFixture builds a course with one enrolled student and one posted,
// unlocked quiz assignment.
func newStudentFixture(t *testing.T, quiz []domain.Question) (*studentFixture, *domain.Assignment) {
	t.Helper()
	courseRepo := newFakeCourseRepo()
	userRepo := newFakeUserRepo()
	store := &fakeStorage{}
	admin := NewAdminService(courseRepo, userRepo, store)
	svc := NewStudentService(courseRepo, userRepo, store)

	course, err := admin.CreateCourse(context.Background(), "Math")
	require.NoError(t, err)
	student := userRepo.put(domain.User{Name: "An", Email: "an@example.com", Role: domain.RoleStudent})
	_, err = admin.EnrollStudentByEmail(context.Background(), course.ID, student.Email)
	require.NoError(t, err)

	due := ledger.TruncateToDay(time.Now().AddDate(0, 0, 7))
	created, err := admin.CreateAssignment(context.Background(), course.ID, ledger.AssignmentDraft{
		Name:  "Quiz 1",
		DueAt: &due,
		Quiz:  quiz,
	}, ledger.InsertAppend)
	require.NoError(t, err)

	_, err = admin.TogglePosted(context.Background(), course.ID, created.ID)
	require.NoError(t, err)
	_, err = admin.ToggleLocked(context.Background(), course.ID, created.ID)
	require.NoError(t, err)

	return &studentFixture{
		svc:        svc,
		admin:      admin,
		courseRepo: courseRepo,
		userRepo:   userRepo,
		store:      store,
		courseID:   course.ID,
		studentID:  student.ID.Hex(),
	}, created
}

func standardQuiz() []domain.Question {
	return []domain.Question{
		{Type: domain.QuestionMultipleChoice, Text: "2+2?", Points: 1, Options: []string{"3", "4"}, CorrectAnswer: "4"},
		{Type: domain.QuestionShortAnswer, Text: "Capital of France?", Points: 1, CorrectAnswer: "Paris"},
	}
}

func TestGetCourse(t *testing.T) {
	fx, _ := newStudentFixture(t, standardQuiz())

	info, err := fx.svc.GetCourse(context.Background(), fx.courseID, fx.studentID)
	require.NoError(t, err)
	require.Equal(t, "Math", info.Name)
	require.Equal(t, 1, info.StudentCount)

	_, err = fx.svc.GetCourse(context.Background(), fx.courseID, "stranger")
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = fx.svc.GetCourse(context.Background(), primitive.NewObjectID(), fx.studentID)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestListVisibleAssignments(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	// A second, unposted assignment must not show up.
	due := ledger.TruncateToDay(time.Now().AddDate(0, 0, 3))
	_, err := fx.admin.CreateAssignment(context.Background(), fx.courseID, ledger.AssignmentDraft{
		Name:  "Hidden draft",
		DueAt: &due,
	}, ledger.InsertAppend)
	require.NoError(t, err)

	summaries, err := fx.svc.ListVisibleAssignments(context.Background(), fx.courseID, fx.studentID, time.Now())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, created.ID, summaries[0].ID)
	require.False(t, summaries[0].Submitted)
	require.Equal(t, 2, summaries[0].QuestionCount)

	// After submitting, the derived flag flips.
	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"}, {Value: "Paris"},
	})
	require.NoError(t, err)

	summaries, err = fx.svc.ListVisibleAssignments(context.Background(), fx.courseID, fx.studentID, time.Now())
	require.NoError(t, err)
	require.True(t, summaries[0].Submitted)
}

func TestGetAssignment_StripsAnswers(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	view, err := fx.svc.GetAssignment(context.Background(), fx.courseID, created.ID, fx.studentID)
	require.NoError(t, err)
	require.Equal(t, created.ID, view.ID)
	require.Len(t, view.Quiz, 2)
	require.Equal(t, []string{"3", "4"}, view.Quiz[0].Options)

	// Unposted assignments are indistinguishable from missing ones.
	_, err = fx.admin.TogglePosted(context.Background(), fx.courseID, created.ID)
	require.NoError(t, err)
	_, err = fx.svc.GetAssignment(context.Background(), fx.courseID, created.ID, fx.studentID)
	require.ErrorIs(t, err, ErrAssignmentNotVisible)

	_, err = fx.svc.GetAssignment(context.Background(), fx.courseID, "missing", fx.studentID)
	require.ErrorIs(t, err, ErrAssignmentNotVisible)
}

func TestSubmit(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	sub, err := fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"}, {Value: "paris"},
	})
	require.NoError(t, err)
	require.Equal(t, fx.studentID, sub.StudentID)
	require.Equal(t, domain.Score{Correct: 1, Total: 1, Percentage: 100}, sub.Score)

	stored, _ := fx.courseRepo.GetByID(context.Background(), fx.courseID)
	assignment, _ := stored.FindAssignment(created.ID)
	require.True(t, assignment.HasSubmitted(fx.studentID))
}

func TestSubmit_Guards(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	_, err := fx.svc.Submit(context.Background(), fx.courseID, created.ID, "stranger", nil)
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{{Value: "4"}})
	var incErr *ledger.IncompleteSubmissionError
	require.ErrorAs(t, err, &incErr)

	_, err = fx.admin.ToggleLocked(context.Background(), fx.courseID, created.ID)
	require.NoError(t, err)
	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"}, {Value: "Paris"},
	})
	require.ErrorIs(t, err, ErrAssignmentLocked)
}

// deleteRacingRepo lets an admin delete land between the service's read and
// the keyed submission write, exercising the repository contract that the
// write must miss (not silently no-op) when the assignment is gone.
type deleteRacingRepo struct {
	*fakeCourseRepo
}

func (r *deleteRacingRepo) UpsertSubmission(ctx context.Context, id primitive.ObjectID, assignmentID string, submission domain.Submission) error {
	_, _ = r.fakeCourseRepo.UpdateAssignments(ctx, id, func(course *domain.Course) error {
		ledger.RemoveAssignment(course, assignmentID)
		return nil
	})
	return r.fakeCourseRepo.UpsertSubmission(ctx, id, assignmentID, submission)
}

func TestSubmit_AssignmentDeletedBetweenReadAndWrite(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	racing := NewStudentService(&deleteRacingRepo{fakeCourseRepo: fx.courseRepo}, fx.userRepo, fx.store)
	_, err := racing.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"}, {Value: "Paris"},
	})
	require.ErrorIs(t, err, ErrAssignmentNotVisible)

	// Nothing was recorded: the write missed instead of reporting success.
	stored, _ := fx.courseRepo.GetByID(context.Background(), fx.courseID)
	assignment, _ := stored.FindAssignment(created.ID)
	require.Nil(t, assignment)
}

func TestSubmit_KeyedWritesDoNotCollide(t *testing.T) {
	fx, created := newStudentFixture(t, standardQuiz())

	second := fx.userRepo.put(domain.User{Name: "Binh", Email: "binh@example.com", Role: domain.RoleStudent})
	_, err := fx.admin.EnrollStudentByEmail(context.Background(), fx.courseID, second.Email)
	require.NoError(t, err)

	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"}, {Value: "Paris"},
	})
	require.NoError(t, err)
	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, second.ID.Hex(), []ledger.RawAnswer{
		{Value: "3"}, {Value: "Lyon"},
	})
	require.NoError(t, err)

	stored, _ := fx.courseRepo.GetByID(context.Background(), fx.courseID)
	assignment, _ := stored.FindAssignment(created.ID)
	require.Len(t, assignment.Submissions, 2, "each student's submission lands under its own key")
}

func TestRequestAnswerUploadURL(t *testing.T) {
	fx, created := newStudentFixture(t, []domain.Question{
		{Type: domain.QuestionShortAnswer, Text: "Explain.", Points: 1, CorrectAnswer: "n/a"},
		{Type: domain.QuestionFileUpload, Text: "Upload a photo", Points: 1, AllowedFileTypes: []string{"image/*"}},
	})

	resp, err := fx.svc.RequestAnswerUploadURL(context.Background(), fx.courseID, created.ID, fx.studentID, 1, "photo.png", "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.ObjectKey, "submissions/"+fx.courseID.Hex()+"/"+created.ID+"/"+fx.studentID+"/"))
	require.True(t, strings.HasSuffix(resp.ObjectKey, "-photo.png"))

	_, err = fx.svc.RequestAnswerUploadURL(context.Background(), fx.courseID, created.ID, fx.studentID, 1, "doc.pdf", "application/pdf")
	require.ErrorIs(t, err, ErrFileTypeNotAllowed)

	_, err = fx.svc.RequestAnswerUploadURL(context.Background(), fx.courseID, created.ID, fx.studentID, 0, "doc.pdf", "application/pdf")
	require.ErrorIs(t, err, ErrNotFileQuestion)

	var nfErr *ledger.NotFoundError
	_, err = fx.svc.RequestAnswerUploadURL(context.Background(), fx.courseID, created.ID, fx.studentID, 5, "doc.pdf", "application/pdf")
	require.ErrorAs(t, err, &nfErr)
}

func TestGetMySubmission(t *testing.T) {
	fx, created := newStudentFixture(t, []domain.Question{
		{Type: domain.QuestionMultipleChoice, Text: "2+2?", Points: 1, Options: []string{"3", "4"}, CorrectAnswer: "4"},
		{Type: domain.QuestionFileUpload, Text: "Upload", Points: 1, AllowedFileTypes: []string{"*/*"}},
	})

	_, err := fx.svc.GetMySubmission(context.Background(), fx.courseID, created.ID, fx.studentID)
	var nfErr *ledger.NotFoundError
	require.ErrorAs(t, err, &nfErr)

	_, err = fx.svc.Submit(context.Background(), fx.courseID, created.ID, fx.studentID, []ledger.RawAnswer{
		{Value: "4"},
		{FileURL: "submissions/x/work.zip", OriginalFilename: "work.zip"},
	})
	require.NoError(t, err)

	view, err := fx.svc.GetMySubmission(context.Background(), fx.courseID, created.ID, fx.studentID)
	require.NoError(t, err)
	require.Equal(t, domain.Score{Correct: 1, Total: 1, Percentage: 100}, view.Score)
	require.Equal(t, "https://signed.example/get/submissions/x/work.zip", view.FileURLs[1])
}

func TestGetProfile(t *testing.T) {
	fx, _ := newStudentFixture(t, standardQuiz())

	id, err := primitive.ObjectIDFromHex(fx.studentID)
	require.NoError(t, err)

	user, err := fx.svc.GetProfile(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "an@example.com", user.Email)
	require.Empty(t, user.PasswordHash)

	_, err = fx.svc.GetProfile(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, ErrStudentNotFound)
}
