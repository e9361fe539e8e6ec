package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/ledger"
	"zeroplus/course-app/internal/repository"
	"zeroplus/course-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrNotEnrolled          = errors.New("student is not enrolled in this course")
	ErrAssignmentNotVisible = errors.New("assignment is not available")
	ErrAssignmentLocked     = errors.New("assignment is locked for submissions")
	ErrFileTypeNotAllowed   = errors.New("file type is not allowed for this question")
	ErrNotFileQuestion      = errors.New("question does not take a file answer")
)

// AssignmentSummary is a row in the student's homework list. Submitted is
// derived from the submissions map.
type AssignmentSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AssignedAt    time.Time  `json:"assignedDate"`
	DueAt         *time.Time `json:"dueDate,omitempty"`
	Locked        bool       `json:"locked"`
	Submitted     bool       `json:"submitted"`
	QuestionCount int        `json:"questionCount"`
}

// StudentQuestion is a quiz question as shown to students: the reference
// answer never leaves the server.
type StudentQuestion struct {
	Type             domain.QuestionType `json:"type"`
	Text             string              `json:"text"`
	Points           int                 `json:"points"`
	Options          []string            `json:"options,omitempty"`
	AllowedFileTypes []string            `json:"allowedFileTypes,omitempty"`
}

// AssignmentView is the full assignment detail for an enrolled student.
type AssignmentView struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	AssignedAt  time.Time             `json:"assignedDate"`
	DueAt       *time.Time            `json:"dueDate,omitempty"`
	Locked      bool                  `json:"locked"`
	Quiz        []StudentQuestion     `json:"quiz,omitempty"`
	Files       []domain.AttachedFile `json:"files,omitempty"`
	Submitted   bool                  `json:"submitted"`
}

// CourseInfo is the course header shown to an enrolled student.
type CourseInfo struct {
	ID           string `json:"id"`
	Name         string `json:"courseName"`
	StudentCount int    `json:"studentCount"`
}

type StudentService interface {
	GetProfile(ctx context.Context, studentID primitive.ObjectID) (*domain.User, error)
	GetCourse(ctx context.Context, courseID primitive.ObjectID, studentID string) (*CourseInfo, error)
	ListVisibleAssignments(ctx context.Context, courseID primitive.ObjectID, studentID string, asOf time.Time) ([]AssignmentSummary, error)
	GetAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string) (*AssignmentView, error)
	RequestAnswerUploadURL(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, questionIndex int, fileName, contentType string) (*UploadURLResponse, error)
	Submit(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, answers []ledger.RawAnswer) (*domain.Submission, error)
	GetMySubmission(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string) (*MySubmissionView, error)
}

// MySubmissionView is a student's own submission with presigned download
// URLs for any file answers, keyed by question index.
type MySubmissionView struct {
	domain.Submission
	FileURLs map[int]string `json:"fileUrls,omitempty"`
}

// studentService implements the StudentService interface.
type studentService struct {
	courseRepo  repository.CourseRepository
	userRepo    repository.UserRepository
	fileStorage storage.FileStorage
}

// NewStudentService creates a new instance of studentService.
func NewStudentService(
	courseRepo repository.CourseRepository,
	userRepo repository.UserRepository,
	fileStorage storage.FileStorage,
) StudentService {
	return &studentService{
		courseRepo:  courseRepo,
		userRepo:    userRepo,
		fileStorage: fileStorage,
	}
}

// GetProfile returns the student's own record, including the enrollment
// package picked at sign-up.
func (s *studentService) GetProfile(ctx context.Context, studentID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// enrolledCourse loads the course and verifies the student is on its roster.
func (s *studentService) enrolledCourse(ctx context.Context, courseID primitive.ObjectID, studentID string) (*domain.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsEnrolled(studentID) {
		return nil, ErrNotEnrolled
	}
	return course, nil
}

// GetCourse returns the course header for an enrolled student.
func (s *studentService) GetCourse(ctx context.Context, courseID primitive.ObjectID, studentID string) (*CourseInfo, error) {
	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	return &CourseInfo{
		ID:           course.ID.Hex(),
		Name:         course.Name,
		StudentCount: len(course.Students),
	}, nil
}

// ListVisibleAssignments returns the posted, not-yet-due assignments as of
// the given time, each with the student's derived submitted flag.
func (s *studentService) ListVisibleAssignments(ctx context.Context, courseID primitive.ObjectID, studentID string, asOf time.Time) ([]AssignmentSummary, error) {
	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	visible := ledger.VisibleAssignments(course, asOf)
	summaries := make([]AssignmentSummary, len(visible))
	for i, hw := range visible {
		summaries[i] = AssignmentSummary{
			ID:            hw.ID,
			Name:          hw.Name,
			AssignedAt:    hw.AssignedAt,
			DueAt:         hw.DueAt,
			Locked:        hw.Locked,
			Submitted:     hw.HasSubmitted(studentID),
			QuestionCount: len(hw.Quiz),
		}
	}
	return summaries, nil
}

// GetAssignment returns the assignment detail with correct answers stripped.
// Unposted assignments are indistinguishable from absent ones.
func (s *studentService) GetAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string) (*AssignmentView, error) {
	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	assignment, _ := course.FindAssignment(assignmentID)
	if assignment == nil || !assignment.Posted {
		return nil, ErrAssignmentNotVisible
	}

	quiz := make([]StudentQuestion, len(assignment.Quiz))
	for i, q := range assignment.Quiz {
		quiz[i] = StudentQuestion{
			Type:             q.Type,
			Text:             q.Text,
			Points:           q.Points,
			Options:          q.Options,
			AllowedFileTypes: q.AllowedFileTypes,
		}
	}

	return &AssignmentView{
		ID:          assignment.ID,
		Name:        assignment.Name,
		Description: assignment.Description,
		AssignedAt:  assignment.AssignedAt,
		DueAt:       assignment.DueAt,
		Locked:      assignment.Locked,
		Quiz:        quiz,
		Files:       assignment.Files,
		Submitted:   assignment.HasSubmitted(studentID),
	}, nil
}

// RequestAnswerUploadURL generates a presigned PUT URL for a file-upload
// answer, after checking the question accepts the declared content type.
func (s *studentService) RequestAnswerUploadURL(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, questionIndex int, fileName, contentType string) (*UploadURLResponse, error) {
	if fileName == "" || contentType == "" {
		return nil, errors.New("file name and content type are required")
	}

	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	assignment, _ := course.FindAssignment(assignmentID)
	if assignment == nil || !assignment.Posted {
		return nil, ErrAssignmentNotVisible
	}
	if assignment.Locked {
		return nil, ErrAssignmentLocked
	}
	if questionIndex < 0 || questionIndex >= len(assignment.Quiz) {
		return nil, &ledger.NotFoundError{Kind: "answer", ID: fmt.Sprintf("%s[%d]", assignmentID, questionIndex)}
	}

	question := assignment.Quiz[questionIndex]
	if question.Type != domain.QuestionFileUpload {
		return nil, ErrNotFileQuestion
	}
	allowed := false
	for _, pattern := range question.AllowedFileTypes {
		if matchesMIMEPattern(pattern, contentType) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrFileTypeNotAllowed
	}

	objectKey := path.Join("submissions", courseID.Hex(), assignmentID, studentID,
		fmt.Sprintf("%d-%s-%s", questionIndex, uuid.NewString(), fileName))
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, &UploadError{FileName: fileName, Err: ErrUploadURLError}
	}

	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

// Submit grades the answers and records the submission under the student's
// key. A prior submission is replaced whole; the score is computed before
// anything is written, so a recorded submission always carries its score.
func (s *studentService) Submit(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, answers []ledger.RawAnswer) (*domain.Submission, error) {
	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	assignment, _ := course.FindAssignment(assignmentID)
	if assignment == nil || !assignment.Posted {
		return nil, ErrAssignmentNotVisible
	}
	if assignment.Locked {
		return nil, ErrAssignmentLocked
	}

	submission, err := ledger.BuildSubmission(assignment, studentID, answers, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.courseRepo.UpsertSubmission(ctx, courseID, assignmentID, submission); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotVisible
		}
		return nil, err
	}
	return &submission, nil
}

// GetMySubmission returns the student's own recorded submission with its
// score and presigned download URLs for file answers.
func (s *studentService) GetMySubmission(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string) (*MySubmissionView, error) {
	course, err := s.enrolledCourse(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	assignment, _ := course.FindAssignment(assignmentID)
	if assignment == nil || !assignment.Posted {
		return nil, ErrAssignmentNotVisible
	}

	submission, ok := assignment.SubmissionFor(studentID)
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "submission", ID: studentID}
	}

	view := &MySubmissionView{Submission: submission}
	for _, ans := range submission.Answers {
		if ans.FileURL == "" {
			continue
		}
		downloadURL, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, ans.FileURL, storage.DefaultPresignedURLExpiry)
		if err != nil {
			return nil, &UploadError{FileName: ans.OriginalFilename, Err: ErrDownloadURLError}
		}
		if view.FileURLs == nil {
			view.FileURLs = make(map[int]string)
		}
		view.FileURLs[ans.QuestionIndex] = downloadURL
	}
	return view, nil
}
