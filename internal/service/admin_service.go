package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/ledger"
	"zeroplus/course-app/internal/repository"
	"zeroplus/course-app/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrStudentNotFound    = errors.New("student user not found")
	ErrStudentNotRole     = errors.New("user found but is not a student")
	ErrConcurrentUpdate   = errors.New("course was modified concurrently, please retry")
	ErrUploadURLError     = errors.New("failed to generate upload URL")
	ErrDownloadURLError   = errors.New("failed to generate download URL")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// UploadError reports a blob-store failure together with the file it was for.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for %q: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UploadURLResponse carries a presigned PUT URL plus the object key the
// client must report back once the upload is done. The key doubles as the
// stored file URL; it is opaque to the ledger.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// CourseOverview is a course enriched with the enrolled students' emails for
// the admin dashboard.
type CourseOverview struct {
	Course        domain.Course `json:"course"`
	StudentEmails []string      `json:"studentEmails"`
}

// SubmissionView is one student's submission enriched with presigned
// download URLs for any file answers.
type SubmissionView struct {
	Submission   domain.Submission `json:"submission"`
	StudentEmail string            `json:"studentEmail,omitempty"`
	FileURLs     map[int]string    `json:"fileUrls,omitempty"` // questionIndex -> presigned GET
}

type AdminService interface {
	// Course & enrollment management
	CreateCourse(ctx context.Context, name string) (*domain.Course, error)
	ListCourses(ctx context.Context) ([]CourseOverview, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	EnrollStudentByEmail(ctx context.Context, courseID primitive.ObjectID, email string) (*domain.User, error)
	RemoveStudent(ctx context.Context, courseID primitive.ObjectID, studentID string) error

	// Assignment authoring
	CreateAssignment(ctx context.Context, courseID primitive.ObjectID, draft ledger.AssignmentDraft, policy ledger.InsertPolicy) (*domain.Assignment, error)
	UpdateAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID string, patch ledger.AssignmentPatch) (*domain.Assignment, error)
	TogglePosted(ctx context.Context, courseID primitive.ObjectID, assignmentID string) (bool, error)
	ToggleLocked(ctx context.Context, courseID primitive.ObjectID, assignmentID string) (bool, error)
	DeleteAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID string) error
	RequestGuideUploadURL(ctx context.Context, fileName, contentType string) (*UploadURLResponse, error)

	// Grading
	ListSubmissions(ctx context.Context, courseID primitive.ObjectID, assignmentID string) ([]SubmissionView, error)
	GradeShortAnswer(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, questionIndex int, verdict bool) (*domain.Submission, error)
}

// adminService implements the AdminService interface.
type adminService struct {
	courseRepo  repository.CourseRepository
	userRepo    repository.UserRepository
	fileStorage storage.FileStorage
}

// NewAdminService creates a new instance of adminService.
func NewAdminService(
	courseRepo repository.CourseRepository,
	userRepo repository.UserRepository,
	fileStorage storage.FileStorage,
) AdminService {
	return &adminService{
		courseRepo:  courseRepo,
		userRepo:    userRepo,
		fileStorage: fileStorage,
	}
}

// === Course & Enrollment Management ===

// CreateCourse creates an empty course.
func (s *adminService) CreateCourse(ctx context.Context, name string) (*domain.Course, error) {
	if name == "" {
		return nil, &ledger.ValidationError{Field: "courseName", Reason: "required"}
	}
	course := &domain.Course{Name: name}
	courseID, err := s.courseRepo.Create(ctx, course)
	if err != nil {
		return nil, err
	}
	course.ID = courseID
	return course, nil
}

// ListCourses returns all courses with the enrolled students' emails
// resolved for display.
func (s *adminService) ListCourses(ctx context.Context) ([]CourseOverview, error) {
	courses, err := s.courseRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	// Resolve emails through one user listing rather than a lookup per
	// roster entry.
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	emailsByID := make(map[string]string, len(users))
	for _, u := range users {
		emailsByID[u.ID.Hex()] = u.Email
	}

	overviews := make([]CourseOverview, len(courses))
	for i, course := range courses {
		emails := make([]string, len(course.Students))
		for j, studentID := range course.Students {
			if email, ok := emailsByID[studentID]; ok {
				emails[j] = email
			} else {
				emails[j] = "deleted user"
			}
		}
		overviews[i] = CourseOverview{Course: course, StudentEmails: emails}
	}
	return overviews, nil
}

// ListUsers returns every registered user for the admin dashboard.
func (s *adminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// EnrollStudentByEmail finds a student by email and adds them to the course roster.
func (s *adminService) EnrollStudentByEmail(ctx context.Context, courseID primitive.ObjectID, email string) (*domain.User, error) {
	if courseID == primitive.NilObjectID || email == "" {
		return nil, errors.New("course ID and student email are required")
	}

	student, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if student.Role != domain.RoleStudent {
		return nil, ErrStudentNotRole
	}

	// $addToSet in the repository makes re-enrolling a no-op.
	if err := s.courseRepo.AddStudent(ctx, courseID, student.ID.Hex()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	student.PasswordHash = ""
	return student, nil
}

// RemoveStudent removes a student from the course roster.
func (s *adminService) RemoveStudent(ctx context.Context, courseID primitive.ObjectID, studentID string) error {
	if courseID == primitive.NilObjectID || studentID == "" {
		return errors.New("course ID and student ID are required")
	}
	err := s.courseRepo.RemoveStudent(ctx, courseID, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCourseNotFound
	}
	return err
}

// === Assignment Authoring ===

// CreateAssignment validates the draft, generates its ID against the current
// snapshot and commits it through the conditional-write cycle. The insert
// policy decides between chronological placement and plain append.
func (s *adminService) CreateAssignment(ctx context.Context, courseID primitive.ObjectID, draft ledger.AssignmentDraft, policy ledger.InsertPolicy) (*domain.Assignment, error) {
	var created domain.Assignment

	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		assignment, err := ledger.NewAssignment(course, draft, time.Now())
		if err != nil {
			return err
		}
		ledger.InsertAssignment(course, assignment, policy)
		created = assignment
		return nil
	})
	if err != nil {
		return nil, s.mapCourseUpdateError(err)
	}
	return &created, nil
}

// UpdateAssignment applies a partial field update to an existing assignment.
// ID, assigned date and submissions are immutable regardless of the patch.
func (s *adminService) UpdateAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID string, patch ledger.AssignmentPatch) (*domain.Assignment, error) {
	var updated domain.Assignment

	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		assignment, err := ledger.ApplyAssignmentPatch(course, assignmentID, patch)
		if err != nil {
			return err
		}
		updated = *assignment
		return nil
	})
	if err != nil {
		return nil, s.mapCourseUpdateError(err)
	}
	return &updated, nil
}

// TogglePosted flips student visibility for the assignment.
func (s *adminService) TogglePosted(ctx context.Context, courseID primitive.ObjectID, assignmentID string) (bool, error) {
	var posted bool
	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		var err error
		posted, err = ledger.TogglePosted(course, assignmentID)
		return err
	})
	if err != nil {
		return false, s.mapCourseUpdateError(err)
	}
	return posted, nil
}

// ToggleLocked flips whether submissions are accepted for the assignment.
func (s *adminService) ToggleLocked(ctx context.Context, courseID primitive.ObjectID, assignmentID string) (bool, error) {
	var locked bool
	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		var err error
		locked, err = ledger.ToggleLocked(course, assignmentID)
		return err
	})
	if err != nil {
		return false, s.mapCourseUpdateError(err)
	}
	return locked, nil
}

// DeleteAssignment removes the assignment. Deleting an ID that is already
// gone succeeds; the admin dashboard treats delete as "make sure it is not
// there". Blobs referenced by the removed assignment are cleaned up after
// the ledger entry is gone.
func (s *adminService) DeleteAssignment(ctx context.Context, courseID primitive.ObjectID, assignmentID string) error {
	var removed *domain.Assignment
	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		if assignment, _ := course.FindAssignment(assignmentID); assignment != nil {
			snapshot := *assignment
			removed = &snapshot
		}
		ledger.RemoveAssignment(course, assignmentID)
		return nil
	})
	if err != nil {
		return s.mapCourseUpdateError(err)
	}
	if removed != nil {
		s.deleteAssignmentObjects(ctx, removed)
	}
	return nil
}

// deleteAssignmentObjects best-effort removes the stored objects a deleted
// assignment referenced: guide attachments and submitted file answers.
// Failures only log; the ledger entry is already committed away and an
// orphaned blob is cheaper than a failed delete.
func (s *adminService) deleteAssignmentObjects(ctx context.Context, assignment *domain.Assignment) {
	for _, file := range assignment.Files {
		if file.URL == "" {
			continue
		}
		if err := s.fileStorage.DeleteObject(ctx, file.URL); err != nil {
			log.Warn().Err(err).Str("key", file.URL).Msg("failed to delete guide object")
		}
	}
	for _, sub := range assignment.Submissions {
		for _, answer := range sub.Answers {
			if answer.FileURL == "" {
				continue
			}
			if err := s.fileStorage.DeleteObject(ctx, answer.FileURL); err != nil {
				log.Warn().Err(err).Str("key", answer.FileURL).Msg("failed to delete submission object")
			}
		}
	}
}

// RequestGuideUploadURL generates a presigned PUT URL for an assignment
// guide attachment.
func (s *adminService) RequestGuideUploadURL(ctx context.Context, fileName, contentType string) (*UploadURLResponse, error) {
	if fileName == "" || contentType == "" {
		return nil, errors.New("file name and content type are required")
	}

	objectKey := path.Join("guides", fmt.Sprintf("%s-%s", uuid.NewString(), fileName))
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, &UploadError{FileName: fileName, Err: ErrUploadURLError}
	}

	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

// === Grading ===

// ListSubmissions returns every submission for an assignment, sorted by
// submit time, with presigned download URLs for file answers.
func (s *adminService) ListSubmissions(ctx context.Context, courseID primitive.ObjectID, assignmentID string) ([]SubmissionView, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	assignment, _ := course.FindAssignment(assignmentID)
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	emailsByID := make(map[string]string, len(users))
	for _, u := range users {
		emailsByID[u.ID.Hex()] = u.Email
	}

	views := make([]SubmissionView, 0, len(assignment.Submissions))
	for _, sub := range assignment.Submissions {
		view := SubmissionView{Submission: sub, StudentEmail: emailsByID[sub.StudentID]}
		for _, answer := range sub.Answers {
			if answer.FileURL == "" {
				continue
			}
			downloadURL, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, answer.FileURL, storage.DefaultPresignedURLExpiry)
			if err != nil {
				return nil, ErrDownloadURLError
			}
			if view.FileURLs == nil {
				view.FileURLs = map[int]string{}
			}
			view.FileURLs[answer.QuestionIndex] = downloadURL
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Submission.SubmittedAt.Before(views[j].Submission.SubmittedAt)
	})
	return views, nil
}

// GradeShortAnswer records a manual verdict and persists the rescanned
// score through the conditional-write cycle.
func (s *adminService) GradeShortAnswer(ctx context.Context, courseID primitive.ObjectID, assignmentID, studentID string, questionIndex int, verdict bool) (*domain.Submission, error) {
	var graded domain.Submission

	_, err := s.courseRepo.UpdateAssignments(ctx, courseID, func(course *domain.Course) error {
		assignment, _ := course.FindAssignment(assignmentID)
		if assignment == nil {
			return &ledger.NotFoundError{Kind: "assignment", ID: assignmentID}
		}
		sub, err := ledger.MarkShortAnswer(assignment, studentID, questionIndex, verdict)
		if err != nil {
			return err
		}
		graded = sub
		return nil
	})
	if err != nil {
		return nil, s.mapCourseUpdateError(err)
	}
	return &graded, nil
}

// mapCourseUpdateError translates repository sentinels to service errors;
// ledger errors pass through untouched so handlers can inspect them.
func (s *adminService) mapCourseUpdateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrCourseNotFound
	case errors.Is(err, repository.ErrTransactionConflict):
		return ErrConcurrentUpdate
	default:
		return err
	}
}

// matchesMIMEPattern reports whether contentType satisfies a pattern like
// "image/*" or an exact type like "application/pdf".
func matchesMIMEPattern(pattern, contentType string) bool {
	if pattern == "*/*" || pattern == contentType {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(contentType, prefix+"/")
	}
	return false
}
