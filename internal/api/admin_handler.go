package api

import (
	"net/http"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/ledger"
	"zeroplus/course-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminHandler holds the admin service dependency.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// --- DTOs ---

type CreateCourseRequest struct {
	Name string `json:"courseName" binding:"required"`
}

type EnrollStudentRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// QuestionRequest mirrors domain.Question for authoring payloads; the
// detailed authoring rules are enforced by the ledger, not binding tags.
type QuestionRequest struct {
	Type             domain.QuestionType `json:"type" binding:"required,oneof=multiple_choice short_answer file_upload"`
	Text             string              `json:"text" binding:"required"`
	Points           int                 `json:"points" binding:"required,min=1"`
	Options          []string            `json:"options"`
	CorrectAnswer    string              `json:"correctAnswer"`
	AllowedFileTypes []string            `json:"allowedFileTypes"`
}

type AttachedFileRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
}

type CreateAssignmentRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	DueDate     time.Time             `json:"dueDate" binding:"required"`
	Quiz        []QuestionRequest     `json:"quiz"`
	Files       []AttachedFileRequest `json:"files"`
	// "sorted" (default) keeps the list chronological; "append" preserves
	// creation order.
	Ordering string `json:"ordering" binding:"omitempty,oneof=sorted append"`
}

type UpdateAssignmentRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	DueDate     *time.Time            `json:"dueDate"`
	Quiz        []QuestionRequest     `json:"quiz"`
	Files       []AttachedFileRequest `json:"files"`
}

type GradeShortAnswerRequest struct {
	QuestionIndex *int  `json:"questionIndex" binding:"required"`
	Correct       *bool `json:"correct" binding:"required"`
}

type UploadURLRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// AssignmentResponse is the admin view of an assignment: quiz with reference
// answers, plus the derived per-student submitted flags.
type AssignmentResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	AssignedDate   time.Time             `json:"assignedDate"`
	DueDate        *time.Time            `json:"dueDate,omitempty"`
	Posted         bool                  `json:"posted"`
	Locked         bool                  `json:"locked"`
	Quiz           []domain.Question     `json:"quiz,omitempty"`
	Files          []domain.AttachedFile `json:"files,omitempty"`
	Submitted      map[string]bool       `json:"submitted"`
	SubmissionsLen int                   `json:"submissionCount"`
}

// MapAssignmentToResponse converts a domain.Assignment to its admin DTO.
func MapAssignmentToResponse(a *domain.Assignment) AssignmentResponse {
	if a == nil {
		return AssignmentResponse{}
	}
	submitted := make(map[string]bool, len(a.Submissions))
	for studentID := range a.Submissions {
		submitted[studentID] = true
	}
	return AssignmentResponse{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		AssignedDate:   a.AssignedAt,
		DueDate:        a.DueAt,
		Posted:         a.Posted,
		Locked:         a.Locked,
		Quiz:           a.Quiz,
		Files:          a.Files,
		Submitted:      submitted,
		SubmissionsLen: len(a.Submissions),
	}
}

func mapQuestions(reqs []QuestionRequest) []domain.Question {
	if reqs == nil {
		return nil
	}
	questions := make([]domain.Question, len(reqs))
	for i, q := range reqs {
		questions[i] = domain.Question{
			Type:             q.Type,
			Text:             q.Text,
			Points:           q.Points,
			Options:          q.Options,
			CorrectAnswer:    q.CorrectAnswer,
			AllowedFileTypes: q.AllowedFileTypes,
		}
	}
	return questions
}

func mapAttachedFiles(reqs []AttachedFileRequest) []domain.AttachedFile {
	if reqs == nil {
		return nil
	}
	files := make([]domain.AttachedFile, len(reqs))
	for i, f := range reqs {
		files[i] = domain.AttachedFile{Name: f.Name, URL: f.URL}
	}
	return files
}

func courseIDFromParam(c *gin.Context) (primitive.ObjectID, bool) {
	courseID, err := primitive.ObjectIDFromHex(c.Param("courseId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid course ID format.")
		return primitive.NilObjectID, false
	}
	return courseID, true
}

// --- Handler Methods ---

// CreateCourse creates an empty course.
func (h *AdminHandler) CreateCourse(c *gin.Context) {
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	course, err := h.adminService.CreateCourse(c.Request.Context(), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}

// ListCourses returns all courses with enrolled student emails.
func (h *AdminHandler) ListCourses(c *gin.Context) {
	overviews, err := h.adminService.ListCourses(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, overviews)
}

// ListUsers returns every registered user.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = MapUserToResponse(&users[i])
	}
	c.JSON(http.StatusOK, responses)
}

// EnrollStudent adds a student to the course roster by email.
func (h *AdminHandler) EnrollStudent(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	var req EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	student, err := h.adminService.EnrollStudentByEmail(c.Request.Context(), courseID, req.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(student))
}

// RemoveStudent removes a student from the course roster.
func (h *AdminHandler) RemoveStudent(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	if err := h.adminService.RemoveStudent(c.Request.Context(), courseID, c.Param("studentId")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateAssignment creates a new draft assignment.
func (h *AdminHandler) CreateAssignment(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	policy := ledger.InsertByAssignedDate
	if req.Ordering == "append" {
		policy = ledger.InsertAppend
	}

	dueDate := req.DueDate
	draft := ledger.AssignmentDraft{
		Name:        req.Name,
		Description: req.Description,
		DueAt:       &dueDate,
		Quiz:        mapQuestions(req.Quiz),
		Files:       mapAttachedFiles(req.Files),
	}

	assignment, err := h.adminService.CreateAssignment(c.Request.Context(), courseID, draft, policy)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapAssignmentToResponse(assignment))
}

// UpdateAssignment applies a partial edit to a draft.
func (h *AdminHandler) UpdateAssignment(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	var req UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	patch := ledger.AssignmentPatch{
		Name:        req.Name,
		Description: req.Description,
		DueAt:       req.DueDate,
		Quiz:        mapQuestions(req.Quiz),
		Files:       mapAttachedFiles(req.Files),
	}

	assignment, err := h.adminService.UpdateAssignment(c.Request.Context(), courseID, c.Param("assignmentId"), patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAssignmentToResponse(assignment))
}

// TogglePosted flips student visibility.
func (h *AdminHandler) TogglePosted(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	posted, err := h.adminService.TogglePosted(c.Request.Context(), courseID, c.Param("assignmentId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posted": posted})
}

// ToggleLocked flips submission acceptance.
func (h *AdminHandler) ToggleLocked(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	locked, err := h.adminService.ToggleLocked(c.Request.Context(), courseID, c.Param("assignmentId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": locked})
}

// DeleteAssignment removes an assignment; deleting an absent ID succeeds.
func (h *AdminHandler) DeleteAssignment(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	if err := h.adminService.DeleteAssignment(c.Request.Context(), courseID, c.Param("assignmentId")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSubmissions returns every submission for an assignment.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	views, err := h.adminService.ListSubmissions(c.Request.Context(), courseID, c.Param("assignmentId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GradeShortAnswer records a manual verdict on one short answer.
func (h *AdminHandler) GradeShortAnswer(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	var req GradeShortAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	submission, err := h.adminService.GradeShortAnswer(
		c.Request.Context(),
		courseID,
		c.Param("assignmentId"),
		c.Param("studentId"),
		*req.QuestionIndex,
		*req.Correct,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// RequestGuideUploadURL returns a presigned PUT URL for a guide attachment.
func (h *AdminHandler) RequestGuideUploadURL(c *gin.Context) {
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	resp, err := h.adminService.RequestGuideUploadURL(c.Request.Context(), req.FileName, req.ContentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
