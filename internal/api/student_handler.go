package api

import (
	"net/http"
	"time"

	"zeroplus/course-app/internal/ledger"
	"zeroplus/course-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudentHandler holds the student service dependency.
type StudentHandler struct {
	studentService service.StudentService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentService service.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

// --- DTOs ---

type AnswerRequest struct {
	Value            string `json:"value"`
	FileURL          string `json:"fileUrl"`
	OriginalFilename string `json:"originalFilename"`
}

type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" binding:"required"`
}

type AnswerUploadURLRequest struct {
	QuestionIndex *int   `json:"questionIndex" binding:"required"`
	FileName      string `json:"fileName" binding:"required"`
	ContentType   string `json:"contentType" binding:"required"`
}

// identity extracts the caller's user ID from the auth context, in both hex
// and ObjectID form.
func identity(c *gin.Context) (string, primitive.ObjectID, bool) {
	idHex, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Could not identify requesting user")
		return "", primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Invalid user ID format in context")
		return "", primitive.NilObjectID, false
	}
	return idHex, id, true
}

// --- Handler Methods ---

// GetProfile returns the authenticated user's own record.
func (h *StudentHandler) GetProfile(c *gin.Context) {
	_, userID, ok := identity(c)
	if !ok {
		return
	}
	user, err := h.studentService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// GetCourse returns the course header for an enrolled student.
func (h *StudentHandler) GetCourse(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}

	info, err := h.studentService.GetCourse(c.Request.Context(), courseID, studentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListAssignments returns the assignments visible to the student right now.
func (h *StudentHandler) ListAssignments(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}

	summaries, err := h.studentService.ListVisibleAssignments(c.Request.Context(), courseID, studentID, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetAssignment returns the detail of a posted assignment.
func (h *StudentHandler) GetAssignment(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}

	view, err := h.studentService.GetAssignment(c.Request.Context(), courseID, c.Param("assignmentId"), studentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestAnswerUploadURL returns a presigned PUT URL for a file answer.
func (h *StudentHandler) RequestAnswerUploadURL(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}
	var req AnswerUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	resp, err := h.studentService.RequestAnswerUploadURL(
		c.Request.Context(), courseID, c.Param("assignmentId"), studentID,
		*req.QuestionIndex, req.FileName, req.ContentType,
	)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Submit records the student's answers for an assignment.
func (h *StudentHandler) Submit(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	answers := make([]ledger.RawAnswer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = ledger.RawAnswer{
			Value:            a.Value,
			FileURL:          a.FileURL,
			OriginalFilename: a.OriginalFilename,
		}
	}

	submission, err := h.studentService.Submit(c.Request.Context(), courseID, c.Param("assignmentId"), studentID, answers)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

// GetMySubmission returns the student's own recorded submission.
func (h *StudentHandler) GetMySubmission(c *gin.Context) {
	courseID, ok := courseIDFromParam(c)
	if !ok {
		return
	}
	studentID, _, ok := identity(c)
	if !ok {
		return
	}

	view, err := h.studentService.GetMySubmission(c.Request.Context(), courseID, c.Param("assignmentId"), studentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
