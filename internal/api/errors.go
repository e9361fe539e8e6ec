package api

import (
	"errors"
	"net/http"

	"zeroplus/course-app/internal/ledger"
	"zeroplus/course-app/internal/service"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service and ledger errors to HTTP statuses.
// Typed ledger errors carry the user-facing message themselves.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *ledger.ValidationError
	var notFoundErr *ledger.NotFoundError
	var incompleteErr *ledger.IncompleteSubmissionError
	var uploadErr *service.UploadError

	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &incompleteErr):
		abortWithError(c, http.StatusBadRequest, incompleteErr.Error())
	case errors.As(err, &notFoundErr):
		abortWithError(c, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &uploadErr):
		abortWithError(c, http.StatusBadGateway, uploadErr.Error())
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrAssignmentNotVisible):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotEnrolled):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConcurrentUpdate):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAssignmentLocked),
		errors.Is(err, service.ErrStudentNotRole),
		errors.Is(err, service.ErrFileTypeNotAllowed),
		errors.Is(err, service.ErrNotFileQuestion):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
