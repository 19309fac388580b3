package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/enrollment"
)

// retryMessage is shown for failed writes. The cause is logged, not exposed.
const retryMessage = "the operation could not be completed, please try again"

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// ListResponse wraps every list endpoint. Degraded is set when the list is
// empty because the store failed, not because nothing matched.
type ListResponse struct {
	Data     any  `json:"data"`
	Degraded bool `json:"degraded,omitempty"`
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 with a generic
// retryable message.
func respondInternalError(c *gin.Context, err error, context string) {
	log.Printf("http: internal error (%s): %v", context, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: retryMessage, Code: "internal"})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondServiceError maps domain errors to status codes. Anything it does
// not recognise is a 500.
func respondServiceError(c *gin.Context, err error, context string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Message, Code: "validation", Details: gin.H{"field": verr.Field}})
	case errors.Is(err, catalog.ErrCourseNotFound), errors.Is(err, enrollment.ErrCourseNotFound):
		respondNotFound(c, "course")
	case errors.Is(err, enrollment.ErrAlreadyEnrolled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "already_enrolled"})
	case errors.Is(err, enrollment.ErrInvalidAmount):
		respondBadRequest(c, err.Error())
	case errors.Is(err, catalog.ErrNoActor), errors.Is(err, enrollment.ErrNoActor):
		respondError(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, enrollment.ErrPaymentFailed):
		log.Printf("http: payment failed (%s): %v", context, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "payment could not be completed, you have not been enrolled", Code: "payment_failed"})
	default:
		respondInternalError(c, err, context)
	}
}

// respondList writes a list. A non-nil err is logged and answered with an
// empty degraded list so the client can keep rendering.
func respondList[T any](c *gin.Context, items []T, err error, context string, degraded func(route string)) {
	if err != nil {
		log.Printf("http: degraded read (%s): %v", context, err)
		if degraded != nil {
			degraded(c.FullPath())
		}
		c.JSON(http.StatusOK, ListResponse{Data: []T{}, Degraded: true})
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, ListResponse{Data: items})
}

// --- Success Response Helpers ---

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseOptionalQueryID reads an optional id query parameter. It responds
// with 400 and returns ok=false when the value is present but malformed.
func parseOptionalQueryID(c *gin.Context, paramName string) (*uint, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// requireActor returns the signed-in actor. Routes are already guarded by
// auth.RequireAuth, so a miss is answered with 401.
func requireActor(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.CurrentActor(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}
