package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"` // machine-readable error code
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// codeUploadRejected marks 406 responses to malformed uploads.
const codeUploadRejected = "upload_rejected"

// --- Error Response Helpers ---

// statusFor maps an error kind to the HTTP status the API uses for it.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound, apperr.KindInvalidState, apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		// Payment failures and internal errors
		return http.StatusInternalServerError
	}
}

// respondError maps err through the apperr taxonomy. Internal errors are
// logged and not exposed to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: string(kind)})
		return
	}
	c.JSON(status, ErrorResponse{Error: apperr.Detail(err), Code: string(kind)})
}

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: string(apperr.KindValidation)})
}

// respondUploadRejected sends a 406 Not Acceptable response for a malformed upload.
func respondUploadRejected(c *gin.Context, message string) {
	c.JSON(http.StatusNotAcceptable, ErrorResponse{Error: message, Code: codeUploadRejected})
}

// respondUnauthorized sends a 401 Unauthorized response.
func respondUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: message, Code: string(apperr.KindUnauthorized)})
}

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// requireForm reads the named form fields and responds with a 400 naming the
// first one that is missing.
func requireForm(c *gin.Context, names ...string) (map[string]string, bool) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, ok := c.GetPostForm(name)
		if !ok || v == "" {
			respondBadRequest(c, name+" is required")
			return nil, false
		}
		values[name] = v
	}
	return values, true
}
