// Package handlers implements the DealScope HTTP endpoints on gin.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DealScope/internal/interfaces/http/middleware"
	"github.com/turtacn/DealScope/pkg/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ListResponse wraps paged listings.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func scopeOf(c *gin.Context) middleware.Scope {
	return middleware.ScopeFrom(c)
}

// parsePagination reads limit and offset query parameters.  Out-of-range
// values fall back to the defaults rather than failing the request.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// bindJSON decodes the body into dst.  A malformed body is a caller error.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.InvalidParam("malformed JSON body").WithCause(err).WithDetail(err.Error())
	}
	return nil
}

// writeAppError maps err to a status through its code.  Server-side errors
// are masked to the code's default message; the cause is attached to the
// gin context for the request log.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	_ = c.Error(err)

	resp := ErrorResponse{Code: string(code), Message: errors.DefaultMessageForCode(code)}
	if status < http.StatusInternalServerError {
		if ae, ok := errors.AsAppError(err); ok {
			resp.Message = ae.Message
			resp.Detail = ae.Detail
			if resp.Detail == "" && ae.Cause != nil {
				resp.Detail = ae.Cause.Error()
			}
		}
	}
	c.AbortWithStatusJSON(status, resp)
}
