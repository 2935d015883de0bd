package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/models"
)

// Resolver performs favicon lookups. *service.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req *models.IconRequest) (*models.Lookup, error)
	EngineName() string
}

// Favicon returns a handler for GET /api/favicon.
//
// Responses:
//
//	200  extracted metadata, or {logo:null, favicon, url, fallback:true[, error]}
//	400  {error:"URL parameter is required"} or another INVALID_INPUT / BLOCKED_HOST
//	500  {error:"Failed to fetch favicon and generate fallback"}
func Favicon(res Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IconRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			msg := err.Error()
			if strings.TrimSpace(c.Query("url")) == "" {
				msg = "URL parameter is required"
			}
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: msg,
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}

		lookup, err := res.Resolve(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		if lookup.CacheStatus != "" {
			c.Header("X-Cache", lookup.CacheStatus)
		}
		if lookup.EngineUsed != "" {
			c.Header("X-Fetch-Engine", lookup.EngineUsed)
		}
		c.JSON(http.StatusOK, lookup.Body())
	}
}

// respondError maps a LookupError to the correct HTTP status code and
// writes a JSON error body.
func respondError(c *gin.Context, err error) {
	var le *models.LookupError
	if !errors.As(err, &le) {
		le = models.NewLookupError(models.ErrCodeInternal, "Failed to fetch favicon and generate fallback", err)
	}
	c.JSON(mapErrorToStatus(le), le.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.LookupError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeBlockedHost:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeFetchTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
