package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/errs"
)

const (
	msgInternal    = "Internal server error"
	msgInvalidJSON = "Invalid JSON body"
	msgTooLarge    = "Request body too large"
)

// retryUnit selects the retry-after field of a 429 body.
type retryUnit int

const (
	retryMinutes retryUnit = iota
	retryHours
)

// fail maps err onto the error taxonomy and writes the JSON body.
// what names the resource, e.g. "Paper", for 404 bodies and error logs.
func (s *Server) fail(c *gin.Context, what string, err error) {
	s.failWith(c, what, retryMinutes, err)
}

func (s *Server) failWith(c *gin.Context, what string, unit retryUnit, err error) {
	var (
		ve *errs.ValidationError
		rl *errs.RateLimitError
		ce *errs.CompileError
	)
	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		if len(ve.Invalid) > 0 {
			body["invalid"] = ve.Invalid
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds()+0.999)))
		body := gin.H{"error": "Rate limit exceeded"}
		if unit == retryHours {
			body["retry_after_hours"] = rl.Hours()
		} else {
			body["retry_after_minutes"] = rl.Minutes()
		}
		c.JSON(http.StatusTooManyRequests, body)
	case errors.As(err, &ce):
		c.JSON(http.StatusBadRequest, gin.H{"error": "LaTeX compilation failed", "details": ce.Message})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
	case errors.Is(err, errs.ErrAlreadyExists) && what == "Bot":
		c.JSON(http.StatusConflict, gin.H{"error": "Name already taken"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	default:
		rc, _ := RequestContextFrom(c.Request.Context())
		s.log.Error("request failed", append(rc.Fields(), zap.String("resource", what), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	}
}

// badBody answers a body that could not be decoded.
func badBody(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgTooLarge})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
}
