// Package httpapi translates core errors into HTTP responses so the
// feature handlers stay thin.
package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyhub/internal/composition"
)

// Error writes the response for a failed core operation. Constraint
// violations were rejected before any write, so they map to client
// errors; anything unrecognized is a 500.
func Error(c *gin.Context, err error) {
	var cv *composition.ConstraintViolation
	switch {
	case errors.As(err, &cv):
		c.JSON(http.StatusBadRequest, gin.H{"error": cv.Detail, "rule": cv.Rule})
	case errors.Is(err, composition.ErrDuplicateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, composition.ErrSelfTransition),
		errors.Is(err, composition.ErrCrossStoryReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, composition.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// NotFound writes a uniform 404.
func NotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}
