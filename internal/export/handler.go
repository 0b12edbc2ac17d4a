package export

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Notifier is told about finished artifacts. Satisfied by the UDP
// notify server; nil means no push notifications.
type Notifier interface {
	BroadcastExportDone(storyID, path string, durationMs int64)
}

type Handler struct {
	Orchestrator *Orchestrator
	Notifier     Notifier
}

func NewHandler(o *Orchestrator, n Notifier) *Handler {
	return &Handler{Orchestrator: o, Notifier: n}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stories/:story_id/export", h.export)
}

func (h *Handler) export(c *gin.Context) {
	storyID := c.Param("story_id")

	artifact, err := h.Orchestrator.Export(c.Request.Context(), storyID)
	if err != nil {
		var renderErr *RenderError
		switch {
		case errors.As(err, &renderErr):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    "render failed",
				"clip_id":  renderErr.ClipID,
				"attempts": renderErr.Attempts,
				"cause":    renderErr.Cause.Error(),
			})
		case errors.Is(err, ErrEmptyStory):
			c.JSON(http.StatusBadRequest, gin.H{"error": "story has no clips to export"})
		case errors.Is(err, ErrExportCancelled):
			// nginx-style status for client-aborted work
			c.JSON(499, gin.H{"error": "export cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		}
		return
	}
	if artifact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
		return
	}

	if h.Notifier != nil {
		h.Notifier.BroadcastExportDone(storyID, artifact.Path, artifact.DurationMs)
	}
	c.JSON(http.StatusOK, artifact)
}
