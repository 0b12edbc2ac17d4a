package assets

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Library *Library
}

func NewHandler(lib *Library) *Handler {
	return &Handler{Library: lib}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/assets/audio", h.listAudio)
	rg.GET("/assets/images", h.listImages)
}

func (h *Handler) listAudio(c *gin.Context) {
	h.list(c, KindAudio)
}

func (h *Handler) listImages(c *gin.Context) {
	h.list(c, KindImage)
}

func (h *Handler) list(c *gin.Context, kind string) {
	items, err := h.Library.List(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "asset scan failed"})
		return
	}
	if items == nil {
		items = []Asset{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
