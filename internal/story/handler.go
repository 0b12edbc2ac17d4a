package story

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/httpapi"
	"storyhub/internal/sync"
	"storyhub/pkg/models"
)

type Handler struct {
	Repo *Repo
	Hub  *sync.Hub
}

func NewHandler(repo *Repo, hub *sync.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.POST("/import", h.importComposition)
	rg.GET("/:story_id", h.getOne)
	rg.PUT("/:story_id", h.update)
	rg.DELETE("/:story_id", h.remove)
	rg.PUT("/:story_id/audio-settings", h.updateAudioSettings)
	rg.GET("/:story_id/composition", h.getComposition)
}

type createReq struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	AspectRatio     string   `json:"aspect_ratio"`
	Resolution      string   `json:"resolution"`
	NarrationVolume *float64 `json:"narration_volume"`
	BGMVolume       *float64 `json:"bgm_volume"`
	NarrationSpeed  *float64 `json:"narration_speed"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Repo.Create(c.Request.Context(), CreateStory{
		Title:           req.Title,
		Description:     req.Description,
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
		NarrationVolume: req.NarrationVolume,
		BGMVolume:       req.BGMVolume,
		NarrationSpeed:  req.NarrationSpeed,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}

	h.broadcast("story.created", s.ID)
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.Repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		httpapi.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	s, err := h.Repo.GetByID(c.Request.Context(), c.Param("story_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "story")
		return
	}
	c.JSON(http.StatusOK, s)
}

type updateReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AspectRatio *string `json:"aspect_ratio"`
	Resolution  *string `json:"resolution"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Repo.Update(c.Request.Context(), c.Param("story_id"), UpdateStory{
		Title:       req.Title,
		Description: req.Description,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "story")
		return
	}

	h.broadcast("story.updated", s.ID)
	c.JSON(http.StatusOK, s)
}

func (h *Handler) updateAudioSettings(c *gin.Context) {
	var patch models.AudioSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Repo.UpdateAudioSettings(c.Request.Context(), c.Param("story_id"), patch)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "story")
		return
	}

	h.broadcast("story.audio_settings", s.ID)
	c.JSON(http.StatusOK, s)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("story_id")
	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !ok {
		httpapi.NotFound(c, "story")
		return
	}

	h.broadcast("story.deleted", id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) getComposition(c *gin.Context) {
	comp, err := h.Repo.LoadComposition(c.Request.Context(), c.Param("story_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if comp == nil {
		httpapi.NotFound(c, "story")
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (h *Handler) importComposition(c *gin.Context) {
	var comp models.StoryComposition
	if err := c.ShouldBindJSON(&comp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, err := h.Repo.ImportComposition(c.Request.Context(), &comp)
	if err != nil {
		httpapi.Error(c, err)
		return
	}

	h.broadcast("story.created", created.ID)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) broadcast(event, storyID string) {
	if h.Hub == nil {
		return
	}
	ev := sync.CompositionEvent{
		Type:    event,
		StoryID: storyID,
		At:      time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
