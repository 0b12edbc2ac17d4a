package scene

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/httpapi"
	"storyhub/internal/sync"
)

type Handler struct {
	Repo *Repo
	Hub  *sync.Hub
}

func NewHandler(repo *Repo, hub *sync.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stories/:story_id/scenes", h.append)
	rg.GET("/stories/:story_id/scenes", h.list)
	rg.GET("/scenes/:scene_id", h.getOne)
	rg.PUT("/scenes/:scene_id", h.update)
	rg.DELETE("/scenes/:scene_id", h.remove)
	rg.POST("/scenes/:scene_id/move", h.move)
}

type createReq struct {
	BGMUrl      string   `json:"bgm_url"`
	BGMName     string   `json:"bgm_name"`
	Description string   `json:"description"`
	BGMVolume   *float64 `json:"bgm_volume"`
}

func (h *Handler) append(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	storyID := c.Param("story_id")
	s, err := h.Repo.Append(c.Request.Context(), storyID, CreateScene{
		BGMUrl:      req.BGMUrl,
		BGMName:     req.BGMName,
		Description: req.Description,
		BGMVolume:   req.BGMVolume,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "story")
		return
	}

	h.broadcast("scene.created", s.StoryID, s.ID)
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) list(c *gin.Context) {
	scenes, err := h.Repo.ListByStory(c.Request.Context(), c.Param("story_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": scenes})
}

func (h *Handler) getOne(c *gin.Context) {
	s, err := h.Repo.GetByID(c.Request.Context(), c.Param("scene_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "scene")
		return
	}
	c.JSON(http.StatusOK, s)
}

type updateReq struct {
	BGMUrl      *string  `json:"bgm_url"`
	BGMName     *string  `json:"bgm_name"`
	Description *string  `json:"description"`
	BGMVolume   *float64 `json:"bgm_volume"`
	ClearBGMVol bool     `json:"clear_bgm_volume"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Repo.Update(c.Request.Context(), c.Param("scene_id"), UpdateScene{
		BGMUrl:      req.BGMUrl,
		BGMName:     req.BGMName,
		Description: req.Description,
		BGMVolume:   req.BGMVolume,
		ClearBGMVol: req.ClearBGMVol,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "scene")
		return
	}

	h.broadcast("scene.updated", s.StoryID, s.ID)
	c.JSON(http.StatusOK, s)
}

type moveReq struct {
	To int `json:"to"`
}

func (h *Handler) move(c *gin.Context) {
	var req moveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Repo.Move(c.Request.Context(), c.Param("scene_id"), req.To)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "scene")
		return
	}

	h.broadcast("scene.moved", s.StoryID, s.ID)
	c.JSON(http.StatusOK, s)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("scene_id")

	// resolve the story before the row disappears
	s, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if s == nil {
		httpapi.NotFound(c, "scene")
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !ok {
		httpapi.NotFound(c, "scene")
		return
	}

	h.broadcast("scene.deleted", s.StoryID, id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) broadcast(event, storyID, sceneID string) {
	if h.Hub == nil {
		return
	}
	ev := sync.CompositionEvent{
		Type:    event,
		StoryID: storyID,
		SceneID: sceneID,
		At:      time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
