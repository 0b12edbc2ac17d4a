package transition

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
	rg.POST("/transitions", h.create)
	rg.GET("/transitions", h.list)
	rg.GET("/transitions/:transition_id", h.getOne)
	rg.PUT("/transitions/:transition_id", h.update)
	rg.DELETE("/transitions/:transition_id", h.remove)
}

type createReq struct {
	FromSceneID string `json:"from_scene_id" binding:"required"`
	ToSceneID   string `json:"to_scene_id" binding:"required"`
	Kind        string `json:"kind"`
	DurationMs  int64  `json:"duration_ms"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_scene_id and to_scene_id are required"})
		return
	}

	t, err := h.Repo.Create(c.Request.Context(), CreateTransition{
		FromSceneID: req.FromSceneID,
		ToSceneID:   req.ToSceneID,
		Kind:        req.Kind,
		DurationMs:  req.DurationMs,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if t == nil {
		httpapi.NotFound(c, "transition")
		return
	}

	h.broadcast(c, "transition.created", t.FromSceneID)
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) list(c *gin.Context) {
	storyID := c.Query("story_id")
	if storyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "story_id query parameter is required"})
		return
	}

	transitions, err := h.Repo.ListByStory(c.Request.Context(), storyID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": transitions})
}

func (h *Handler) getOne(c *gin.Context) {
	t, err := h.Repo.GetByID(c.Request.Context(), c.Param("transition_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if t == nil {
		httpapi.NotFound(c, "transition")
		return
	}
	c.JSON(http.StatusOK, t)
}

type updateReq struct {
	Kind       *string `json:"kind"`
	DurationMs *int64  `json:"duration_ms"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	t, err := h.Repo.Update(c.Request.Context(), c.Param("transition_id"), UpdateTransition{
		Kind:       req.Kind,
		DurationMs: req.DurationMs,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if t == nil {
		httpapi.NotFound(c, "transition")
		return
	}

	h.broadcast(c, "transition.updated", t.FromSceneID)
	c.JSON(http.StatusOK, t)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("transition_id")

	t, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if t == nil {
		httpapi.NotFound(c, "transition")
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !ok {
		httpapi.NotFound(c, "transition")
		return
	}

	h.broadcast(c, "transition.deleted", t.FromSceneID)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) broadcast(c *gin.Context, event, sceneID string) {
	if h.Hub == nil {
		return
	}
	storyID, err := h.Repo.storyOfScene(c.Request.Context(), sceneID)
	if err != nil {
		storyID = ""
	}
	ev := sync.CompositionEvent{
		Type:    event,
		StoryID: storyID,
		SceneID: sceneID,
		At:      time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
