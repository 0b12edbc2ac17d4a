package clip

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
	rg.POST("/scenes/:scene_id/clips", h.create)
	rg.GET("/scenes/:scene_id/clips", h.list)
	rg.GET("/clips/:clip_id", h.getOne)
	rg.PUT("/clips/:clip_id", h.update)
	rg.DELETE("/clips/:clip_id", h.remove)
	rg.POST("/clips/:clip_id/move", h.move)
}

type createReq struct {
	Canvas            string   `json:"canvas"`
	ImageURL          string   `json:"image_url"`
	Narration         string   `json:"narration"`
	NarrationAudioURL string   `json:"narration_audio_url"`
	VoiceName         string   `json:"voice_name"`
	DurationMs        *int64   `json:"duration_ms"`
	NarrationVolume   *float64 `json:"narration_volume"`
	NarrationSpeed    *float64 `json:"narration_speed"`
	Position          *int     `json:"position"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sceneID := c.Param("scene_id")
	cl, err := h.Repo.Insert(c.Request.Context(), sceneID, CreateClip{
		Canvas:            req.Canvas,
		ImageURL:          req.ImageURL,
		Narration:         req.Narration,
		NarrationAudioURL: req.NarrationAudioURL,
		VoiceName:         req.VoiceName,
		DurationMs:        req.DurationMs,
		NarrationVolume:   req.NarrationVolume,
		NarrationSpeed:    req.NarrationSpeed,
		Position:          req.Position,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cl == nil {
		httpapi.NotFound(c, "scene")
		return
	}

	h.broadcast(c, "clip.created", cl.SceneID, cl.ID)
	c.JSON(http.StatusCreated, cl)
}

func (h *Handler) list(c *gin.Context) {
	clips, err := h.Repo.ListByScene(c.Request.Context(), c.Param("scene_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": clips})
}

func (h *Handler) getOne(c *gin.Context) {
	cl, err := h.Repo.GetByID(c.Request.Context(), c.Param("clip_id"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cl == nil {
		httpapi.NotFound(c, "clip")
		return
	}
	c.JSON(http.StatusOK, cl)
}

type updateReq struct {
	Canvas            *string  `json:"canvas"`
	ImageURL          *string  `json:"image_url"`
	Narration         *string  `json:"narration"`
	NarrationAudioURL *string  `json:"narration_audio_url"`
	VoiceName         *string  `json:"voice_name"`
	DurationMs        *int64   `json:"duration_ms"`
	NarrationVolume   *float64 `json:"narration_volume"`
	NarrationSpeed    *float64 `json:"narration_speed"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	cl, err := h.Repo.Update(c.Request.Context(), c.Param("clip_id"), UpdateClip{
		Canvas:            req.Canvas,
		ImageURL:          req.ImageURL,
		Narration:         req.Narration,
		NarrationAudioURL: req.NarrationAudioURL,
		VoiceName:         req.VoiceName,
		DurationMs:        req.DurationMs,
		NarrationVolume:   req.NarrationVolume,
		NarrationSpeed:    req.NarrationSpeed,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cl == nil {
		httpapi.NotFound(c, "clip")
		return
	}

	h.broadcast(c, "clip.updated", cl.SceneID, cl.ID)
	c.JSON(http.StatusOK, cl)
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

	cl, err := h.Repo.Move(c.Request.Context(), c.Param("clip_id"), req.To)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cl == nil {
		httpapi.NotFound(c, "clip")
		return
	}

	h.broadcast(c, "clip.moved", cl.SceneID, cl.ID)
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("clip_id")

	cl, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cl == nil {
		httpapi.NotFound(c, "clip")
		return
	}

	ok, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !ok {
		httpapi.NotFound(c, "clip")
		return
	}

	h.broadcast(c, "clip.deleted", cl.SceneID, id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) broadcast(c *gin.Context, event, sceneID, clipID string) {
	if h.Hub == nil {
		return
	}
	storyID, err := h.Repo.StoryOfScene(c.Request.Context(), sceneID)
	if err != nil {
		storyID = ""
	}
	ev := sync.CompositionEvent{
		Type:    event,
		StoryID: storyID,
		SceneID: sceneID,
		ClipID:  clipID,
		At:      time.Now().UTC(),
	}
	go h.Hub.BroadcastJSON(ev)
}
