package sync

import "time"

// CompositionEvent is broadcast whenever a story's composition changes:
// entity create/update/delete, reorder, audio-settings merge. Export
// progress is emitted by the export orchestrator with its own payload.
type CompositionEvent struct {
	Type    string    `json:"type"` // e.g. "story.updated", "scene.moved", "clip.deleted"
	StoryID string    `json:"story_id"`
	SceneID string    `json:"scene_id,omitempty"`
	ClipID  string    `json:"clip_id,omitempty"`
	At      time.Time `json:"at"`
}
