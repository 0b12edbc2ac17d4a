package models

import "time"

// Scene is an ordered group of clips inside a story sharing one
// background audio track. OrderIndex is zero-based and contiguous
// within the owning story.
type Scene struct {
	ID          string     `json:"id"`
	StoryID     string     `json:"story_id"`
	BGMUrl      string     `json:"bgm_url,omitempty"`  // opaque locator, never opened by the core
	BGMName     string     `json:"bgm_name,omitempty"` // display name for the editing surface
	Description string     `json:"description,omitempty"`
	BGMVolume   *float64   `json:"bgm_volume,omitempty"` // override of the story default
	OrderIndex  int        `json:"order_index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
