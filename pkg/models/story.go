package models

import "time"

// Aspect ratios supported by the editing surface.
const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
	AspectSquare    = "1:1"
	AspectFeed      = "4:5"
)

// Story is the top-level composition: an ordered set of scenes plus
// story-wide audio defaults that cascade down to clips at export time.
type Story struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	AspectRatio     string     `json:"aspect_ratio"`
	Resolution      string     `json:"resolution,omitempty"`
	NarrationVolume float64    `json:"narration_volume"` // 0..1, default 1.0
	BGMVolume       float64    `json:"bgm_volume"`       // 0..1, default 0.5
	NarrationSpeed  float64    `json:"narration_speed"`  // >0, default 1.0
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// AudioSettingsPatch is a partial update of a story's audio defaults.
// Nil fields are left untouched.
type AudioSettingsPatch struct {
	NarrationVolume *float64 `json:"narration_volume,omitempty"`
	BGMVolume       *float64 `json:"bgm_volume,omitempty"`
	NarrationSpeed  *float64 `json:"narration_speed,omitempty"`
}

// ValidAspectRatio reports whether s is one of the supported formats.
func ValidAspectRatio(s string) bool {
	switch s {
	case AspectLandscape, AspectPortrait, AspectSquare, AspectFeed:
		return true
	}
	return false
}
