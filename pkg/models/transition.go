package models

import "time"

// Transition kinds. KindNone is a hard cut.
const (
	TransitionFade  = "fade"
	TransitionSlide = "slide"
	TransitionZoom  = "zoom"
	TransitionWipe  = "wipe"
	TransitionNone  = "none"
)

// Transition is a directed playback effect between two scenes of the
// same story. At most one transition may exist per ordered scene pair.
type Transition struct {
	ID          string     `json:"id"`
	FromSceneID string     `json:"from_scene_id"`
	ToSceneID   string     `json:"to_scene_id"`
	Kind        string     `json:"kind"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ValidTransitionKind reports whether k names a known transition kind.
func ValidTransitionKind(k string) bool {
	switch k {
	case TransitionFade, TransitionSlide, TransitionZoom, TransitionWipe, TransitionNone:
		return true
	}
	return false
}
