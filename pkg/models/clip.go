package models

import "time"

// Clip is the smallest timed unit of a story: one serialized canvas
// snapshot plus narration metadata and a duration. The canvas payload
// is opaque to the backend; it only has to be valid JSON and is handed
// to the renderer unmodified.
type Clip struct {
	ID                string     `json:"id"`
	SceneID           string     `json:"scene_id"`
	Canvas            string     `json:"canvas"`
	ImageURL          string     `json:"image_url,omitempty"` // derived preview, cleared when the canvas changes
	Narration         string     `json:"narration,omitempty"`
	NarrationAudioURL string     `json:"narration_audio_url,omitempty"`
	VoiceName         string     `json:"voice_name,omitempty"`
	DurationMs        *int64     `json:"duration_ms,omitempty"` // nil until computed
	NarrationVolume   *float64   `json:"narration_volume,omitempty"`
	NarrationSpeed    *float64   `json:"narration_speed,omitempty"`
	OrderIndex        int        `json:"order_index"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}
