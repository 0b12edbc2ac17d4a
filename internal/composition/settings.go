package composition

import "storyhub/pkg/models"

// EffectiveAudio is the resolved audio mix for one clip after applying
// the cascade: clip override > scene override > story default. Defaults
// are resolved at export time, never denormalized into clip rows, so a
// later change to the story defaults reaches existing clips.
type EffectiveAudio struct {
	NarrationVolume float64 `json:"narration_volume"`
	BGMVolume       float64 `json:"bgm_volume"`
	NarrationSpeed  float64 `json:"narration_speed"`
}

// ResolveAudio computes the effective audio settings for clip within
// scene within story.
func ResolveAudio(story *models.Story, scene *models.Scene, clip *models.Clip) EffectiveAudio {
	eff := EffectiveAudio{
		NarrationVolume: story.NarrationVolume,
		BGMVolume:       story.BGMVolume,
		NarrationSpeed:  story.NarrationSpeed,
	}
	if scene != nil && scene.BGMVolume != nil {
		eff.BGMVolume = *scene.BGMVolume
	}
	if clip != nil {
		if clip.NarrationVolume != nil {
			eff.NarrationVolume = *clip.NarrationVolume
		}
		if clip.NarrationSpeed != nil {
			eff.NarrationSpeed = *clip.NarrationSpeed
		}
	}
	return eff
}

// ValidVolume reports whether v is a usable volume level.
func ValidVolume(v float64) bool { return v >= 0 && v <= 1 }

// ValidSpeed reports whether v is a usable narration speed.
func ValidSpeed(v float64) bool { return v > 0 }
