package composition_test

import (
	"testing"

	"storyhub/internal/composition"
	"storyhub/pkg/models"
)

func TestResolveAudioUsesStoryDefaults(t *testing.T) {
	story := &models.Story{NarrationVolume: 1.0, BGMVolume: 0.5, NarrationSpeed: 1.0}
	scene := &models.Scene{}
	clip := &models.Clip{}

	eff := composition.ResolveAudio(story, scene, clip)
	if eff.NarrationVolume != 1.0 || eff.BGMVolume != 0.5 || eff.NarrationSpeed != 1.0 {
		t.Fatalf("unexpected effective settings: %+v", eff)
	}
}

func TestResolveAudioClipOverrideWins(t *testing.T) {
	vol := 0.25
	speed := 1.5
	story := &models.Story{NarrationVolume: 1.0, BGMVolume: 0.5, NarrationSpeed: 1.0}
	clip := &models.Clip{NarrationVolume: &vol, NarrationSpeed: &speed}

	eff := composition.ResolveAudio(story, nil, clip)
	if eff.NarrationVolume != 0.25 {
		t.Fatalf("narration volume = %v, want clip override 0.25", eff.NarrationVolume)
	}
	if eff.NarrationSpeed != 1.5 {
		t.Fatalf("narration speed = %v, want clip override 1.5", eff.NarrationSpeed)
	}
	if eff.BGMVolume != 0.5 {
		t.Fatalf("bgm volume = %v, want story default 0.5", eff.BGMVolume)
	}
}

func TestResolveAudioSceneBGMOverride(t *testing.T) {
	bgm := 0.8
	story := &models.Story{NarrationVolume: 1.0, BGMVolume: 0.5, NarrationSpeed: 1.0}
	scene := &models.Scene{BGMVolume: &bgm}

	eff := composition.ResolveAudio(story, scene, nil)
	if eff.BGMVolume != 0.8 {
		t.Fatalf("bgm volume = %v, want scene override 0.8", eff.BGMVolume)
	}
}

func TestResolveAudioLiveCascade(t *testing.T) {
	// changing the story default after the clip was created must reach
	// the clip: settings resolve at export time, they are not copied.
	story := &models.Story{NarrationVolume: 1.0, BGMVolume: 0.5, NarrationSpeed: 1.0}
	clip := &models.Clip{}

	story.NarrationVolume = 0.6
	eff := composition.ResolveAudio(story, nil, clip)
	if eff.NarrationVolume != 0.6 {
		t.Fatalf("narration volume = %v, want updated default 0.6", eff.NarrationVolume)
	}
}
