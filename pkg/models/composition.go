package models

// SceneComposition is a scene together with its clips in playback order.
type SceneComposition struct {
	Scene
	Clips []Clip `json:"clips"`
}

// StoryComposition is the full serializable tree of one story: scenes
// in playback order, each with its ordered clips, plus every transition
// between scenes of the story. This is the round-trip format used by
// the export orchestrator and the import/export tooling.
type StoryComposition struct {
	Story
	Scenes      []SceneComposition `json:"scenes"`
	Transitions []Transition       `json:"transitions"`
}

// SceneByID returns the scene with the given ID, or nil.
func (c *StoryComposition) SceneByID(id string) *SceneComposition {
	for i := range c.Scenes {
		if c.Scenes[i].ID == id {
			return &c.Scenes[i]
		}
	}
	return nil
}

// TransitionBetween returns the transition registered for the ordered
// scene pair (fromID, toID), or nil when the pair has a hard cut.
func (c *StoryComposition) TransitionBetween(fromID, toID string) *Transition {
	for i := range c.Transitions {
		t := &c.Transitions[i]
		if t.FromSceneID == fromID && t.ToSceneID == toID {
			return t
		}
	}
	return nil
}
