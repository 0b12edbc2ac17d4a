package transition_test

import (
	"context"
	"errors"
	"testing"

	"storyhub/internal/composition"
	"storyhub/internal/scene"
	"storyhub/internal/story"
	"storyhub/internal/testsupport"
	"storyhub/internal/transition"
	"storyhub/pkg/models"
)

type fixture struct {
	stories     *story.Repo
	scenes      *scene.Repo
	transitions *transition.Repo
	storyID     string
	sceneA      string
	sceneB      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.NewDB(t)
	locks := composition.NewLocks()
	ctx := context.Background()

	f := &fixture{
		stories:     story.NewRepo(db, locks),
		scenes:      scene.NewRepo(db, locks),
		transitions: transition.NewRepo(db, locks),
	}
	s, err := f.stories.Create(ctx, story.CreateStory{Title: "Transitions"})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	f.storyID = s.ID

	a, err := f.scenes.Append(ctx, s.ID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append scene A: %v", err)
	}
	b, err := f.scenes.Append(ctx, s.ID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append scene B: %v", err)
	}
	f.sceneA, f.sceneB = a.ID, b.ID
	return f
}

func TestCreateDefaultsToFade(t *testing.T) {
	f := newFixture(t)

	tr, err := f.transitions.Create(context.Background(), transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr.Kind != models.TransitionFade {
		t.Errorf("kind = %q, want fade", tr.Kind)
	}
	if tr.DurationMs != 0 {
		t.Errorf("duration = %d, want 0", tr.DurationMs)
	}
}

func TestCreateRejectsDuplicatePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB, Kind: models.TransitionZoom,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB, Kind: models.TransitionWipe,
	})
	if !errors.Is(err, composition.ErrDuplicateTransition) {
		t.Fatalf("err = %v, want ErrDuplicateTransition", err)
	}

	// the reverse direction is a distinct pair
	if _, err := f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneB, ToSceneID: f.sceneA,
	}); err != nil {
		t.Fatalf("reverse pair: %v", err)
	}
}

func TestCreateRejectsSelfTransition(t *testing.T) {
	f := newFixture(t)

	_, err := f.transitions.Create(context.Background(), transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneA,
	})
	if !errors.Is(err, composition.ErrSelfTransition) {
		t.Fatalf("err = %v, want ErrSelfTransition", err)
	}
}

func TestCreateRejectsCrossStoryPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.stories.Create(ctx, story.CreateStory{Title: "Other"})
	if err != nil {
		t.Fatalf("create other story: %v", err)
	}
	foreign, err := f.scenes.Append(ctx, other.ID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append foreign scene: %v", err)
	}

	_, err = f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: foreign.ID,
	})
	if !errors.Is(err, composition.ErrCrossStoryReference) {
		t.Fatalf("err = %v, want ErrCrossStoryReference", err)
	}
}

func TestCreateRejectsUnknownScene(t *testing.T) {
	f := newFixture(t)

	_, err := f.transitions.Create(context.Background(), transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: "absent",
	})
	if !composition.IsConstraint(err) {
		t.Fatalf("err = %v, want constraint violation", err)
	}
}

func TestSceneDeleteRemovesItsTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if ok, err := f.scenes.Delete(ctx, f.sceneB); err != nil || !ok {
		t.Fatalf("delete scene: ok=%v err=%v", ok, err)
	}

	got, err := f.transitions.GetByID(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("transition survived scene delete: %+v", got)
	}
}

func TestUpdateAndListByStory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.transitions.Create(ctx, transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB, DurationMs: 300,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	kind := models.TransitionWipe
	dur := int64(750)
	got, err := f.transitions.Update(ctx, tr.ID, transition.UpdateTransition{Kind: &kind, DurationMs: &dur})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Kind != models.TransitionWipe || got.DurationMs != 750 {
		t.Errorf("updated = %s/%d, want wipe/750", got.Kind, got.DurationMs)
	}

	list, err := f.transitions.ListByStory(ctx, f.storyID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != tr.ID {
		t.Fatalf("list = %+v, want single %s", list, tr.ID)
	}
}

func TestCreateReturnsCommittedRow(t *testing.T) {
	f := newFixture(t)

	tr, err := f.transitions.Create(context.Background(), transition.CreateTransition{
		FromSceneID: f.sceneA, ToSceneID: f.sceneB,
		Kind: models.TransitionSlide, DurationMs: 250,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr == nil {
		t.Fatal("create returned nil transition")
	}
	if tr.ID == "" || tr.CreatedAt.IsZero() {
		t.Fatalf("returned row not fully populated: %+v", tr)
	}
	if tr.Kind != models.TransitionSlide || tr.DurationMs != 250 {
		t.Fatalf("returned row = %+v, want slide/250ms", tr)
	}

	got, err := f.transitions.GetByID(context.Background(), tr.ID)
	if err != nil || got == nil {
		t.Fatalf("reread: %v %v", got, err)
	}
}
