package scene_test

import (
	"context"
	"testing"

	"storyhub/internal/composition"
	"storyhub/internal/scene"
	"storyhub/internal/story"
	"storyhub/internal/testsupport"
)

type fixture struct {
	stories *story.Repo
	scenes  *scene.Repo
	storyID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.NewDB(t)
	locks := composition.NewLocks()
	f := &fixture{
		stories: story.NewRepo(db, locks),
		scenes:  scene.NewRepo(db, locks),
	}
	s, err := f.stories.Create(context.Background(), story.CreateStory{Title: "Scenes"})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	f.storyID = s.ID
	return f
}

func (f *fixture) orderedIDs(t *testing.T) []string {
	t.Helper()
	scenes, err := f.scenes.ListByStory(context.Background(), f.storyID)
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	ids := make([]string, len(scenes))
	for i, sc := range scenes {
		if sc.OrderIndex != i {
			t.Fatalf("scene %d has order_index %d", i, sc.OrderIndex)
		}
		ids[i] = sc.ID
	}
	return ids
}

func TestAppendAssignsContiguousIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sc, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if sc.OrderIndex != i {
			t.Errorf("append %d got order_index %d", i, sc.OrderIndex)
		}
		ids = append(ids, sc.ID)
	}

	got := f.orderedIDs(t)
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order = %v, want %v", got, ids)
		}
	}
}

func TestAppendUnknownStory(t *testing.T) {
	f := newFixture(t)

	sc, err := f.scenes.Append(context.Background(), "absent", scene.CreateScene{})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if sc != nil {
		t.Fatalf("got %+v, want nil", sc)
	}
}

func TestMoveReindexesSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		sc, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, sc.ID)
	}

	// move the last scene to the front
	moved, err := f.scenes.Move(ctx, ids[3], 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.OrderIndex != 0 {
		t.Errorf("moved order_index = %d, want 0", moved.OrderIndex)
	}

	want := []string{ids[3], ids[0], ids[1], ids[2]}
	got := f.orderedIDs(t)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMoveClampsTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
	b, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	moved, err := f.scenes.Move(ctx, a.ID, 99)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.OrderIndex != 1 {
		t.Errorf("order_index = %d, want clamped to 1", moved.OrderIndex)
	}
	got := f.orderedIDs(t)
	if got[0] != b.ID || got[1] != a.ID {
		t.Fatalf("order = %v, want [%s %s]", got, b.ID, a.ID)
	}
}

func TestDeleteCompactsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sc, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, sc.ID)
	}

	ok, err := f.scenes.Delete(ctx, ids[1])
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	got := f.orderedIDs(t)
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[2] {
		t.Fatalf("order after delete = %v, want [%s %s]", got, ids[0], ids[2])
	}
}

func TestUpdateBGMVolumeOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	vol := 0.25
	got, err := f.scenes.Update(ctx, sc.ID, scene.UpdateScene{BGMVolume: &vol})
	if err != nil {
		t.Fatalf("set override: %v", err)
	}
	if got.BGMVolume == nil || *got.BGMVolume != 0.25 {
		t.Fatalf("override = %v, want 0.25", got.BGMVolume)
	}

	got, err = f.scenes.Update(ctx, sc.ID, scene.UpdateScene{ClearBGMVol: true})
	if err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if got.BGMVolume != nil {
		t.Fatalf("override = %v, want nil after clear", *got.BGMVolume)
	}
}

func TestMutationsBumpStoryVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, _ := f.stories.GetByID(ctx, f.storyID)

	if _, err := f.scenes.Append(ctx, f.storyID, scene.CreateScene{}); err != nil {
		t.Fatalf("append: %v", err)
	}

	after, _ := f.stories.GetByID(ctx, f.storyID)
	if after.Version != before.Version+1 {
		t.Errorf("version %d -> %d, want +1", before.Version, after.Version)
	}
}
