package clip_test

import (
	"context"
	"testing"

	"storyhub/internal/clip"
	"storyhub/internal/composition"
	"storyhub/internal/scene"
	"storyhub/internal/story"
	"storyhub/internal/testsupport"
)

type fixture struct {
	clips   *clip.Repo
	sceneID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.NewDB(t)
	locks := composition.NewLocks()
	ctx := context.Background()

	s, err := story.NewRepo(db, locks).Create(ctx, story.CreateStory{Title: "Clips"})
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	sc, err := scene.NewRepo(db, locks).Append(ctx, s.ID, scene.CreateScene{})
	if err != nil {
		t.Fatalf("append scene: %v", err)
	}
	return &fixture{clips: clip.NewRepo(db, locks), sceneID: sc.ID}
}

func (f *fixture) insert(t *testing.T, position *int) string {
	t.Helper()
	cl, err := f.clips.Insert(context.Background(), f.sceneID, clip.CreateClip{
		Canvas:   `{"objects":[]}`,
		Position: position,
	})
	if err != nil {
		t.Fatalf("insert clip: %v", err)
	}
	return cl.ID
}

func (f *fixture) orderedIDs(t *testing.T) []string {
	t.Helper()
	clips, err := f.clips.ListByScene(context.Background(), f.sceneID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	ids := make([]string, len(clips))
	for i, cl := range clips {
		if cl.OrderIndex != i {
			t.Fatalf("clip %d has order_index %d", i, cl.OrderIndex)
		}
		ids[i] = cl.ID
	}
	return ids
}

func intp(v int) *int { return &v }

func TestInsertAtPositionShiftsSiblings(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, nil)
	b := f.insert(t, nil)
	mid := f.insert(t, intp(1))

	got := f.orderedIDs(t)
	want := []string{a, mid, b}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestInsertClampsPosition(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, nil)
	tail := f.insert(t, intp(50))
	head := f.insert(t, intp(-3))

	got := f.orderedIDs(t)
	want := []string{head, a, tail}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestInsertRejectsInvalidCanvas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, canvas := range []string{"", "{not json"} {
		_, err := f.clips.Insert(ctx, f.sceneID, clip.CreateClip{Canvas: canvas})
		if !composition.IsConstraint(err) {
			t.Errorf("canvas %q: err = %v, want constraint violation", canvas, err)
		}
	}
}

func TestInsertRejectsBadOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := []clip.CreateClip{
		{Canvas: "{}", DurationMs: i64(0)},
		{Canvas: "{}", NarrationVolume: f64(2)},
		{Canvas: "{}", NarrationSpeed: f64(-1)},
	}
	for i, in := range bad {
		if _, err := f.clips.Insert(ctx, f.sceneID, in); !composition.IsConstraint(err) {
			t.Errorf("case %d: err = %v, want constraint violation", i, err)
		}
	}
}

func TestInsertUnknownScene(t *testing.T) {
	f := newFixture(t)

	cl, err := f.clips.Insert(context.Background(), "absent", clip.CreateClip{Canvas: "{}"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if cl != nil {
		t.Fatalf("got %+v, want nil", cl)
	}
}

func TestMoveUsesPostRemovalTarget(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, nil)
	b := f.insert(t, nil)
	c := f.insert(t, nil)

	// moving the head to index 1 lands it between the remaining two
	if _, err := f.clips.Move(context.Background(), a, 1); err != nil {
		t.Fatalf("move: %v", err)
	}

	got := f.orderedIDs(t)
	want := []string{b, a, c}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDeleteCompactsOrder(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, nil)
	b := f.insert(t, nil)
	c := f.insert(t, nil)

	ok, err := f.clips.Delete(context.Background(), b)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	got := f.orderedIDs(t)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("order after delete = %v, want [%s %s]", got, a, c)
	}
}

func TestCanvasUpdateDropsStalePreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cl, err := f.clips.Insert(ctx, f.sceneID, clip.CreateClip{
		Canvas:   `{"objects":[1]}`,
		ImageURL: "/images/preview.png",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	canvas := `{"objects":[1,2]}`
	got, err := f.clips.Update(ctx, cl.ID, clip.UpdateClip{Canvas: &canvas})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ImageURL != "" {
		t.Errorf("image_url = %q, want cleared after canvas change", got.ImageURL)
	}

	// replacing both at once keeps the fresh render
	canvas2 := `{"objects":[3]}`
	img := "/images/rerender.png"
	got, err = f.clips.Update(ctx, cl.ID, clip.UpdateClip{Canvas: &canvas2, ImageURL: &img})
	if err != nil {
		t.Fatalf("update with image: %v", err)
	}
	if got.ImageURL != img {
		t.Errorf("image_url = %q, want %q", got.ImageURL, img)
	}
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
