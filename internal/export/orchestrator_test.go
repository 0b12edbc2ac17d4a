package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"storyhub/internal/export"
	"storyhub/pkg/models"
)

type fakeLoader struct {
	comps map[string]*models.StoryComposition
}

func (l *fakeLoader) LoadComposition(_ context.Context, storyID string) (*models.StoryComposition, error) {
	return l.comps[storyID], nil
}

type fakeRenderer struct {
	requests    []export.SegmentRequest
	failures    map[string]int // clip id -> remaining failures
	measured    map[string]int64
	stitched    []export.Segment
	junctions   []export.Junction
	cancelAfter int // cancel this context after N renders (0 = never)
	cancel      context.CancelFunc
}

func (r *fakeRenderer) RenderSegment(_ context.Context, req export.SegmentRequest) (*export.Segment, error) {
	r.requests = append(r.requests, req)
	if left := r.failures[req.ClipID]; left > 0 {
		r.failures[req.ClipID] = left - 1
		return nil, fmt.Errorf("renderer exploded for %s", req.ClipID)
	}
	if r.cancelAfter > 0 {
		r.cancelAfter--
		if r.cancelAfter == 0 && r.cancel != nil {
			r.cancel()
		}
	}
	dur := req.DurationMs
	if m, ok := r.measured[req.ClipID]; ok {
		dur = m
	}
	return &export.Segment{ClipID: req.ClipID, Path: "/tmp/" + req.ClipID + ".mp4", DurationMs: dur}, nil
}

func (r *fakeRenderer) Stitch(_ context.Context, segments []export.Segment, junctions []export.Junction, outPath string) (*export.Artifact, error) {
	r.stitched = segments
	r.junctions = junctions
	if err := os.WriteFile(outPath, []byte("video"), 0o644); err != nil {
		return nil, err
	}
	var total int64
	for _, s := range segments {
		total += s.DurationMs
	}
	return &export.Artifact{Path: outPath, DurationMs: total, Segments: len(segments)}, nil
}

func ms(v int64) *int64 { return &v }

// two scenes: scene1 holds clips of 1000ms and 1500ms, scene2 one clip
// of 2000ms, fade(500ms) across the scene boundary
func testComposition() *models.StoryComposition {
	return &models.StoryComposition{
		Story: models.Story{
			ID: "story-1", Title: "demo", AspectRatio: models.AspectLandscape,
			NarrationVolume: 1.0, BGMVolume: 0.5, NarrationSpeed: 1.0,
		},
		Scenes: []models.SceneComposition{
			{
				Scene: models.Scene{ID: "scene-1", StoryID: "story-1", BGMUrl: "bgm-a.mp3", OrderIndex: 0},
				Clips: []models.Clip{
					{ID: "clip-1", SceneID: "scene-1", Canvas: "{}", DurationMs: ms(1000), OrderIndex: 0},
					{ID: "clip-2", SceneID: "scene-1", Canvas: "{}", DurationMs: ms(1500), OrderIndex: 1},
				},
			},
			{
				Scene: models.Scene{ID: "scene-2", StoryID: "story-1", OrderIndex: 1},
				Clips: []models.Clip{
					{ID: "clip-3", SceneID: "scene-2", Canvas: "{}", DurationMs: ms(2000), OrderIndex: 0},
				},
			},
		},
		Transitions: []models.Transition{
			{ID: "t-1", FromSceneID: "scene-1", ToSceneID: "scene-2",
				Kind: models.TransitionFade, DurationMs: 500},
		},
	}
}

func newOrchestrator(t *testing.T, comp *models.StoryComposition, r export.Renderer) *export.Orchestrator {
	t.Helper()
	loader := &fakeLoader{comps: map[string]*models.StoryComposition{}}
	if comp != nil {
		loader.comps[comp.ID] = comp
	}
	return export.NewOrchestrator(loader, r, t.TempDir(), nil)
}

func TestExportSegmentOrderAndJunctions(t *testing.T) {
	r := &fakeRenderer{}
	o := newOrchestrator(t, testComposition(), r)

	artifact, err := o.Export(context.Background(), "story-1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if artifact == nil || artifact.Segments != 3 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}

	wantOrder := []string{"clip-1", "clip-2", "clip-3"}
	if len(r.stitched) != 3 {
		t.Fatalf("stitched %d segments, want 3", len(r.stitched))
	}
	for i, want := range wantOrder {
		if r.stitched[i].ClipID != want {
			t.Errorf("segment %d = %s, want %s", i, r.stitched[i].ClipID, want)
		}
	}

	if len(r.junctions) != 2 {
		t.Fatalf("got %d junctions, want 2", len(r.junctions))
	}
	// boundary 1/2 is within scene-1: hard cut
	if r.junctions[0].Kind != models.TransitionNone || r.junctions[0].DurationMs != 0 {
		t.Errorf("junction 0 = %+v, want hard cut", r.junctions[0])
	}
	// boundary 2/3 crosses the scene boundary: fade 500ms
	if r.junctions[1].Kind != models.TransitionFade || r.junctions[1].DurationMs != 500 {
		t.Errorf("junction 1 = %+v, want fade 500ms", r.junctions[1])
	}

	// artifact published without the .part suffix
	if filepath.Ext(artifact.Path) != ".mp4" {
		t.Errorf("artifact path %s still temporary", artifact.Path)
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
}

func TestExportRetriesThenSucceeds(t *testing.T) {
	// two failures stay inside the retry budget (3 attempts total)
	r := &fakeRenderer{failures: map[string]int{"clip-2": 2}}
	o := newOrchestrator(t, testComposition(), r)

	if _, err := o.Export(context.Background(), "story-1"); err != nil {
		t.Fatalf("export should have recovered: %v", err)
	}

	attempts := 0
	for _, req := range r.requests {
		if req.ClipID == "clip-2" {
			attempts++
		}
	}
	if attempts != 3 {
		t.Fatalf("clip-2 rendered %d times, want 3", attempts)
	}
}

func TestExportFailsAfterRetriesExhausted(t *testing.T) {
	r := &fakeRenderer{failures: map[string]int{"clip-2": 99}}
	o := newOrchestrator(t, testComposition(), r)

	_, err := o.Export(context.Background(), "story-1")
	var renderErr *export.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if renderErr.ClipID != "clip-2" {
		t.Errorf("failing clip = %s, want clip-2", renderErr.ClipID)
	}
	if renderErr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", renderErr.Attempts)
	}
	if renderErr.Cause == nil {
		t.Error("expected underlying cause to be carried")
	}
}

func TestExportCancelledBetweenClips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeRenderer{cancelAfter: 1, cancel: cancel}
	loader := &fakeLoader{comps: map[string]*models.StoryComposition{"story-1": testComposition()}}
	outDir := t.TempDir()
	o := export.NewOrchestrator(loader, r, outDir, nil)

	_, err := o.Export(ctx, "story-1")
	if !errors.Is(err, export.ErrExportCancelled) {
		t.Fatalf("expected ErrExportCancelled, got %v", err)
	}

	// no partial artifact may be visible
	entries, readErr := os.ReadDir(outDir)
	if readErr != nil {
		t.Fatalf("read out dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("found leftover artifacts: %v", entries)
	}
}

func TestExportResolvesEffectiveAudio(t *testing.T) {
	comp := testComposition()
	vol := 0.3
	speed := 1.4
	comp.Scenes[0].Clips[0].NarrationVolume = &vol
	comp.Scenes[0].Clips[0].NarrationSpeed = &speed

	r := &fakeRenderer{}
	o := newOrchestrator(t, comp, r)
	if _, err := o.Export(context.Background(), "story-1"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if got := r.requests[0].Audio; got.NarrationVolume != 0.3 || got.NarrationSpeed != 1.4 {
		t.Errorf("clip-1 audio = %+v, want overrides 0.3/1.4", got)
	}
	if got := r.requests[1].Audio; got.NarrationVolume != 1.0 || got.NarrationSpeed != 1.0 {
		t.Errorf("clip-2 audio = %+v, want story defaults", got)
	}
	// scene bgm locator is handed to the renderer
	if r.requests[0].BGMUrl != "bgm-a.mp3" {
		t.Errorf("bgm url = %q", r.requests[0].BGMUrl)
	}
}

func TestExportUsesMeasuredDuration(t *testing.T) {
	// narration overran: measured says 1800ms where the clip declared 1500ms
	r := &fakeRenderer{measured: map[string]int64{"clip-2": 1800}}
	o := newOrchestrator(t, testComposition(), r)

	if _, err := o.Export(context.Background(), "story-1"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if r.stitched[1].DurationMs != 1800 {
		t.Fatalf("stitched duration = %d, want measured 1800", r.stitched[1].DurationMs)
	}
}

func TestExportEmptyStory(t *testing.T) {
	comp := &models.StoryComposition{Story: models.Story{ID: "empty", Title: "empty"}}
	o := newOrchestrator(t, comp, &fakeRenderer{})

	_, err := o.Export(context.Background(), "empty")
	if !errors.Is(err, export.ErrEmptyStory) {
		t.Fatalf("expected ErrEmptyStory, got %v", err)
	}
}

func TestExportUnknownStory(t *testing.T) {
	o := newOrchestrator(t, nil, &fakeRenderer{})

	artifact, err := o.Export(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact != nil {
		t.Fatalf("expected nil artifact for unknown story")
	}
}

type eventSink struct{ types []string }

func (s *eventSink) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	var ev struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(b, &ev)
	s.types = append(s.types, ev.Type)
}

// abortingRenderer cancels the export context from inside a render
// attempt, so the cancellation surfaces through the retry loop.
type abortingRenderer struct {
	*fakeRenderer
	cancel context.CancelFunc
}

func (r *abortingRenderer) RenderSegment(_ context.Context, req export.SegmentRequest) (*export.Segment, error) {
	r.cancel()
	return nil, fmt.Errorf("render interrupted for %s", req.ClipID)
}

func TestExportCancelledMidRenderEmitsCancelledEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &abortingRenderer{fakeRenderer: &fakeRenderer{}, cancel: cancel}
	loader := &fakeLoader{comps: map[string]*models.StoryComposition{"story-1": testComposition()}}
	sink := &eventSink{}
	o := export.NewOrchestrator(loader, r, t.TempDir(), sink)

	_, err := o.Export(ctx, "story-1")
	if !errors.Is(err, export.ErrExportCancelled) {
		t.Fatalf("expected ErrExportCancelled, got %v", err)
	}
	for _, typ := range sink.types {
		if typ == "export.failed" {
			t.Fatalf("failure event emitted for a cancelled export: %v", sink.types)
		}
	}
	if last := sink.types[len(sink.types)-1]; last != "export.cancelled" {
		t.Fatalf("last event = %s, want export.cancelled", last)
	}
}

func TestExportJunctionSpansEmptyScene(t *testing.T) {
	// a clip-less scene sits between the two populated ones; the fade
	// declared for the populated pair must still reach the stitcher
	comp := testComposition()
	comp.Scenes = []models.SceneComposition{
		comp.Scenes[0],
		{Scene: models.Scene{ID: "scene-mid", StoryID: "story-1", OrderIndex: 1}},
		comp.Scenes[1],
	}
	comp.Scenes[2].OrderIndex = 2

	r := &fakeRenderer{}
	o := newOrchestrator(t, comp, r)
	if _, err := o.Export(context.Background(), "story-1"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if len(r.junctions) != 2 {
		t.Fatalf("got %d junctions, want 2", len(r.junctions))
	}
	if r.junctions[1].Kind != models.TransitionFade || r.junctions[1].DurationMs != 500 {
		t.Errorf("boundary junction = %+v, want fade 500ms", r.junctions[1])
	}
}
