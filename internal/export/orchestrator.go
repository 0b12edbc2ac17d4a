package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"storyhub/internal/composition"
	"storyhub/pkg/models"
)

// maxRetries bounds how often a single clip's render is retried before
// the whole export fails. Three attempts total.
const maxRetries = 2

// CompositionLoader is the persistence collaborator the orchestrator
// reads from. Export never mutates composition state.
type CompositionLoader interface {
	LoadComposition(ctx context.Context, storyID string) (*models.StoryComposition, error)
}

// Broadcaster receives export progress events. Satisfied by sync.Hub.
type Broadcaster interface {
	BroadcastJSON(v any)
}

type Orchestrator struct {
	Stories  CompositionLoader
	Renderer Renderer
	OutDir   string
	Hub      Broadcaster // optional
}

func NewOrchestrator(stories CompositionLoader, renderer Renderer, outDir string, hub Broadcaster) *Orchestrator {
	return &Orchestrator{Stories: stories, Renderer: renderer, OutDir: outDir, Hub: hub}
}

type progressEvent struct {
	Type    string `json:"type"`
	StoryID string `json:"story_id"`
	ClipID  string `json:"clip_id,omitempty"`
	Segment int    `json:"segment,omitempty"`
	Total   int    `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`
	At      string `json:"at"`
}

// Export walks the story's scenes and clips in playback order, renders
// each clip through the rendering collaborator and stitches the
// segments into one artifact. Returns (nil, nil) when the story does
// not exist.
func (o *Orchestrator) Export(ctx context.Context, storyID string) (*Artifact, error) {
	// snapshot once so concurrent reordering cannot interleave stale
	// and fresh positions into a long-running export
	comp, err := o.Stories.LoadComposition(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("load composition: %w", err)
	}
	if comp == nil {
		return nil, nil
	}

	total := 0
	for _, sc := range comp.Scenes {
		total += len(sc.Clips)
	}
	if total == 0 {
		return nil, ErrEmptyStory
	}

	o.emit(progressEvent{Type: "export.started", StoryID: storyID, Total: total})

	var (
		segments  []Segment
		junctions []Junction
	)
	for si := range comp.Scenes {
		scene := &comp.Scenes[si]
		for ci := range scene.Clips {
			cl := &scene.Clips[ci]

			if err := ctx.Err(); err != nil {
				o.emit(progressEvent{Type: "export.cancelled", StoryID: storyID})
				return nil, ErrExportCancelled
			}

			if len(segments) > 0 {
				junctions = append(junctions, o.junctionBefore(comp, si, ci))
			}

			seg, err := o.renderClip(ctx, comp, scene, cl)
			if errors.Is(err, ErrExportCancelled) {
				o.emit(progressEvent{Type: "export.cancelled", StoryID: storyID})
				return nil, ErrExportCancelled
			}
			if err != nil {
				o.emit(progressEvent{Type: "export.failed", StoryID: storyID,
					ClipID: cl.ID, Error: err.Error()})
				return nil, err
			}
			segments = append(segments, *seg)

			o.emit(progressEvent{Type: "export.segment", StoryID: storyID,
				ClipID: cl.ID, Segment: len(segments), Total: total})
		}
	}

	if err := ctx.Err(); err != nil {
		o.emit(progressEvent{Type: "export.cancelled", StoryID: storyID})
		return nil, ErrExportCancelled
	}

	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure export dir: %w", err)
	}
	finalPath := filepath.Join(o.OutDir,
		fmt.Sprintf("story_%s_%d.mp4", storyID, time.Now().Unix()))
	partPath := finalPath + ".part"

	artifact, err := o.Renderer.Stitch(ctx, segments, junctions, partPath)
	if err != nil {
		_ = os.Remove(partPath)
		if ctx.Err() != nil {
			o.emit(progressEvent{Type: "export.cancelled", StoryID: storyID})
			return nil, ErrExportCancelled
		}
		o.emit(progressEvent{Type: "export.failed", StoryID: storyID, Error: err.Error()})
		return nil, fmt.Errorf("stitch segments: %w", err)
	}

	if err := os.Rename(artifact.Path, finalPath); err != nil {
		_ = os.Remove(artifact.Path)
		return nil, fmt.Errorf("publish artifact: %w", err)
	}
	artifact.Path = finalPath

	o.emit(progressEvent{Type: "export.completed", StoryID: storyID, Total: total})
	return artifact, nil
}

// renderClip invokes the rendering collaborator with retries. The
// measured segment duration wins over the declared clip duration; a
// disagreement is reported but never truncates the segment.
func (o *Orchestrator) renderClip(ctx context.Context, comp *models.StoryComposition, scene *models.SceneComposition, cl *models.Clip) (*Segment, error) {
	req := SegmentRequest{
		ClipID:            cl.ID,
		Canvas:            cl.Canvas,
		ImageURL:          cl.ImageURL,
		NarrationAudioURL: cl.NarrationAudioURL,
		BGMUrl:            scene.BGMUrl,
		Audio:             composition.ResolveAudio(&comp.Story, &scene.Scene, cl),
		AspectRatio:       comp.AspectRatio,
		Resolution:        comp.Resolution,
	}
	if cl.DurationMs != nil {
		req.DurationMs = *cl.DurationMs
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, ErrExportCancelled
		}

		seg, err := o.Renderer.RenderSegment(ctx, req)
		if err == nil {
			if cl.DurationMs != nil && seg.DurationMs != *cl.DurationMs {
				log.Printf("duration mismatch clip=%s declared=%dms measured=%dms, using measured",
					cl.ID, *cl.DurationMs, seg.DurationMs)
			}
			return seg, nil
		}
		lastErr = err
		if attempt <= maxRetries {
			log.Printf("render clip %s attempt %d failed: %v (retrying)", cl.ID, attempt, err)
		}
	}

	return nil, &RenderError{
		StoryID:  comp.ID,
		ClipID:   cl.ID,
		Attempts: maxRetries + 1,
		Cause:    lastErr,
	}
}

// junctionBefore describes the boundary preceding clip ci of scene si.
// Only the boundary between two scenes can carry a transition; clip
// boundaries inside one scene are always hard cuts.
func (o *Orchestrator) junctionBefore(comp *models.StoryComposition, si, ci int) Junction {
	if ci != 0 || si == 0 {
		return Junction{Kind: models.TransitionNone, DurationMs: 0}
	}
	// the previous segment comes from the nearest earlier scene that
	// holds clips; scenes without clips contribute no boundary
	for pi := si - 1; pi >= 0; pi-- {
		if len(comp.Scenes[pi].Clips) == 0 {
			continue
		}
		if t := comp.TransitionBetween(comp.Scenes[pi].ID, comp.Scenes[si].ID); t != nil {
			return Junction{Kind: t.Kind, DurationMs: t.DurationMs}
		}
		break
	}
	return Junction{Kind: models.TransitionNone, DurationMs: 0}
}

func (o *Orchestrator) emit(ev progressEvent) {
	if o.Hub == nil {
		return
	}
	ev.At = time.Now().UTC().Format(time.RFC3339)
	o.Hub.BroadcastJSON(ev)
}
