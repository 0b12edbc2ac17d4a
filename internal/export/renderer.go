package export

import (
	"context"

	"storyhub/internal/composition"
)

// SegmentRequest carries everything the rendering collaborator needs
// for one clip. The canvas payload travels through unmodified; audio
// locators are opaque strings resolved by the renderer.
type SegmentRequest struct {
	ClipID            string
	Canvas            string
	ImageURL          string
	NarrationAudioURL string
	BGMUrl            string
	DurationMs        int64
	Audio             composition.EffectiveAudio
	AspectRatio       string
	Resolution        string
}

// Segment is one rendered clip. DurationMs is the measured duration of
// the encoded segment, which is authoritative for stitching.
type Segment struct {
	ClipID     string
	Path       string
	DurationMs int64
}

// Junction describes the boundary between segments[i] and
// segments[i+1]. Scene boundaries carry the registered transition's
// kind and duration; everything else is a hard cut.
type Junction struct {
	Kind       string
	DurationMs int64
}

// Artifact is the handle to one assembled video. Long-term storage of
// the file is the caller's concern.
type Artifact struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
	Segments   int    `json:"segments"`
}

// Renderer is the external rendering collaborator.
type Renderer interface {
	RenderSegment(ctx context.Context, req SegmentRequest) (*Segment, error)
	Stitch(ctx context.Context, segments []Segment, junctions []Junction, outPath string) (*Artifact, error)
}
