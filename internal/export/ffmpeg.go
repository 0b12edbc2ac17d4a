package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"storyhub/pkg/models"
)

// defaultClipMs is used when a clip has no declared duration and no
// narration track to derive one from.
const defaultClipMs = 3000

// FFmpegRenderer drives ffmpeg/ffprobe subprocesses. It is the boundary
// adapter to the media-encoding collaborator; encoding internals stay
// with ffmpeg.
type FFmpegRenderer struct {
	FFmpegBin  string
	FFprobeBin string
	WorkDir    string
	FPS        int
	KeepTemp   bool
}

func NewFFmpegRenderer(workDir string) *FFmpegRenderer {
	return &FFmpegRenderer{
		FFmpegBin:  "ffmpeg",
		FFprobeBin: "ffprobe",
		WorkDir:    workDir,
		FPS:        30,
	}
}

func (r *FFmpegRenderer) RenderSegment(ctx context.Context, req SegmentRequest) (*Segment, error) {
	if err := os.MkdirAll(r.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure work dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(r.WorkDir, "segment-")
	if err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	if !r.KeepTemp {
		defer func() {
			if err := os.RemoveAll(tmpDir); err != nil {
				log.Printf("cleanup %s: %v", tmpDir, err)
			}
		}()
	}

	// the canvas payload is handed through untouched; it sits next to
	// the segment for the rasterizing surface and for diagnostics
	if err := os.WriteFile(filepath.Join(tmpDir, "canvas.json"), []byte(req.Canvas), 0o644); err != nil {
		return nil, fmt.Errorf("write canvas payload: %w", err)
	}

	var imagePath, narrationPath, bgmPath string
	g, gctx := errgroup.WithContext(ctx)
	if req.ImageURL != "" {
		g.Go(func() error {
			var err error
			imagePath, err = stageAsset(gctx, req.ImageURL, filepath.Join(tmpDir, "frame"))
			return err
		})
	}
	if req.NarrationAudioURL != "" {
		g.Go(func() error {
			var err error
			narrationPath, err = stageAsset(gctx, req.NarrationAudioURL, filepath.Join(tmpDir, "narration"))
			return err
		})
	}
	if req.BGMUrl != "" {
		g.Go(func() error {
			var err error
			bgmPath, err = stageAsset(gctx, req.BGMUrl, filepath.Join(tmpDir, "bgm"))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage assets: %w", err)
	}

	durationMs := req.DurationMs
	if durationMs <= 0 && narrationPath != "" {
		if probed, err := r.probeDurationMs(ctx, narrationPath); err == nil && probed > 0 {
			durationMs = probed
		}
	}
	if durationMs <= 0 {
		durationMs = defaultClipMs
	}

	width, height := dimensions(req.Resolution, req.AspectRatio)
	outPath := filepath.Join(tmpDir, "segment.mp4")
	args := r.segmentArgs(imagePath, narrationPath, bgmPath, outPath,
		width, height, durationMs, req.Audio.NarrationVolume,
		req.Audio.BGMVolume, req.Audio.NarrationSpeed)

	if err := r.run(ctx, args); err != nil {
		return nil, fmt.Errorf("encode segment for clip %s: %w", req.ClipID, err)
	}

	measured, err := r.probeDurationMs(ctx, outPath)
	if err != nil || measured <= 0 {
		measured = durationMs
	}

	// keep the segment out of the throwaway dir
	finalPath := filepath.Join(r.WorkDir, fmt.Sprintf("clip_%s.mp4", req.ClipID))
	if err := os.Rename(outPath, finalPath); err != nil {
		return nil, fmt.Errorf("move segment: %w", err)
	}

	return &Segment{ClipID: req.ClipID, Path: finalPath, DurationMs: measured}, nil
}

func (r *FFmpegRenderer) Stitch(ctx context.Context, segments []Segment, junctions []Junction, outPath string) (*Artifact, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to stitch")
	}
	if len(segments) == 1 && len(junctions) == 0 {
		if err := copyFile(segments[0].Path, outPath); err != nil {
			return nil, fmt.Errorf("copy single segment: %w", err)
		}
		return &Artifact{Path: outPath, DurationMs: segments[0].DurationMs, Segments: 1}, nil
	}
	if len(junctions) != len(segments)-1 {
		return nil, fmt.Errorf("expected %d junctions, got %d", len(segments)-1, len(junctions))
	}

	if allHardCuts(junctions) {
		if err := r.concat(ctx, segments, outPath); err != nil {
			return nil, err
		}
	} else if err := r.blend(ctx, segments, junctions, outPath); err != nil {
		return nil, err
	}

	var total int64
	for _, s := range segments {
		total += s.DurationMs
	}
	for _, j := range junctions {
		if j.Kind != models.TransitionNone {
			total -= j.DurationMs // crossfades overlap
		}
	}

	return &Artifact{Path: outPath, DurationMs: total, Segments: len(segments)}, nil
}

// concat joins segments with hard cuts through the concat demuxer.
func (r *FFmpegRenderer) concat(ctx context.Context, segments []Segment, outPath string) error {
	listPath := outPath + ".list"
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "file '%s'\n", s.Path)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{"-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath}
	if err := r.run(ctx, args); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}
	return nil
}

// blend joins segments with an xfade/acrossfade filter graph so marked
// junctions fade instead of hard-cutting.
func (r *FFmpegRenderer) blend(ctx context.Context, segments []Segment, junctions []Junction, outPath string) error {
	args := make([]string, 0, len(segments)*2+8)
	for _, s := range segments {
		args = append(args, "-i", s.Path)
	}

	var filter strings.Builder
	prevV, prevA := "[0:v]", "[0:a]"
	var offsetMs int64
	for i, j := range junctions {
		curV := fmt.Sprintf("[%d:v]", i+1)
		curA := fmt.Sprintf("[%d:a]", i+1)
		outV := fmt.Sprintf("[v%d]", i+1)
		outA := fmt.Sprintf("[a%d]", i+1)

		offsetMs += segments[i].DurationMs
		durMs := j.DurationMs
		if j.Kind == models.TransitionNone || durMs <= 0 {
			// zero-length fade degenerates to a cut at the boundary
			durMs = 1
		} else {
			offsetMs -= durMs
		}

		fmt.Fprintf(&filter, "%s%sxfade=transition=%s:duration=%s:offset=%s%s;",
			prevV, curV, xfadeName(j.Kind), seconds(durMs), seconds(offsetMs), outV)
		fmt.Fprintf(&filter, "%s%sacrossfade=d=%s%s;",
			prevA, curA, seconds(durMs), outA)

		prevV, prevA = outV, outA
	}

	graph := strings.TrimSuffix(filter.String(), ";")
	args = append(args, "-filter_complex", graph,
		"-map", prevV, "-map", prevA,
		"-pix_fmt", "yuv420p", "-movflags", "+faststart", outPath)

	if err := r.run(ctx, args); err != nil {
		return fmt.Errorf("blend segments: %w", err)
	}
	return nil
}

func (r *FFmpegRenderer) segmentArgs(imagePath, narrationPath, bgmPath, outPath string, width, height int, durationMs int64, narrationVol, bgmVol, speed float64) []string {
	dur := seconds(durationMs)

	args := []string{}
	if imagePath != "" {
		args = append(args, "-loop", "1", "-t", dur, "-i", imagePath)
	} else {
		args = append(args, "-f", "lavfi", "-t", dur,
			"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d", width, height, r.FPS))
	}

	audioInputs := 0
	if narrationPath != "" {
		args = append(args, "-i", narrationPath)
		audioInputs++
	}
	if bgmPath != "" {
		args = append(args, "-stream_loop", "-1", "-t", dur, "-i", bgmPath)
		audioInputs++
	}

	var filter strings.Builder
	fmt.Fprintf(&filter, "[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2[v]",
		width, height, width, height)

	switch audioInputs {
	case 2:
		fmt.Fprintf(&filter, ";[1:a]volume=%.3f,atempo=%.3f[na];[2:a]volume=%.3f[ba];[na][ba]amix=inputs=2:duration=first[a]",
			narrationVol, clampTempo(speed), bgmVol)
	case 1:
		vol := narrationVol
		tempo := clampTempo(speed)
		if narrationPath == "" {
			vol = bgmVol
			tempo = 1.0
		}
		fmt.Fprintf(&filter, ";[1:a]volume=%.3f,atempo=%.3f[a]", vol, tempo)
	default:
		args = append(args, "-f", "lavfi", "-t", dur, "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
		filter.WriteString(";[1:a]anull[a]")
	}

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[v]", "-map", "[a]",
		"-t", dur,
		"-r", strconv.Itoa(r.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264", "-preset", "medium",
		"-c:a", "aac",
		outPath,
	)
	return args
}

func (r *FFmpegRenderer) run(ctx context.Context, args []string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "warning"}, args...)
	cmd := exec.CommandContext(ctx, r.FFmpegBin, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 1000 {
			msg = msg[:1000] + "... [truncated]"
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

func (r *FFmpegRenderer) probeDurationMs(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, r.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return int64(secs * 1000), nil
}

// stageAsset copies a locator into the segment workspace. Locators are
// opaque: local paths are copied, http(s) URLs fetched, nothing is
// decoded.
func stageAsset(ctx context.Context, locator, destBase string) (string, error) {
	dest := destBase + filepath.Ext(locator)

	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return "", fmt.Errorf("build asset request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch asset %s: %w", locator, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch asset %s: status %d", locator, resp.StatusCode)
		}
		f, err := os.Create(dest)
		if err != nil {
			return "", fmt.Errorf("create staged asset: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(f, resp.Body); err != nil {
			return "", fmt.Errorf("write staged asset: %w", err)
		}
		return dest, nil
	}

	if err := copyFile(locator, dest); err != nil {
		return "", fmt.Errorf("stage local asset %s: %w", locator, err)
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func dimensions(resolution, aspect string) (int, int) {
	if w, h, ok := strings.Cut(resolution, "x"); ok {
		width, werr := strconv.Atoi(strings.TrimSpace(w))
		height, herr := strconv.Atoi(strings.TrimSpace(h))
		if werr == nil && herr == nil && width > 0 && height > 0 {
			return width, height
		}
	}
	switch aspect {
	case models.AspectPortrait:
		return 1080, 1920
	case models.AspectSquare:
		return 1080, 1080
	case models.AspectFeed:
		return 1080, 1350
	default:
		return 1920, 1080
	}
}

func xfadeName(kind string) string {
	switch kind {
	case models.TransitionSlide:
		return "slideleft"
	case models.TransitionZoom:
		return "zoomin"
	case models.TransitionWipe:
		return "wipeleft"
	default:
		return "fade"
	}
}

// atempo only accepts 0.5..2.0 per instance
func clampTempo(speed float64) float64 {
	if speed < 0.5 {
		return 0.5
	}
	if speed > 2.0 {
		return 2.0
	}
	return speed
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}

func allHardCuts(junctions []Junction) bool {
	for _, j := range junctions {
		if j.Kind != models.TransitionNone && j.DurationMs > 0 {
			return false
		}
	}
	return true
}
