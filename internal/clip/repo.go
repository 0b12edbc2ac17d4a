package clip

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storyhub/internal/composition"
	"storyhub/pkg/models"
)

type Repo struct {
	DB    *sql.DB
	Locks *composition.Locks
}

func NewRepo(db *sql.DB, locks *composition.Locks) *Repo {
	return &Repo{DB: db, Locks: locks}
}

type CreateClip struct {
	Canvas            string
	ImageURL          string
	Narration         string
	NarrationAudioURL string
	VoiceName         string
	DurationMs        *int64
	NarrationVolume   *float64
	NarrationSpeed    *float64
	Position          *int // nil appends
}

type UpdateClip struct {
	Canvas            *string
	ImageURL          *string
	Narration         *string
	NarrationAudioURL *string
	VoiceName         *string
	DurationMs        *int64
	NarrationVolume   *float64
	NarrationSpeed    *float64
}

// Insert adds a clip to a scene. With Position set, siblings at or
// after the (clamped) position shift up by one; otherwise the clip is
// appended.
func (r *Repo) Insert(ctx context.Context, sceneID string, in CreateClip) (*models.Clip, error) {
	if err := composition.ValidateCanvas(in.Canvas); err != nil {
		return nil, err
	}
	if err := validateOverrides(in.DurationMs, in.NarrationVolume, in.NarrationSpeed); err != nil {
		return nil, err
	}

	storyID, err := r.StoryOfScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if storyID == "" {
		return nil, nil
	}

	release := r.Locks.Lock(storyID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := orderedClipIDs(ctx, tx, sceneID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	pos := len(ids)
	if in.Position != nil {
		pos = composition.ClampPosition(*in.Position, len(ids))
	}
	reordered := composition.InsertAt(ids, id, pos)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO clips (id, scene_id, canvas, image_url, narration,
			narration_audio_url, voice_name, duration_ms,
			narration_volume, narration_speed, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, sceneID, in.Canvas, nullable(in.ImageURL), nullable(in.Narration),
		nullable(in.NarrationAudioURL), nullable(in.VoiceName), in.DurationMs,
		in.NarrationVolume, in.NarrationSpeed, pos); err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}

	if err := writeClipOrder(ctx, tx, reordered); err != nil {
		return nil, err
	}
	if err := touchStory(ctx, tx, storyID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert tx: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Clip, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, scene_id, canvas, image_url, narration, narration_audio_url,
			voice_name, duration_ms, narration_volume, narration_speed,
			order_index, created_at, updated_at
		FROM clips
		WHERE id = ?
	`, id)

	c, err := scanClip(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return c, nil
}

func (r *Repo) ListByScene(ctx context.Context, sceneID string) ([]models.Clip, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, scene_id, canvas, image_url, narration, narration_audio_url,
			voice_name, duration_ms, narration_volume, narration_speed,
			order_index, created_at, updated_at
		FROM clips
		WHERE scene_id = ?
		ORDER BY order_index ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []models.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Update changes non-ordering clip fields. A canvas change invalidates
// the derived preview image unless the caller supplies a new one.
func (r *Repo) Update(ctx context.Context, id string, in UpdateClip) (*models.Clip, error) {
	if in.Canvas != nil {
		if err := composition.ValidateCanvas(*in.Canvas); err != nil {
			return nil, err
		}
	}
	if err := validateOverrides(in.DurationMs, in.NarrationVolume, in.NarrationSpeed); err != nil {
		return nil, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	storyID, err := r.StoryOfScene(ctx, current.SceneID)
	if err != nil {
		return nil, err
	}

	release := r.Locks.Lock(storyID)
	defer release()

	var sets []string
	var args []any
	if in.Canvas != nil {
		sets = append(sets, "canvas = ?")
		args = append(args, *in.Canvas)
		if in.ImageURL == nil {
			// stale preview, the renderer will produce a fresh one
			sets = append(sets, "image_url = NULL")
		}
	}
	if in.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, nullable(*in.ImageURL))
	}
	if in.Narration != nil {
		sets = append(sets, "narration = ?")
		args = append(args, nullable(*in.Narration))
	}
	if in.NarrationAudioURL != nil {
		sets = append(sets, "narration_audio_url = ?")
		args = append(args, nullable(*in.NarrationAudioURL))
	}
	if in.VoiceName != nil {
		sets = append(sets, "voice_name = ?")
		args = append(args, nullable(*in.VoiceName))
	}
	if in.DurationMs != nil {
		sets = append(sets, "duration_ms = ?")
		args = append(args, *in.DurationMs)
	}
	if in.NarrationVolume != nil {
		sets = append(sets, "narration_volume = ?")
		args = append(args, *in.NarrationVolume)
	}
	if in.NarrationSpeed != nil {
		sets = append(sets, "narration_speed = ?")
		args = append(args, *in.NarrationSpeed)
	}
	if len(sets) == 0 {
		return current, nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	if _, err := r.DB.ExecContext(ctx,
		`UPDATE clips SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update clip: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Move repositions the clip within its scene; the target index is
// interpreted against the post-removal sequence.
func (r *Repo) Move(ctx context.Context, id string, to int) (*models.Clip, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	storyID, err := r.StoryOfScene(ctx, current.SceneID)
	if err != nil {
		return nil, err
	}

	release := r.Locks.Lock(storyID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin move tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := orderedClipIDs(ctx, tx, current.SceneID)
	if err != nil {
		return nil, err
	}
	reordered, ok := composition.Move(ids, id, to)
	if !ok {
		return nil, composition.ErrConcurrentModification
	}
	if err := writeClipOrder(ctx, tx, reordered); err != nil {
		return nil, err
	}
	if err := touchStory(ctx, tx, storyID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move tx: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the clip and recompacts its siblings.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	storyID, err := r.StoryOfScene(ctx, current.SceneID)
	if err != nil {
		return false, err
	}

	release := r.Locks.Lock(storyID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete clip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	ids, err := orderedClipIDs(ctx, tx, current.SceneID)
	if err != nil {
		return false, err
	}
	if err := writeClipOrder(ctx, tx, ids); err != nil {
		return false, err
	}
	if err := touchStory(ctx, tx, storyID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	return true, nil
}

func (r *Repo) StoryOfScene(ctx context.Context, sceneID string) (string, error) {
	var storyID string
	err := r.DB.QueryRowContext(ctx,
		`SELECT story_id FROM scenes WHERE id = ?`, sceneID).Scan(&storyID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve scene story: %w", err)
	}
	return storyID, nil
}

func validateOverrides(durationMs *int64, vol, speed *float64) error {
	if durationMs != nil && *durationMs <= 0 {
		return composition.Violation("value", "duration must be > 0 ms")
	}
	if vol != nil && !composition.ValidVolume(*vol) {
		return composition.Violation("value", "narration volume must be within [0,1]")
	}
	if speed != nil && !composition.ValidSpeed(*speed) {
		return composition.Violation("value", "narration speed must be > 0")
	}
	return nil
}

func orderedClipIDs(ctx context.Context, tx *sql.Tx, sceneID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM clips WHERE scene_id = ? ORDER BY order_index ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("load clip order: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan clip id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clip id rows err: %w", err)
	}
	return ids, nil
}

func writeClipOrder(ctx context.Context, tx *sql.Tx, ids []string) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE clips SET order_index = ? WHERE id = ?
		`, i, id); err != nil {
			return fmt.Errorf("write clip order: %w", err)
		}
	}
	return nil
}

func touchStory(ctx context.Context, tx *sql.Tx, storyID string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE stories SET version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, storyID); err != nil {
		return fmt.Errorf("touch story: %w", err)
	}
	return nil
}

func scanClip(row interface{ Scan(...any) error }) (*models.Clip, error) {
	var (
		c              models.Clip
		imageURL       sql.NullString
		narration      sql.NullString
		narrationAudio sql.NullString
		voiceName      sql.NullString
		durationMs     sql.NullInt64
		narrationVol   sql.NullFloat64
		narrationSpeed sql.NullFloat64
		createdAt      time.Time
		updatedAt      sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.SceneID, &c.Canvas, &imageURL, &narration,
		&narrationAudio, &voiceName, &durationMs, &narrationVol,
		&narrationSpeed, &c.OrderIndex, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.ImageURL = imageURL.String
	c.Narration = narration.String
	c.NarrationAudioURL = narrationAudio.String
	c.VoiceName = voiceName.String
	if durationMs.Valid {
		d := durationMs.Int64
		c.DurationMs = &d
	}
	if narrationVol.Valid {
		v := narrationVol.Float64
		c.NarrationVolume = &v
	}
	if narrationSpeed.Valid {
		v := narrationSpeed.Float64
		c.NarrationSpeed = &v
	}
	c.CreatedAt = createdAt
	if updatedAt.Valid {
		u := updatedAt.Time
		c.UpdatedAt = &u
	}
	return &c, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
