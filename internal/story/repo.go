package story

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

type CreateStory struct {
	Title           string
	Description     string
	AspectRatio     string
	Resolution      string
	NarrationVolume *float64
	BGMVolume       *float64
	NarrationSpeed  *float64
}

type UpdateStory struct {
	Title       *string
	Description *string
	AspectRatio *string
	Resolution  *string
}

func (r *Repo) Create(ctx context.Context, in CreateStory) (*models.Story, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, composition.Violation("value", "title is required")
	}

	aspect := in.AspectRatio
	if aspect == "" {
		aspect = models.AspectLandscape
	}
	if !models.ValidAspectRatio(aspect) {
		return nil, composition.Violation("value", "unknown aspect ratio %q", aspect)
	}

	narration := 1.0
	if in.NarrationVolume != nil {
		narration = *in.NarrationVolume
	}
	bgm := 0.5
	if in.BGMVolume != nil {
		bgm = *in.BGMVolume
	}
	speed := 1.0
	if in.NarrationSpeed != nil {
		speed = *in.NarrationSpeed
	}
	if !composition.ValidVolume(narration) || !composition.ValidVolume(bgm) {
		return nil, composition.Violation("value", "volumes must be within [0,1]")
	}
	if !composition.ValidSpeed(speed) {
		return nil, composition.Violation("value", "narration speed must be > 0")
	}

	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO stories (id, title, description, aspect_ratio, resolution,
			narration_volume, bgm_volume, narration_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, title, nullable(in.Description), aspect, nullable(in.Resolution),
		narration, bgm, speed)
	if err != nil {
		return nil, fmt.Errorf("insert story: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Story, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, title, description, aspect_ratio, resolution,
			narration_volume, bgm_volume, narration_speed, version,
			created_at, updated_at
		FROM stories
		WHERE id = ?
	`, id)

	s, err := scanStory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get story: %w", err)
	}
	return s, nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.Story, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stories: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, description, aspect_ratio, resolution,
			narration_volume, bgm_volume, narration_speed, version,
			created_at, updated_at
		FROM stories
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	out := make([]models.Story, 0, limit)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan story row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

func (r *Repo) Update(ctx context.Context, id string, in UpdateStory) (*models.Story, error) {
	release := r.Locks.Lock(id)
	defer release()

	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, composition.Violation("value", "title cannot be empty")
	}
	if in.AspectRatio != nil && !models.ValidAspectRatio(*in.AspectRatio) {
		return nil, composition.Violation("value", "unknown aspect ratio %q", *in.AspectRatio)
	}

	var sets []string
	var args []any
	if in.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, strings.TrimSpace(*in.Title))
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullable(*in.Description))
	}
	if in.AspectRatio != nil {
		sets = append(sets, "aspect_ratio = ?")
		args = append(args, *in.AspectRatio)
	}
	if in.Resolution != nil {
		sets = append(sets, "resolution = ?")
		args = append(args, nullable(*in.Resolution))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "version = version + 1", "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		`UPDATE stories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdateAudioSettings merges a partial set of audio defaults into the
// story. Absent fields keep their stored values.
func (r *Repo) UpdateAudioSettings(ctx context.Context, id string, patch models.AudioSettingsPatch) (*models.Story, error) {
	release := r.Locks.Lock(id)
	defer release()

	if patch.NarrationVolume != nil && !composition.ValidVolume(*patch.NarrationVolume) {
		return nil, composition.Violation("value", "narration volume must be within [0,1]")
	}
	if patch.BGMVolume != nil && !composition.ValidVolume(*patch.BGMVolume) {
		return nil, composition.Violation("value", "bgm volume must be within [0,1]")
	}
	if patch.NarrationSpeed != nil && !composition.ValidSpeed(*patch.NarrationSpeed) {
		return nil, composition.Violation("value", "narration speed must be > 0")
	}

	var sets []string
	var args []any
	if patch.NarrationVolume != nil {
		sets = append(sets, "narration_volume = ?")
		args = append(args, *patch.NarrationVolume)
	}
	if patch.BGMVolume != nil {
		sets = append(sets, "bgm_volume = ?")
		args = append(args, *patch.BGMVolume)
	}
	if patch.NarrationSpeed != nil {
		sets = append(sets, "narration_speed = ?")
		args = append(args, *patch.NarrationSpeed)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "version = version + 1", "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		`UPDATE stories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update audio settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes the story and cascades to every descendant scene,
// clip and transition.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	release := r.Locks.Lock(id)
	defer release()

	res, err := r.DB.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete story: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*models.Story, error) {
	var (
		s           models.Story
		description sql.NullString
		resolution  sql.NullString
		createdAt   time.Time
		updatedAt   sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.Title, &description, &s.AspectRatio, &resolution,
		&s.NarrationVolume, &s.BGMVolume, &s.NarrationSpeed, &s.Version,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	s.Description = description.String
	s.Resolution = resolution.String
	s.CreatedAt = createdAt
	if updatedAt.Valid {
		t := updatedAt.Time
		s.UpdatedAt = &t
	}
	return &s, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
