package story

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyhub/internal/composition"
	"storyhub/pkg/models"
)

// LoadComposition reads the story's full ordered tree (scenes, clips,
// transitions) inside a single transaction, so a long-running export
// never observes a half-applied reorder.
func (r *Repo) LoadComposition(ctx context.Context, storyID string) (*models.StoryComposition, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin composition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, title, description, aspect_ratio, resolution,
			narration_volume, bgm_volume, narration_speed, version,
			created_at, updated_at
		FROM stories
		WHERE id = ?
	`, storyID)
	s, err := scanStory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load story: %w", err)
	}

	comp := &models.StoryComposition{Story: *s}

	sceneRows, err := tx.QueryContext(ctx, `
		SELECT id, story_id, bgm_url, bgm_name, description, bgm_volume,
			order_index, created_at, updated_at
		FROM scenes
		WHERE story_id = ?
		ORDER BY order_index ASC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("load scenes: %w", err)
	}
	defer sceneRows.Close()

	for sceneRows.Next() {
		sc, err := scanScene(sceneRows)
		if err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		comp.Scenes = append(comp.Scenes, models.SceneComposition{Scene: *sc, Clips: []models.Clip{}})
	}
	if err := sceneRows.Err(); err != nil {
		return nil, fmt.Errorf("scene rows err: %w", err)
	}

	clipRows, err := tx.QueryContext(ctx, `
		SELECT c.id, c.scene_id, c.canvas, c.image_url, c.narration,
			c.narration_audio_url, c.voice_name, c.duration_ms,
			c.narration_volume, c.narration_speed, c.order_index,
			c.created_at, c.updated_at
		FROM clips c
		JOIN scenes s ON s.id = c.scene_id
		WHERE s.story_id = ?
		ORDER BY s.order_index ASC, c.order_index ASC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("load clips: %w", err)
	}
	defer clipRows.Close()

	for clipRows.Next() {
		cl, err := scanClip(clipRows)
		if err != nil {
			return nil, fmt.Errorf("scan clip row: %w", err)
		}
		if sc := comp.SceneByID(cl.SceneID); sc != nil {
			sc.Clips = append(sc.Clips, *cl)
		}
	}
	if err := clipRows.Err(); err != nil {
		return nil, fmt.Errorf("clip rows err: %w", err)
	}

	trRows, err := tx.QueryContext(ctx, `
		SELECT t.id, t.from_scene_id, t.to_scene_id, t.kind, t.duration_ms,
			t.created_at, t.updated_at
		FROM scene_transitions t
		JOIN scenes s ON s.id = t.from_scene_id
		WHERE s.story_id = ?
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("load transitions: %w", err)
	}
	defer trRows.Close()

	for trRows.Next() {
		var (
			t         models.Transition
			createdAt time.Time
			updatedAt sql.NullTime
		)
		if err := trRows.Scan(&t.ID, &t.FromSceneID, &t.ToSceneID, &t.Kind,
			&t.DurationMs, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		t.CreatedAt = createdAt
		if updatedAt.Valid {
			u := updatedAt.Time
			t.UpdatedAt = &u
		}
		comp.Transitions = append(comp.Transitions, t)
	}
	if err := trRows.Err(); err != nil {
		return nil, fmt.Errorf("transition rows err: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit composition tx: %w", err)
	}
	return comp, nil
}

// ImportComposition reconstructs a previously exported story tree under
// fresh identifiers. Ordering, scene/clip references, transitions and
// audio settings are preserved; timestamps are newly assigned.
func (r *Repo) ImportComposition(ctx context.Context, comp *models.StoryComposition) (*models.StoryComposition, error) {
	if comp == nil {
		return nil, composition.Violation("value", "composition payload is required")
	}
	if comp.Title == "" {
		return nil, composition.Violation("value", "title is required")
	}
	if comp.AspectRatio != "" && !models.ValidAspectRatio(comp.AspectRatio) {
		return nil, composition.Violation("value", "unknown aspect ratio %q", comp.AspectRatio)
	}
	for _, sc := range comp.Scenes {
		for _, cl := range sc.Clips {
			if err := composition.ValidateCanvas(cl.Canvas); err != nil {
				return nil, err
			}
		}
	}

	storyID := uuid.NewString()
	sceneIDs := make(map[string]string, len(comp.Scenes))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	aspect := comp.AspectRatio
	if aspect == "" {
		aspect = models.AspectLandscape
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stories (id, title, description, aspect_ratio, resolution,
			narration_volume, bgm_volume, narration_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, storyID, comp.Title, nullable(comp.Description), aspect,
		nullable(comp.Resolution), comp.NarrationVolume, comp.BGMVolume,
		comp.NarrationSpeed); err != nil {
		return nil, fmt.Errorf("import story: %w", err)
	}

	for i, sc := range comp.Scenes {
		id := uuid.NewString()
		sceneIDs[sc.ID] = id
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scenes (id, story_id, bgm_url, bgm_name, description,
				bgm_volume, order_index)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, storyID, nullable(sc.BGMUrl), nullable(sc.BGMName),
			nullable(sc.Description), sc.BGMVolume, i); err != nil {
			return nil, fmt.Errorf("import scene %d: %w", i, err)
		}

		for j, cl := range sc.Clips {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO clips (id, scene_id, canvas, image_url, narration,
					narration_audio_url, voice_name, duration_ms,
					narration_volume, narration_speed, order_index)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, uuid.NewString(), id, cl.Canvas, nullable(cl.ImageURL),
				nullable(cl.Narration), nullable(cl.NarrationAudioURL),
				nullable(cl.VoiceName), cl.DurationMs, cl.NarrationVolume,
				cl.NarrationSpeed, j); err != nil {
				return nil, fmt.Errorf("import clip %d/%d: %w", i, j, err)
			}
		}
	}

	for _, t := range comp.Transitions {
		from, okFrom := sceneIDs[t.FromSceneID]
		to, okTo := sceneIDs[t.ToSceneID]
		if !okFrom || !okTo {
			return nil, composition.Violation("reference",
				"transition %s references a scene outside the composition", t.ID)
		}
		if from == to {
			return nil, composition.ErrSelfTransition
		}
		kind := t.Kind
		if kind == "" {
			kind = models.TransitionFade
		}
		if !models.ValidTransitionKind(kind) {
			return nil, composition.Violation("value", "unknown transition kind %q", kind)
		}
		if t.DurationMs < 0 {
			return nil, composition.Violation("value", "transition duration must be >= 0")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scene_transitions (id, from_scene_id, to_scene_id, kind, duration_ms)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), from, to, kind, t.DurationMs); err != nil {
			return nil, fmt.Errorf("import transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import tx: %w", err)
	}
	return r.LoadComposition(ctx, storyID)
}

func scanScene(row rowScanner) (*models.Scene, error) {
	var (
		s           models.Scene
		bgmURL      sql.NullString
		bgmName     sql.NullString
		description sql.NullString
		bgmVolume   sql.NullFloat64
		createdAt   time.Time
		updatedAt   sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.StoryID, &bgmURL, &bgmName, &description,
		&bgmVolume, &s.OrderIndex, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.BGMUrl = bgmURL.String
	s.BGMName = bgmName.String
	s.Description = description.String
	if bgmVolume.Valid {
		v := bgmVolume.Float64
		s.BGMVolume = &v
	}
	s.CreatedAt = createdAt
	if updatedAt.Valid {
		u := updatedAt.Time
		s.UpdatedAt = &u
	}
	return &s, nil
}

func scanClip(row rowScanner) (*models.Clip, error) {
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
