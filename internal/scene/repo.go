package scene

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

type CreateScene struct {
	BGMUrl      string
	BGMName     string
	Description string
	BGMVolume   *float64
}

type UpdateScene struct {
	BGMUrl      *string
	BGMName     *string
	Description *string
	BGMVolume   *float64
	ClearBGMVol bool
}

// Append creates a scene at the end of the story's playback order.
func (r *Repo) Append(ctx context.Context, storyID string, in CreateScene) (*models.Scene, error) {
	if in.BGMVolume != nil && !composition.ValidVolume(*in.BGMVolume) {
		return nil, composition.Violation("value", "bgm volume must be within [0,1]")
	}

	release := r.Locks.Lock(storyID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM stories WHERE id = ?`, storyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check story: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scenes WHERE story_id = ?`, storyID).Scan(&next); err != nil {
		return nil, fmt.Errorf("count scenes: %w", err)
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenes (id, story_id, bgm_url, bgm_name, description, bgm_volume, order_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, storyID, nullable(in.BGMUrl), nullable(in.BGMName),
		nullable(in.Description), in.BGMVolume, next); err != nil {
		return nil, fmt.Errorf("insert scene: %w", err)
	}

	if err := touchStory(ctx, tx, storyID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append tx: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Scene, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, story_id, bgm_url, bgm_name, description, bgm_volume,
			order_index, created_at, updated_at
		FROM scenes
		WHERE id = ?
	`, id)

	s, err := scanScene(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return s, nil
}

func (r *Repo) ListByStory(ctx context.Context, storyID string) ([]models.Scene, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, story_id, bgm_url, bgm_name, description, bgm_volume,
			order_index, created_at, updated_at
		FROM scenes
		WHERE story_id = ?
		ORDER BY order_index ASC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []models.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Update changes non-ordering scene fields.
func (r *Repo) Update(ctx context.Context, id string, in UpdateScene) (*models.Scene, error) {
	if in.BGMVolume != nil && !composition.ValidVolume(*in.BGMVolume) {
		return nil, composition.Violation("value", "bgm volume must be within [0,1]")
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	release := r.Locks.Lock(current.StoryID)
	defer release()

	var sets []string
	var args []any
	if in.BGMUrl != nil {
		sets = append(sets, "bgm_url = ?")
		args = append(args, nullable(*in.BGMUrl))
	}
	if in.BGMName != nil {
		sets = append(sets, "bgm_name = ?")
		args = append(args, nullable(*in.BGMName))
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullable(*in.Description))
	}
	if in.BGMVolume != nil {
		sets = append(sets, "bgm_volume = ?")
		args = append(args, *in.BGMVolume)
	} else if in.ClearBGMVol {
		sets = append(sets, "bgm_volume = NULL")
	}
	if len(sets) == 0 {
		return current, nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	if _, err := r.DB.ExecContext(ctx,
		`UPDATE scenes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update scene: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Move reassigns order indexes so the scene lands at position `to`
// within its story, computed against the post-removal sequence. The
// whole sibling set is rewritten in one transaction.
func (r *Repo) Move(ctx context.Context, id string, to int) (*models.Scene, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	release := r.Locks.Lock(current.StoryID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin move tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := orderedSceneIDs(ctx, tx, current.StoryID)
	if err != nil {
		return nil, err
	}

	reordered, ok := composition.Move(ids, id, to)
	if !ok {
		return nil, composition.ErrConcurrentModification
	}
	if err := writeSceneOrder(ctx, tx, reordered); err != nil {
		return nil, err
	}
	if err := touchStory(ctx, tx, current.StoryID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit move tx: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the scene, its clips and any transition touching it
// (FK cascade), then recompacts the surviving sibling order.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	release := r.Locks.Lock(current.StoryID)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	ids, err := orderedSceneIDs(ctx, tx, current.StoryID)
	if err != nil {
		return false, err
	}
	if err := writeSceneOrder(ctx, tx, ids); err != nil {
		return false, err
	}
	if err := touchStory(ctx, tx, current.StoryID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	return true, nil
}

func orderedSceneIDs(ctx context.Context, tx *sql.Tx, storyID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM scenes WHERE story_id = ? ORDER BY order_index ASC
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("load scene order: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scene id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scene id rows err: %w", err)
	}
	return ids, nil
}

func writeSceneOrder(ctx context.Context, tx *sql.Tx, ids []string) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE scenes SET order_index = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, i, id); err != nil {
			return fmt.Errorf("write scene order: %w", err)
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

func scanScene(row interface{ Scan(...any) error }) (*models.Scene, error) {
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

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
