package transition

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

type CreateTransition struct {
	FromSceneID string
	ToSceneID   string
	Kind        string
	DurationMs  int64
}

type UpdateTransition struct {
	Kind       *string
	DurationMs *int64
}

// Create registers a transition for an ordered scene pair. Both scenes
// must exist and share a story; the pair must not already have a
// transition; a scene cannot transition to itself.
func (r *Repo) Create(ctx context.Context, in CreateTransition) (*models.Transition, error) {
	if in.FromSceneID == in.ToSceneID {
		return nil, composition.ErrSelfTransition
	}
	kind := in.Kind
	if kind == "" {
		kind = models.TransitionFade
	}
	if !models.ValidTransitionKind(kind) {
		return nil, composition.Violation("value", "unknown transition kind %q", kind)
	}
	if in.DurationMs < 0 {
		return nil, composition.Violation("value", "transition duration must be >= 0")
	}

	fromStory, err := r.storyOfScene(ctx, in.FromSceneID)
	if err != nil {
		return nil, err
	}
	toStory, err := r.storyOfScene(ctx, in.ToSceneID)
	if err != nil {
		return nil, err
	}
	if fromStory == "" || toStory == "" {
		return nil, composition.Violation("reference", "one or both scenes do not exist")
	}
	if fromStory != toStory {
		return nil, composition.ErrCrossStoryReference
	}

	release := r.Locks.Lock(fromStory)
	defer release()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM scene_transitions WHERE from_scene_id = ? AND to_scene_id = ?
	`, in.FromSceneID, in.ToSceneID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check transition pair: %w", err)
	}
	if existing > 0 {
		return nil, composition.ErrDuplicateTransition
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scene_transitions (id, from_scene_id, to_scene_id, kind, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, id, in.FromSceneID, in.ToSceneID, kind, in.DurationMs); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, composition.ErrDuplicateTransition
		}
		return nil, fmt.Errorf("insert transition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE stories SET version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, fromStory); err != nil {
		return nil, fmt.Errorf("touch story: %w", err)
	}
	row := tx.QueryRowContext(ctx, `
		SELECT id, from_scene_id, to_scene_id, kind, duration_ms, created_at, updated_at
		FROM scene_transitions
		WHERE id = ?
	`, id)
	t, err := scanTransition(row)
	if err != nil {
		return nil, fmt.Errorf("read transition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return t, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Transition, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, from_scene_id, to_scene_id, kind, duration_ms, created_at, updated_at
		FROM scene_transitions
		WHERE id = ?
	`, id)

	t, err := scanTransition(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get transition: %w", err)
	}
	return t, nil
}

// ListByStory returns every transition whose scenes belong to storyID.
func (r *Repo) ListByStory(ctx context.Context, storyID string) ([]models.Transition, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT t.id, t.from_scene_id, t.to_scene_id, t.kind, t.duration_ms,
			t.created_at, t.updated_at
		FROM scene_transitions t
		JOIN scenes s ON s.id = t.from_scene_id
		WHERE s.story_id = ?
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id string, in UpdateTransition) (*models.Transition, error) {
	if in.Kind != nil && !models.ValidTransitionKind(*in.Kind) {
		return nil, composition.Violation("value", "unknown transition kind %q", *in.Kind)
	}
	if in.DurationMs != nil && *in.DurationMs < 0 {
		return nil, composition.Violation("value", "transition duration must be >= 0")
	}

	var sets []string
	var args []any
	if in.Kind != nil {
		sets = append(sets, "kind = ?")
		args = append(args, *in.Kind)
	}
	if in.DurationMs != nil {
		sets = append(sets, "duration_ms = ?")
		args = append(args, *in.DurationMs)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		`UPDATE scene_transitions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update transition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM scene_transitions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transition: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) storyOfScene(ctx context.Context, sceneID string) (string, error) {
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

func scanTransition(row interface{ Scan(...any) error }) (*models.Transition, error) {
	var (
		t         models.Transition
		createdAt time.Time
		updatedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.FromSceneID, &t.ToSceneID, &t.Kind,
		&t.DurationMs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = createdAt
	if updatedAt.Valid {
		u := updatedAt.Time
		t.UpdatedAt = &u
	}
	return &t, nil
}
