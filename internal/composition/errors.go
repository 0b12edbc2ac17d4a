package composition

import (
	"errors"
	"fmt"
)

// Transition-specific constraint failures. Handlers translate these to
// 409/400 responses; repos return them before any write happens.
var (
	ErrDuplicateTransition    = errors.New("a transition already exists for this scene pair")
	ErrSelfTransition         = errors.New("transition cannot connect a scene to itself")
	ErrCrossStoryReference    = errors.New("scenes belong to different stories")
	ErrConcurrentModification = errors.New("story was modified concurrently, retry")
)

// ConstraintViolation reports which composition rule a rejected
// mutation would have broken. The mutation is rejected atomically:
// no partial state change is ever persisted.
type ConstraintViolation struct {
	Rule   string // "ordering", "reference", "canvas", "value"
	Detail string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s): %s", e.Rule, e.Detail)
}

func violationf(rule, format string, args ...any) *ConstraintViolation {
	return &ConstraintViolation{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// Violation builds a ConstraintViolation for the given rule.
func Violation(rule, format string, args ...any) *ConstraintViolation {
	return violationf(rule, format, args...)
}

// IsConstraint reports whether err is any composition constraint error,
// including the transition sentinels.
func IsConstraint(err error) bool {
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return true
	}
	return errors.Is(err, ErrDuplicateTransition) ||
		errors.Is(err, ErrSelfTransition) ||
		errors.Is(err, ErrCrossStoryReference)
}
