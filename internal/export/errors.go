package export

import (
	"errors"
	"fmt"
)

// ErrExportCancelled is returned when the caller's context is cancelled
// between clips. No partial artifact is left behind.
var ErrExportCancelled = errors.New("export cancelled")

// ErrEmptyStory is returned when a story has no renderable clips.
var ErrEmptyStory = errors.New("story has no clips to export")

// RenderError reports that one clip's segment render exhausted its
// retry budget. The whole export fails; a clip is never silently
// dropped from the output.
type RenderError struct {
	StoryID  string
	ClipID   string
	Attempts int
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render clip %s failed after %d attempts: %v", e.ClipID, e.Attempts, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }
