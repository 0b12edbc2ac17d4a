package composition

import (
	"encoding/json"
	"strings"
)

// ValidateCanvas checks the one property the backend cares about: the
// snapshot must be parseable serialized data. Shape contents are never
// inspected; the payload travels to the renderer unmodified.
func ValidateCanvas(canvas string) error {
	if strings.TrimSpace(canvas) == "" {
		return violationf("canvas", "canvas snapshot is required")
	}
	if !json.Valid([]byte(canvas)) {
		return violationf("canvas", "canvas snapshot is not valid JSON")
	}
	return nil
}
