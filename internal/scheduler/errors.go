package scheduler

import "fmt"

// ValidationError rejects a malformed scheduling request before
// anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CauseMediaMissing is recorded when attached media cannot be found at
// fire time.
const CauseMediaMissing = "media_missing"
