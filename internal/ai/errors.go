package ai

import (
	"errors"
	"fmt"
)

// ErrRevisionUnsupported reports a revise request against a provider without
// revision capability.
var ErrRevisionUnsupported = errors.New("revision is not supported by current AI provider")

// ErrInvalidInput wraps request-shape problems the caller must fix.
var ErrInvalidInput = errors.New("invalid input")

// NotFoundError identifies a missing artifact, project, or job.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
