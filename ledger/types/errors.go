package types

import (
	"errors"
	"fmt"
)

// UpstreamError is a failure surfaced by the middleware node or ledger,
// carrying the most specific message the upstream made available.
type UpstreamError struct {
	Status  int    // HTTP status from the node, 0 when not applicable
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// IsUpstreamNotFound reports whether err is an upstream 404.
func IsUpstreamNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == 404
}
