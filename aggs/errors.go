package aggs

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError rejects an aggregation request before any document
// is scanned. The whole search fails; no partial result is produced.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...any) error {
	return errors.WithStack(&ValidationError{Reason: fmt.Sprintf(format, args...)})
}

// ErrMergeInconsistency marks aggregation state that disagrees across
// shards for the same name. It indicates an internal fault, not a bad
// request.
var ErrMergeInconsistency = errors.New("inconsistent aggregation state")
