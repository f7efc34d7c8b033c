package bucketd

import (
	"github.com/pkg/errors"

	"github.com/reveald/bucketd/aggs"
)

// ErrUnknownIndex rejects a search naming an index the engine does
// not hold.
var ErrUnknownIndex = errors.New("unknown index")

// IsValidationError returns true when err rejects the request itself,
// as opposed to a failure while executing it.
func IsValidationError(err error) bool {
	var verr *aggs.ValidationError
	return errors.As(err, &verr)
}
