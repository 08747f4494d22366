package utils

import (
	"fmt"
)

// MakeError wraps err with a formatted detail message, err first so every
// wrapped diagnostic reads "<underlying cause>: <what eld was doing>".
func MakeError(err error, detailsBody string, args ...any) error {
	return fmt.Errorf("%w: "+detailsBody, append([]any{err}, args...)...)
}
