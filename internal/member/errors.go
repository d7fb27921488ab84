package member

import "errors"

var (
	ErrNotFound     = errors.New("member: not found")
	ErrInvalidInput = errors.New("member: invalid input")
)

// DeniedError is the strict result of a failed permission check. Call sites
// either propagate it (HTTP 403) or convert it with Allowed.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "member: permission denied: " + e.Reason
}

func denied(reason string) error {
	return &DeniedError{Reason: reason}
}

// Allowed converts the strict check result into a boolean. Any error,
// denial or otherwise, counts as not permitted.
func Allowed(err error) bool {
	return err == nil
}
