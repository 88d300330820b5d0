package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage maps an internal error to text that can be shown to
// the user. Transport errors are surfaced verbatim per the error
// handling policy; wrapped internals fall back to a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested document could not be found."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	}
	return err.Error()
}
