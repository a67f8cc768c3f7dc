package services

import "errors"

var (
	// ErrDuplicateEntry means the owner already has an entry for today.
	ErrDuplicateEntry = errors.New("you can only create one moodboard per day")
	// ErrNotFound means no entry with that id belongs to the owner.
	ErrNotFound = errors.New("moodboard not found")
	// ErrOutOfWindow means the entry is not today's and can no longer change.
	ErrOutOfWindow = errors.New("you can only modify today's moodboard")
	// ErrStoreUnavailable wraps infrastructure failures from the record store.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// ValidationError reports a missing or malformed payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
