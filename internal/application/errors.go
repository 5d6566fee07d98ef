package application

import "errors"

var (
	// ErrNotFound is returned when the requested session, template or subject does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidTransition is returned when a class is not eligible for the
	// requested state change, including any change attempted after its start
	// time has passed.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrConflict is returned when a write collides with an existing slot.
	ErrConflict = errors.New("application: slot conflict")
	// ErrDependencyUnavailable is returned when a required collaborator
	// (template store, session store) cannot be reached.
	ErrDependencyUnavailable = errors.New("application: dependency unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
