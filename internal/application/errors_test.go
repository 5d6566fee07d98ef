package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected HasErrors to report false for nil error")
	}

	if !(&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	vErr.add("start_time", "must be of the form HH:MM")

	if got := vErr.FieldErrors["start_time"]; got != "must be of the form HH:MM" {
		t.Fatalf("expected add to populate map, got %q", got)
	}
	if vErr.Error() != "validation failed" {
		t.Fatalf("unexpected message %q", vErr.Error())
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{ErrInvalidTransition, "invalid_transition"},
		{ErrConflict, "conflict"},
		{ErrDependencyUnavailable, "dependency_unavailable"},
		{&ValidationError{FieldErrors: map[string]string{"field": "bad"}}, "validation"},
		{errors.New("disk on fire"), "unexpected"},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
