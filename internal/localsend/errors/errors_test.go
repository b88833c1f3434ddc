package errors

import (
	"fmt"
	"testing"
)

func TestParseErrorStatusRoundTrip(t *testing.T) {
	statuses := []int{200, 204, 400, 401, 403, 404, 409, 429}

	for _, status := range statuses {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			err := ParseError(status)
			if got := Status(err); got != status {
				t.Errorf("Status(ParseError(%d)) = %d", status, got)
			}
		})
	}
}

func TestParseErrorUnknownStatus(t *testing.T) {
	if err := ParseError(502); err != ErrUnknown {
		t.Errorf("ParseError(502) = %v; want ErrUnknown", err)
	}
}

func TestStatusAuthErrors(t *testing.T) {
	// token problems and cancellations are auth failures on the wire,
	// distinguished from server-side write failures
	for _, err := range []error{ErrInvalidToken, ErrCancelled, ErrRejected} {
		if got := Status(err); got != 403 {
			t.Errorf("Status(%v) = %d; want 403", err, got)
		}
	}
	for _, err := range []error{ErrFileIO, ErrSizeMismatch, ErrChecksum, ErrUnknown} {
		if got := Status(err); got != 500 {
			t.Errorf("Status(%v) = %d; want 500", err, got)
		}
	}
}

func TestStatusWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("upload f1: %w", ErrInvalidToken)
	if got := Status(wrapped); got != 403 {
		t.Errorf("Status(wrapped ErrInvalidToken) = %d; want 403", got)
	}
}
