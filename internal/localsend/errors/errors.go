package errors

import (
	"errors"
)

var (
	ErrNothingAccepted = errors.New("no file transfer needed")
	ErrInvalidBody     = errors.New("invalid body")
	ErrRejected        = errors.New("rejected")
	ErrInvalidPIN      = errors.New("invalid PIN")
	ErrInvalidToken    = errors.New("invalid or consumed token")
	ErrNotFound        = errors.New("no such session")
	ErrBlockedByOthers = errors.New("blocked by another session")
	ErrTooManyReq      = errors.New("too many requests")
	ErrFileIO          = errors.New("file IO")
	ErrSizeMismatch    = errors.New("declared size and stream length disagree")
	ErrChecksum        = errors.New("sha256 mismatch")
	ErrFingerprint     = errors.New("fingerprint mismatch")
	ErrCancelled       = errors.New("cancelled")
	ErrUnreachable     = errors.New("peer unreachable")
	ErrUnknown         = errors.New("unknown error")
)

// ParseError maps a protocol HTTP status to the corresponding error,
// nil for 2xx success.
func ParseError(status int) error {
	switch status {
	case 200:
		return nil
	case 204:
		return ErrNothingAccepted
	case 400:
		return ErrInvalidBody
	case 401:
		return ErrInvalidPIN
	case 403:
		return ErrRejected
	case 404:
		return ErrNotFound
	case 409:
		return ErrBlockedByOthers
	case 429:
		return ErrTooManyReq
	default:
		return ErrUnknown
	}
}

// Status is the inverse of ParseError, used by the receiver handlers.
func Status(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrNothingAccepted):
		return 204
	case errors.Is(err, ErrInvalidBody):
		return 400
	case errors.Is(err, ErrInvalidPIN):
		return 401
	case errors.Is(err, ErrRejected),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrCancelled):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrBlockedByOthers):
		return 409
	case errors.Is(err, ErrTooManyReq):
		return 429
	default:
		return 500
	}
}
