package auth

import "errors"

// ErrUnauthenticated is the parent of every token rejection. Callers that do
// not care about the precise reason can match on it alone.
var ErrUnauthenticated = errors.New("unauthenticated")

// Token rejection reasons. Each wraps ErrUnauthenticated.
var (
	ErrBadSignature = reason("bad signature")
	ErrExpired      = reason("token expired")
	ErrWrongIssuer  = reason("wrong issuer")
	ErrMalformed    = reason("malformed token")
)

var (
	// ErrForbidden is returned by Authorize when the caller's role is too low.
	ErrForbidden = errors.New("forbidden")

	ErrUnknownRole    = errors.New("unknown role")
	ErrPasswordPolicy = errors.New("password does not meet policy")
	ErrWeakSecret     = errors.New("signing secret must be at least 32 bytes")
)

type rejection struct {
	msg string
}

func reason(msg string) error { return &rejection{msg: msg} }

func (e *rejection) Error() string { return e.msg }

func (e *rejection) Unwrap() error { return ErrUnauthenticated }

// RejectionReason returns a stable label for a token rejection error, for
// logs and metrics. It returns "valid" for nil.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrWrongIssuer):
		return "wrong_issuer"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
