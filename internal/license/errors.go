package license

import (
	"errors"
	"fmt"
)

// ErrorKind classifies activation failures. The values are stable codes.
type ErrorKind string

const (
	KindMalformedPayload        ErrorKind = "MALFORMED_PAYLOAD"
	KindInvalidFingerprintField ErrorKind = "INVALID_FINGERPRINT_FIELD"
	KindFingerprintMismatch     ErrorKind = "FINGERPRINT_MISMATCH"
	KindEnrollmentCodeInvalid   ErrorKind = "ENROLLMENT_CODE_INVALID"
	KindInvalidDeadlineField    ErrorKind = "INVALID_DEADLINE_FIELD"
	KindAlreadyExpired          ErrorKind = "ALREADY_EXPIRED"
	KindStorage                 ErrorKind = "STORAGE_ERROR"
)

// Sentinels for errors.Is, one per kind.
var (
	ErrMalformedPayload        = errors.New("malformed license payload")
	ErrInvalidFingerprintField = errors.New("invalid fingerprint field")
	ErrFingerprintMismatch     = errors.New("fingerprint mismatch")
	ErrEnrollmentCodeInvalid   = errors.New("enrollment code invalid")
	ErrInvalidDeadlineField    = errors.New("invalid deadline field")
	ErrAlreadyExpired          = errors.New("license already expired")
	ErrStorage                 = errors.New("license storage error")
)

// ErrInvalidMachineCode is returned when a vendor-supplied target fingerprint
// does not have the expected length.
var ErrInvalidMachineCode = errors.New("machine code must be 24 characters")

var kindSentinels = map[ErrorKind]error{
	KindMalformedPayload:        ErrMalformedPayload,
	KindInvalidFingerprintField: ErrInvalidFingerprintField,
	KindFingerprintMismatch:     ErrFingerprintMismatch,
	KindEnrollmentCodeInvalid:   ErrEnrollmentCodeInvalid,
	KindInvalidDeadlineField:    ErrInvalidDeadlineField,
	KindAlreadyExpired:          ErrAlreadyExpired,
	KindStorage:                 ErrStorage,
}

// ActivationError is returned by Engine.Activate. Reason is meant for people;
// Kind is meant for code.
type ActivationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func newActivationError(kind ErrorKind, reason string, cause error) *ActivationError {
	return &ActivationError{Kind: kind, Reason: reason, Err: cause}
}

func (e *ActivationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ActivationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of an activation error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var ae *ActivationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
