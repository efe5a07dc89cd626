package license

import (
	"context"
	"strings"
	"time"

	"regsys/internal/codec"
	"regsys/internal/fingerprint"
)

// LocalFingerprint supplies the fingerprint of the machine the code runs on.
type LocalFingerprint interface {
	Fingerprint(ctx context.Context) string
}

// Issuer produces license payloads. It holds no secret beyond the codec; anyone
// with the codec can issue.
type Issuer struct {
	codec codec.Codec
	local LocalFingerprint
	clock Clock
}

// NewIssuer creates an issuer. A nil clock means time.Now.
func NewIssuer(c codec.Codec, local LocalFingerprint, clock Clock) *Issuer {
	if clock == nil {
		clock = time.Now
	}
	return &Issuer{codec: c, local: local, clock: clock}
}

// Issue builds a payload for target, or for the local machine when target is
// blank. A zero issueDate means today. The deadline is not checked against
// the issue date.
func (i *Issuer) Issue(ctx context.Context, target string, deadline, issueDate time.Time) Payload {
	fp := strings.TrimSpace(target)
	if fp == "" {
		fp = i.local.Fingerprint(ctx)
	}
	if issueDate.IsZero() {
		issueDate = i.clock()
	}

	return Payload{
		FingerprintEnc: i.codec.Encrypt(fp),
		LastSeenEnc:    i.codec.Encrypt(FormatDate(issueDate)),
		DeadlineEnc:    i.codec.Encrypt(FormatDate(deadline)),
		EnrollmentCode: EnrollmentCode(i.codec, fp),
	}
}

// ValidateFingerprint checks a machine code pasted by a vendor. It returns the
// trimmed fingerprint.
func ValidateFingerprint(s string) (string, error) {
	fp := strings.TrimSpace(s)
	if len(fp) != fingerprint.Length {
		return "", ErrInvalidMachineCode
	}
	return fp, nil
}
