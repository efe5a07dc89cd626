package license

import (
	"regsys/internal/codec"
	"regsys/internal/fingerprint"
)

// enrollmentOffsets[i] = i mod 9 for i in [1, 126]; index 0 stays 0.
var enrollmentOffsets = func() [127]int {
	var t [127]int
	for i := 1; i < len(t); i++ {
		t[i] = i % 9
	}
	return t
}()

// DeriveEnrollmentCode returns the cleartext enrollment code of a fingerprint.
//
// Each of the first 24 bytes c becomes v = c + (c mod 9). v is kept when it is
// an ASCII digit or letter, otherwise it is shifted down by 10 when above 'z'
// and by 9 when below it. Bytes outside the lookup table get no offset.
// The transform must stay byte-for-byte identical to what issued licenses use.
func DeriveEnrollmentCode(fp string) string {
	n := len(fp)
	if n > fingerprint.Length {
		n = fingerprint.Length
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		c := int(fp[i])
		v := c
		if c < len(enrollmentOffsets) {
			v += enrollmentOffsets[c]
		}

		switch {
		case isAlphanumeric(v):
			out[i] = byte(v)
		case v > 'z':
			out[i] = byte(v - 10)
		default:
			out[i] = byte(v - 9)
		}
	}
	return string(out)
}

// EnrollmentCode returns the encrypted enrollment code as stored in payloads.
func EnrollmentCode(c codec.Codec, fp string) string {
	return c.Encrypt(DeriveEnrollmentCode(fp))
}

func isAlphanumeric(v int) bool {
	return (v >= '0' && v <= '9') || (v >= 'A' && v <= 'Z') || (v >= 'a' && v <= 'z')
}
