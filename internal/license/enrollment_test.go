package license

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"regsys/internal/codec"
)

func TestDeriveEnrollmentCode_KnownFingerprints(t *testing.T) {
	tests := []struct {
		fingerprint string
		want        string
	}{
		{"ABCDEFGHIJKLMNOPQRSTUVWX", "CEGIKMOHJLNPRTVXQSUWYRTV"},
		{"000000000000000000000000", "333333333333333333333333"},
		{"BFEBFBFF000906A3DISK1234", "EMKEMEMM333336C9IJUN5792"},
		{"abcdefghijklmnopqrstuvwx", "hjcegikmoqslnprtvxzruwyq"},
		{"DISK00000000CPU000000000", "IJUN33333333GXY333333333"},
		{"1A2B3C4D5E6F7G8H9I0Jxyz~", "5C7E9G2I4K6M8O1H3J3Lqsut"},
	}

	for _, tt := range tests {
		t.Run(tt.fingerprint, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveEnrollmentCode(tt.fingerprint))
		})
	}
}

func TestDeriveEnrollmentCode_Deterministic(t *testing.T) {
	fp := "BFEBFBFF000906A3DISK1234"
	first := DeriveEnrollmentCode(fp)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveEnrollmentCode(fp))
	}
}

func TestDeriveEnrollmentCode_Lengths(t *testing.T) {
	assert.Len(t, DeriveEnrollmentCode("ABCDEFGHIJKLMNOPQRSTUVWXYZ"), 24, "only the first 24 characters count")
	assert.Equal(t,
		DeriveEnrollmentCode("ABCDEFGHIJKLMNOPQRSTUVWX"),
		DeriveEnrollmentCode("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	assert.Equal(t, "CEG", DeriveEnrollmentCode("ABC"))
	assert.Empty(t, DeriveEnrollmentCode(""))
}

func TestEnrollmentCode_Encrypted(t *testing.T) {
	c := codec.NewLegacy()
	assert.Equal(t, "iMMMB73EzLlsWKcrRS5ebOjRMBGMUAEEjboFKbaY3Gk=", EnrollmentCode(c, "ABCDEFGHIJKLMNOPQRSTUVWX"))
	assert.Equal(t, "Vf5sLhY7T0Xmw8IyYoKATM69wovjsK3ybU7mI/hXwSQ=", EnrollmentCode(c, "BFEBFBFF000906A3DISK1234"))
}
