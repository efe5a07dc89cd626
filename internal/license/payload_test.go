package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	want := Payload{FingerprintEnc: "a", LastSeenEnc: "b", DeadlineEnc: "c", EnrollmentCode: "d"}

	tests := []struct {
		name   string
		raw    string
		fields int
	}{
		{"pipes", "a|b|c|d", 4},
		{"padded", "  a | b |c|d  ", 4},
		{"crlf lines", "a\r\nb\r\nc\r\nd\r\n", 4},
		{"mixed with empties", "|a||b\n\nc|\rd|", 4},
		{"three fields", "a|b|c", 3},
		{"five fields", "a|b|c|d|e", 5},
		{"whitespace only fields", "a| |b|c", 3},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.raw)
			if tt.fields == 4 {
				require.NoError(t, err)
				assert.Equal(t, want, got)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
			assert.Contains(t, err.Error(), "got")
		})
	}
}

func TestPayload_CompactRoundTrip(t *testing.T) {
	p := Payload{
		FingerprintEnc: "mzar/goxQ07EKDvXhUVqg7w3e16vRINZnfzYyMde6xM=",
		LastSeenEnc:    "agZF2AYE57jBsaCyxoo/ZQ==",
		DeadlineEnc:    "nh6y6r5QhnbRuMb+2IhJQw==",
		EnrollmentCode: "iMMMB73EzLlsWKcrRS5ebOjRMBGMUAEEjboFKbaY3Gk=",
	}

	parsed, err := ParsePayload(p.ToCompactString())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestPayload_FileFormat(t *testing.T) {
	p := Payload{FingerprintEnc: "fp", LastSeenEnc: "ls", DeadlineEnc: "dl", EnrollmentCode: "ec"}

	data, err := marshalFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{
  "MachineIdEncrypted": "fp",
  "LastDateEncrypted": "ls",
  "DeadlineEncrypted": "dl",
  "EnrollCode": "ec"
}`, string(data))

	back, err := unmarshalFile(append([]byte{0xEF, 0xBB, 0xBF}, data...))
	require.NoError(t, err)
	assert.Equal(t, p, back)
	assert.True(t, back.Complete())
	assert.False(t, Payload{FingerprintEnc: "fp"}.Complete())

	_, err = unmarshalFile([]byte("not json"))
	assert.Error(t, err)
}
