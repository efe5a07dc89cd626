package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors produced with an independent DES-CBC implementation using the
// compiled-in key and IV. They pin wire compatibility with issued licenses.
func TestLegacyCodec_KnownVectors(t *testing.T) {
	c := NewLegacy()

	tests := []struct {
		plain  string
		cipher string
	}{
		{"", "d7LVKaf74hI="},
		{"a", "zdBVsOTs5z4="},
		{"12345678", "rFcxDf8XvcOOcF/plUqEjg=="},
		{"2026/10/17", "agZF2AYE57jBsaCyxoo/ZQ=="},
		{"2122/12/31", "nh6y6r5QhnbRuMb+2IhJQw=="},
		{"ABCDEFGHIJKLMNOPQRSTUVWX", "mzar/goxQ07EKDvXhUVqg7w3e16vRINZnfzYyMde6xM="},
		{"CEGIKMOHJLNPRTVXQSUWYRTV", "iMMMB73EzLlsWKcrRS5ebOjRMBGMUAEEjboFKbaY3Gk="},
		{"héllo", "t6WMEiopR58="},
	}

	for _, tt := range tests {
		t.Run(tt.plain, func(t *testing.T) {
			assert.Equal(t, tt.cipher, c.Encrypt(tt.plain))

			plain, err := c.Decrypt(tt.cipher)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, plain)
		})
	}
}

func TestLegacyCodec_Deterministic(t *testing.T) {
	c := NewLegacy()
	first := c.Encrypt("2026/11/16")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Encrypt("2026/11/16"))
	}
	assert.Equal(t, first, NewLegacy().Encrypt("2026/11/16"), "separate instances share key and iv")
}

func TestLegacyCodec_RoundTrip(t *testing.T) {
	c := NewLegacy()
	inputs := []string{
		"",
		"x",
		"1234567",
		"12345678",
		"123456789",
		strings.Repeat("Z", 64),
		"BFEBFBFF000906A3DISK1234",
		"pipes|and\nnewlines",
		"日本語のテキスト",
	}

	for _, in := range inputs {
		out, err := c.Decrypt(c.Encrypt(in))
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, in, out)
	}
}

func TestLegacyCodec_DecodeErrors(t *testing.T) {
	c := NewLegacy()

	tests := []struct {
		name   string
		cipher string
	}{
		{"empty", ""},
		{"not base64", "not*base64!"},
		{"truncated block", "d7LVKaf7"},
		{"plaintext passed through", "2026/10/17"},
		{"bad padding", "AAAAAAAAAAA="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.cipher)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte("abc"), 8)
	assert.Equal(t, []byte{'a', 'b', 'c', 5, 5, 5, 5, 5}, padded)

	full := pkcs7Pad([]byte("12345678"), 8)
	assert.Len(t, full, 16)

	out, err := pkcs7Unpad(padded, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	_, err = pkcs7Unpad([]byte{1, 2, 3, 4, 5, 6, 7, 3}, 8)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = pkcs7Unpad([]byte{1, 2, 3, 4, 5, 6, 7, 0}, 8)
	assert.ErrorIs(t, err, ErrDecode)
}
