package codec

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecode is returned when a ciphertext is not valid base64, is not a whole
// number of cipher blocks, or does not carry valid padding once decrypted.
var ErrDecode = errors.New("codec: cannot decode ciphertext")

// Codec encrypts and decrypts single payload fields.
type Codec interface {
	// Encrypt never fails; the result is transport safe.
	Encrypt(plaintext string) string
	// Decrypt returns an error wrapping ErrDecode when the input is not
	// trustworthy.
	Decrypt(ciphertext string) (string, error)
}

// Compiled-in parameters of the legacy scheme. Changing either value breaks
// every license issued so far.
var (
	legacyKey = []byte("A1B2C3D4")
	legacyIV  = []byte{0x12, 0x34, 0x56, 0x78, 0x90, 0xAB, 0xCD, 0xEF}
)

// LegacyCodec implements the deterministic DES-CBC scheme described in the
// package documentation. It is safe for concurrent use.
type LegacyCodec struct {
	block cipher.Block
}

var _ Codec = (*LegacyCodec)(nil)

// NewLegacy returns the codec used by every payload issued so far.
func NewLegacy() *LegacyCodec {
	block, err := des.NewCipher(legacyKey)
	if err != nil {
		// legacyKey has a fixed length, so this only fires if it is edited.
		panic(fmt.Sprintf("codec: legacy key rejected: %v", err))
	}
	return &LegacyCodec{block: block}
}

// Encrypt pads, encrypts and base64 encodes plaintext.
func (c *LegacyCodec) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), c.block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, legacyIV).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt.
func (c *LegacyCodec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	size := c.block.BlockSize()
	if len(raw) == 0 || len(raw)%size != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of %d", ErrDecode, len(raw), size)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, legacyIV).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, size)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecode)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecode)
		}
	}
	return data[:len(data)-n], nil
}
