// Package codec provides the symmetric transform applied to every field of a
// license payload before it leaves the process.
//
// # Legacy scheme
//
// LegacyCodec is DES in CBC mode with a compiled-in 8 byte key, a compiled-in
// IV and PKCS#7 padding; ciphertext is carried as standard base64. The same
// plaintext always produces the same ciphertext, so the scheme has no semantic
// security and a fixed key shipped in every binary. This is a known-weak scheme
// kept only because previously issued license payloads and license files must
// keep decoding byte-for-byte.
//
// Do not strengthen LegacyCodec in place. A stronger scheme belongs in a new
// Codec implementation selected by a version marker in the payload, so callers
// that only depend on the Codec interface stay untouched.
package codec
