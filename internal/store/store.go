// Package store holds the persisted license payload of an installation.
//
// A Store is an opaque key/value slot: the license engine keys it by the local
// machine fingerprint and treats the value as bytes. At most one process is
// expected to touch a slot at a time; there is no locking between processes.
package store

import (
	"errors"
)

// ErrNotFound is returned by Read when the slot is empty.
var ErrNotFound = errors.New("license slot not found")

// Store is the persistence medium for license payloads.
type Store interface {
	Exists(key string) (bool, error)
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	// Location describes where key lives, for display only.
	Location(key string) string
}
