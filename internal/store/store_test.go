package store

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_ReadWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "RegisterSystem", "RegisterFile")
	s := NewFileStore(dir)
	assert.Equal(t, dir, s.Dir())
	key := "ABCDEFGHIJKLMNOPQRSTUVWX"

	exists, err := s.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Read(key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(key, []byte(`{"first":true}`)))
	require.NoError(t, s.Write(key, []byte(`{"second":true}`)))

	exists, err = s.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := s.Read(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"second":true}`, string(data))

	assert.Equal(t, filepath.Join(dir, key+".json"), s.Location(key))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(s.Location(key))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestFileStore_WriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := NewFileStore(filepath.Join(blocker, "sub"))
	err := s.Write("KEY", []byte("data"))
	require.Error(t, err)
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"ABCDEFGHIJKLMNOPQRSTUVWX": "ABCDEFGHIJKLMNOPQRSTUVWX.json",
		"../etc/passwd":            ".._etc_passwd.json",
		`C:\disk`:                  "C__disk.json",
		"":                         "_.json",
		"..":                       "_.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, fileName(in), in)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Read("k")
	assert.ErrorIs(t, err, ErrNotFound)

	buf := []byte("value")
	require.NoError(t, s.Write("k", buf))
	buf[0] = 'X'

	got, err := s.Read("k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got), "store keeps its own copy")

	boom := errors.New("disk full")
	s.FailWrites(boom)
	assert.ErrorIs(t, s.Write("k", []byte("other")), boom)
	s.FailWrites(nil)

	assert.Equal(t, 1, s.Writes())
	assert.Equal(t, "memory://k", s.Location("k"))
}
