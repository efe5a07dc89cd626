package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Directory names under the per-user data directory.
const (
	appDirName     = "RegisterSystem"
	licenseDirName = "RegisterFile"
)

// Replaced in tests.
var (
	goos          = runtime.GOOS
	userConfigDir = os.UserConfigDir
	localAppData  = func() string { return os.Getenv("LOCALAPPDATA") }
)

// DefaultStorageDir returns <base>/RegisterSystem/RegisterFile. The base is
// %LocalAppData% on Windows and the user config dir elsewhere, or when
// LOCALAPPDATA is unset.
//
// Fingerprints are derived differently from older Windows installs, so a
// payload found here from such an install reads as unregistered.
func DefaultStorageDir() (string, error) {
	base := ""
	if goos == "windows" {
		base = localAppData()
	}
	if base == "" {
		dir, err := userConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		base = dir
	}
	return filepath.Join(base, appDirName, licenseDirName), nil
}
