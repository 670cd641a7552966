package util

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// FileExists returns true if the file or directory at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandTilde expands a leading tilde in filePath to the user's
// home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, filePath[1:]), nil
}

// LooksSafeToDelete returns true if dir is an absolute path with at
// least minLength characters and at least minSeparators path separators.
// This keeps a bad setting from deleting "/" or "/usr".
func LooksSafeToDelete(dir string, minLength, minSeparators int) bool {
	separator := string(os.PathSeparator)
	separatorCount := strings.Count(dir, separator)
	return filepath.IsAbs(dir) && len(dir) >= minLength && separatorCount >= minSeparators
}

// RemoveStagingDir deletes a per-run staging directory if it looks
// safe to do so.
func RemoveStagingDir(dir string) error {
	if dir == "" {
		return nil
	}
	if !LooksSafeToDelete(dir, 8, 2) {
		return fmt.Errorf("Staging dir %s does not look safe to delete", dir)
	}
	return os.RemoveAll(dir)
}
