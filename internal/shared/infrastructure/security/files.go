// Package security guards file access driven by configuration values.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxConfigFileSize caps operator-supplied files such as the skill table.
const MaxConfigFileSize = 1 << 20

// ErrFileTooLarge is returned when a file exceeds the read limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Shell metacharacters never appear in legitimate config paths.
const forbiddenPathChars = ";&|$`<>\n\r\x00"

// CleanPath rejects suspicious input and returns an absolute path with
// symlinks resolved when the target exists.
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("file path cannot be empty")
	}
	if i := strings.IndexAny(path, forbiddenPathChars); i >= 0 {
		return "", fmt.Errorf("file path contains forbidden character %q", path[i])
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolved, nil
}

// ReadConfigFile reads a regular file of at most MaxConfigFileSize bytes.
func ReadConfigFile(path string) ([]byte, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304 - path is validated above
	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", clean)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("%s: %w", clean, ErrFileTooLarge)
	}
	return data, nil
}
