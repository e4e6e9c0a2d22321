package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := CleanPath("  ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("rejects shell characters", func(t *testing.T) {
		for _, c := range []string{";", "&", "|", "$", "`", "<", ">"} {
			_, err := CleanPath("/tmp/skills" + c + "yaml")
			assert.Error(t, err, "expected error for %q", c)
		}
	})

	t.Run("makes relative paths absolute", func(t *testing.T) {
		got, err := CleanPath("does-not-exist/../skills.yaml")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.Equal(t, "skills.yaml", filepath.Base(got))
	})

	t.Run("resolves symlinks", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "skills.yaml")
		require.NoError(t, os.WriteFile(target, []byte("[]"), 0o600))
		link := filepath.Join(dir, "link.yaml")
		require.NoError(t, os.Symlink(target, link))

		got, err := CleanPath(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(target)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- skill: go\n"), 0o600))
	data, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "- skill: go\n", string(data))

	_, err = ReadConfigFile(dir)
	assert.Error(t, err, "directories are rejected")

	_, err = ReadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", MaxConfigFileSize+1)), 0o600))
	_, err = ReadConfigFile(big)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
