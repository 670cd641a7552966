package util_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, util.FileExists(dir))
	assert.False(t, util.FileExists(filepath.Join(dir, "NonExistentFile.xyz")))
}

func TestExpandTilde(t *testing.T) {
	expanded, err := util.ExpandTilde("~/tmp")
	assert.Nil(t, err)
	assert.True(t, len(expanded) > 6)
	assert.True(t, strings.HasSuffix(expanded, "tmp"))

	expanded, err = util.ExpandTilde("/nothing/to/expand")
	assert.Nil(t, err)
	assert.Equal(t, "/nothing/to/expand", expanded)
}

func TestLooksSafeToDelete(t *testing.T) {
	assert.True(t, util.LooksSafeToDelete("/mnt/pigeon/staging/some_dir", 15, 3))
	assert.False(t, util.LooksSafeToDelete("/usr/local", 12, 3))
	assert.False(t, util.LooksSafeToDelete("relative/path/to/thing", 5, 2))
}

func TestRemoveStagingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "osf-registrations-abc12-v1-run")
	require.Nil(t, os.MkdirAll(filepath.Join(dir, "bag", "data"), 0755))
	assert.Nil(t, util.RemoveStagingDir(dir))
	assert.False(t, util.FileExists(dir))

	assert.Nil(t, util.RemoveStagingDir(""))
	assert.NotNil(t, util.RemoveStagingDir("/"))
}
