package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckGUID(t *testing.T) {
	cmd := newArchiveCmd()
	assert.Nil(t, checkGUID(cmd, []string{"abc12"}))
	assert.NotNil(t, checkGUID(cmd, []string{}))
	assert.NotNil(t, checkGUID(cmd, []string{"abc12", "def34"}))
	assert.NotNil(t, checkGUID(cmd, []string{"../x"}))
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"archive", "status", "sync-metadata"}, names)
}

func TestReadPatch(t *testing.T) {
	patch, err := readPatch(strings.NewReader(`{"title": "New"}`), "")
	require.Nil(t, err)
	assert.Equal(t, service.MetadataRecord{"title": "New"}, patch)

	file := filepath.Join(t.TempDir(), "patch.json")
	require.Nil(t, os.WriteFile(file, []byte(`{"withdrawal_justification": "spam"}`), 0644))
	patch, err = readPatch(strings.NewReader("ignored"), file)
	require.Nil(t, err)
	assert.Equal(t, "spam", patch.String("withdrawal_justification"))

	_, err = readPatch(strings.NewReader(`not json`), "")
	assert.NotNil(t, err)
}

func TestPrintResults(t *testing.T) {
	archived := service.NewJobResult("abc12", "archive")
	archived.Attempt = 2
	archived.Start()
	archived.ArchiveURL = "https://archive.org/details/osf-registrations-abc12-v1"
	archived.Finish()
	synced := service.NewJobResult("abc12", "metadata")
	synced.Attempt = 1
	synced.Start()
	synced.AddError(service.NewProcessingError("abc12", "metadata", "cannot locate archive item", true))
	synced.Finish()

	out := &bytes.Buffer{}
	require.Nil(t, printResults(out, map[string]*service.JobResult{"archive": archived, "metadata": synced}))
	expected := "archive: succeeded (attempt 2)\n" +
		"  https://archive.org/details/osf-registrations-abc12-v1\n" +
		"metadata: failed (attempt 1)\n" +
		"  error: cannot locate archive item\n"
	assert.Equal(t, expected, out.String())
}
