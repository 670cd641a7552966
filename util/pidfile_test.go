package util_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pidFilePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "pigeon-test-pid-file.txt")
}

func TestIsRunningInOtherProcess(t *testing.T) {
	tempFile := pidFilePath(t)

	// False, because there is no pid file
	assert.False(t, util.IsRunningInOtherProcess(tempFile))

	// False, because pid 0 is never a live worker
	os.WriteFile(tempFile, []byte("0"), 0664)
	assert.False(t, util.IsRunningInOtherProcess(tempFile))

	// False, because pid in file matches our pid
	util.WritePidFile(tempFile)
	assert.False(t, util.IsRunningInOtherProcess(tempFile))
}

func TestReadPidFile(t *testing.T) {
	tempFile := pidFilePath(t)
	os.WriteFile(tempFile, []byte("9499\n"), 0664)
	assert.Equal(t, 9499, util.ReadPidFile(tempFile))
	assert.Equal(t, 0, util.ReadPidFile(tempFile+".missing"))
}

func TestClaimPidFile(t *testing.T) {
	tempFile := pidFilePath(t)
	require.Nil(t, util.ClaimPidFile(tempFile))
	assert.Equal(t, os.Getpid(), util.ReadPidFile(tempFile))

	// Claiming again from the same process is fine.
	assert.Nil(t, util.ClaimPidFile(tempFile))
}

func TestDeletePidFile(t *testing.T) {
	tempFile := pidFilePath(t)
	util.WritePidFile(tempFile)
	assert.True(t, util.FileExists(tempFile))
	assert.Nil(t, util.DeletePidFile(tempFile))
	assert.False(t, util.FileExists(tempFile))
	assert.NotNil(t, util.DeletePidFile("/x"))
}

func TestAgeOfPidFile(t *testing.T) {
	tempFile := pidFilePath(t)
	util.WritePidFile(tempFile)
	time.Sleep(400 * time.Millisecond)
	expected, _ := time.ParseDuration("400ms")
	actual, err := util.AgeOfPidFile(tempFile)
	require.Nil(t, err)
	// Duration is in nanoseconds
	halfASecond := float64(500000000)
	assert.InDelta(t, expected, actual, halfASecond)
}

func TestProcessIsRunning(t *testing.T) {
	assert.False(t, util.ProcessIsRunning(-999))
	assert.True(t, util.ProcessIsRunning(os.Getpid()))
}
