package service_test

import (
	"os"
	"testing"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobResult(t *testing.T) {
	result := service.NewJobResult("abc12", "archive")
	assert.Equal(t, "abc12", result.GUID)
	assert.Equal(t, "archive", result.Operation)
	assert.Equal(t, os.Getpid(), result.Pid)
	assert.NotEmpty(t, result.Host)
	assert.Equal(t, "queued", result.Status())
}

func TestJobResultLifecycle(t *testing.T) {
	result := service.NewJobResult("abc12", "archive")
	assert.False(t, result.Started())
	assert.Equal(t, time.Duration(0), result.RunTime())

	result.Start()
	assert.True(t, result.Started())
	assert.Equal(t, "running", result.Status())
	assert.False(t, result.Succeeded())

	result.Finish()
	assert.True(t, result.Finished())
	assert.True(t, result.Succeeded())
	assert.Equal(t, "succeeded", result.Status())
	assert.True(t, result.RunTime() >= 0)

	result.AddError(service.NewProcessingError("abc12", "archive", "bad bag", true))
	assert.False(t, result.Succeeded())
	assert.Equal(t, "failed", result.Status())

	result.Reset()
	assert.False(t, result.Started())
	assert.False(t, result.HasErrors())
	assert.Equal(t, "abc12", result.GUID)
}

func TestJobResultErrorCap(t *testing.T) {
	result := service.NewJobResult("abc12", "metadata")
	for i := 0; i < 40; i++ {
		result.AddError(service.NewProcessingError("abc12", "metadata", "flaky", false))
	}
	assert.Len(t, result.Errors, 30)
	assert.False(t, result.HasFatalErrors())

	result.AddError(service.NewProcessingError("abc12", "metadata", "one", true))
	result.AddError(service.NewProcessingError("abc12", "metadata", "two", true))
	assert.Len(t, result.Errors, 32)
	assert.True(t, result.HasFatalErrors())
	assert.Equal(t, "one | two", result.FatalErrorMessage())

	result.ClearErrors()
	assert.False(t, result.HasErrors())
}

func TestJobResultJSON(t *testing.T) {
	result := service.NewJobResult("abc12", "archive")
	result.Attempt = 2
	result.ArchiveURL = "https://archive.org/details/osf-registrations-abc12-v1"
	result.Start()
	result.AddError(service.NewProcessingError("abc12", "archive", "oops", false))
	result.Finish()

	data, err := result.ToJSON()
	require.Nil(t, err)

	restored, err := service.JobResultFromJSON(data)
	require.Nil(t, err)
	assert.Equal(t, result.GUID, restored.GUID)
	assert.Equal(t, 2, restored.Attempt)
	assert.Equal(t, result.ArchiveURL, restored.ArchiveURL)
	assert.Len(t, restored.Errors, 1)
	assert.True(t, result.StartedAt.Equal(restored.StartedAt))

	// The restored result has a working mutex.
	restored.AddError(service.NewProcessingError("abc12", "archive", "again", true))
	assert.True(t, restored.HasFatalErrors())

	_, err = service.JobResultFromJSON("{not json")
	assert.NotNil(t, err)
}
