package workers_test

import (
	"testing"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/testutil"
	"github.com/CenterForOpenScience/pigeon-services/workers"
	"github.com/stretchr/testify/assert"
)

func TestTaskFinish(t *testing.T) {
	message, recorder := testutil.NewTestMessage([]byte("abc12"))
	task := &workers.Task{GUID: "abc12", NSQMessage: message}
	task.NSQStart()
	assert.True(t, task.StartCalled())
	assert.True(t, message.IsAutoResponseDisabled())
	task.NSQFinish()
	assert.True(t, task.TickerStopped())
	assert.True(t, recorder.Finished())

	// A second stop must not block.
	task.NSQFinish()
}

func TestTaskRequeue(t *testing.T) {
	message, recorder := testutil.NewTestMessage([]byte("abc12"))
	task := &workers.Task{GUID: "abc12", NSQMessage: message}
	task.NSQStart()
	task.NSQRequeue(30 * time.Second)
	assert.True(t, task.TickerStopped())
	requeued, delay := recorder.Requeued()
	assert.True(t, requeued)
	assert.Equal(t, 30*time.Second, delay)
}
