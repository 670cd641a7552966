package workers

import (
	"encoding/json"
	"time"
)

// Settings contains settings for a pigeon worker.
type Settings struct {
	// ChannelBufferSize is the size of the buffer for the
	// ProcessChannel, SuccessChannel and ErrorChannel. It is
	// also the NSQ max_in_flight setting.
	ChannelBufferSize int

	// NSQChannel is the NSQ channel the worker should subscribe
	// to to receive messages.
	NSQChannel string

	// NSQTopic is the NSQ topic the worker should subscribe
	// to to receive messages.
	NSQTopic string

	// NumberOfWorkers is the number of go routines that run jobs.
	// Each archive job already fans out its own network calls,
	// so one is usually plenty.
	NumberOfWorkers int

	// Operation is the name of the job this worker runs, as
	// recorded in Redis.
	Operation string

	// RequeueTimeout is how long NSQ should wait before
	// redelivering a message for a guid this worker is already
	// working on.
	RequeueTimeout time.Duration
}

func (settings *Settings) ToJSON() string {
	data, _ := json.Marshal(settings)
	return string(data)
}
