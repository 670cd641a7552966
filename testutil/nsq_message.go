package testutil

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsqio/go-nsq"
)

var messageCounter int64

// MessageRecorder is an nsq.MessageDelegate that records what a
// worker did with a message instead of talking to nsqd.
type MessageRecorder struct {
	mutex        sync.Mutex
	finished     bool
	requeued     bool
	requeueDelay time.Duration
	touches      int
}

func (r *MessageRecorder) OnFinish(m *nsq.Message) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.finished = true
}

func (r *MessageRecorder) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.requeued = true
	r.requeueDelay = delay
}

func (r *MessageRecorder) OnTouch(m *nsq.Message) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.touches++
}

func (r *MessageRecorder) Finished() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.finished
}

func (r *MessageRecorder) Requeued() (bool, time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.requeued, r.requeueDelay
}

// Responded returns true once the message has been finished or
// requeued.
func (r *MessageRecorder) Responded() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.finished || r.requeued
}

// NewTestMessage returns an NSQ message with body whose delegate is a
// MessageRecorder.
func NewTestMessage(body []byte) (*nsq.Message, *MessageRecorder) {
	var id nsq.MessageID
	copy(id[:], []byte("test"))
	n := atomic.AddInt64(&messageCounter, 1)
	for i := 0; i < 8; i++ {
		id[8+i] = byte(n >> (8 * i))
	}
	message := nsq.NewMessage(id, body)
	recorder := &MessageRecorder{}
	message.Delegate = recorder
	return message, recorder
}
