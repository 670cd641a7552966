package workers

import (
	"sync"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/nsqio/go-nsq"
)

// Task encapsulates everything that a worker will need to
// pass from one channel to the next during procesing.
type Task struct {

	// GUID is the registration this task works on.
	GUID string

	// Metadata is the patch to apply, for metadata sync tasks.
	Metadata service.MetadataRecord

	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	// JobResult describes the result of this worker's work.
	JobResult *service.JobResult

	// Item is the archive item, once the job has produced one.
	Item *service.ArchiveItem

	// Keys lists the metadata keys a sync task wrote.
	Keys []string

	nsqStopChannel chan bool
	stopOnce       sync.Once

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
}

// NSQStart creates a timer that touches the NSQ message every two
// minutes while the task is in process. An archive job with a large
// file download can easily outlast NSQ's message timeout.
func (item *Task) NSQStart() {
	item.NSQMessage.DisableAutoResponse()
	interval := time.Duration(2) * time.Minute
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				item.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				return
			}
		}
	}()
	item.nsqStartCalled = true
	item.nsqStopChannel = stopChannel
}

func (item *Task) stopTicker() {
	item.stopOnce.Do(func() {
		if item.nsqStopChannel != nil {
			item.nsqStopChannel <- true
		}
		item.tickerStopped = true
	})
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (item *Task) NSQRequeue(delay time.Duration) {
	item.stopTicker()
	item.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (item *Task) NSQFinish() {
	item.stopTicker()
	item.NSQMessage.Finish()
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exist for testing purposes.
func (item *Task) StartCalled() bool {
	return item.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exist for testing purposes.
func (item *Task) TickerStopped() bool {
	return item.tickerStopped
}
