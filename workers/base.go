package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/nsqio/go-nsq"
)

// SigTermState contains info about whether the current worker
// received SIGTERM (or SIGINT), and if so, what action it took
// in response to the signal.
type SigTermState struct {
	// Received indicates whether this worker received SIGTERM
	// or SIGINT.
	Received bool
	// Completed indicates whether this worker completed all of
	// its SIGTERM cleanup tasks.
	Completed bool
	// ItemsInProcess is the number of guids this worker was
	// working on when SIGTERM was received.
	ItemsInProcess int
}

// Base contains the fundamental structures common to all workers.
type Base struct {

	// Context contains the config, the logger and the clients for
	// the OSF API, DataCite, the archive, NSQ and Redis.
	Context *services.Context

	// ItemsInProcess keeps track of the guids the worker is
	// currently processing. NSQ does not dedupe messages, and two
	// jobs for the same registration must never run at once.
	ItemsInProcess *service.RingList

	// ProcessChannel is where the work actually happens.
	ProcessChannel chan *Task

	// SuccessChannel processes tasks that finished with no errors.
	SuccessChannel chan *Task

	// ErrorChannel processes tasks that failed.
	ErrorChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	// Settings describes the topic, channel and pool size.
	Settings *Settings

	// GetTask turns an NSQ message into a Task. This is not
	// implemented in Base. Structs that embed Base MUST set it.
	GetTask func(*nsq.Message) (*Task, error)

	// RunTask does the actual work. This is not implemented in
	// Base. Structs that embed Base MUST set it.
	RunTask func(context.Context, *Task) error

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	sigTermState SigTermState
}

// drainTimeout bounds how long shutdown waits for canceled jobs to
// record their results and requeue their messages.
var drainTimeout = 30 * time.Second

// NewBase returns a Base with its channels created. Call Start to
// launch the goroutines.
func NewBase(_context *services.Context, settings *Settings) *Base {
	ctx, cancel := context.WithCancel(context.Background())
	if settings.NumberOfWorkers < 1 {
		settings.NumberOfWorkers = 1
	}
	return &Base{
		Context:        _context,
		Settings:       settings,
		ItemsInProcess: service.NewRingList(settings.ChannelBufferSize + settings.NumberOfWorkers),
		ProcessChannel: make(chan *Task, settings.ChannelBufferSize),
		SuccessChannel: make(chan *Task, settings.ChannelBufferSize),
		ErrorChannel:   make(chan *Task, settings.ChannelBufferSize),
		KillChannel:    make(chan os.Signal, 1),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Start spins up NumberOfWorkers processing goroutines plus the
// success and error handlers, and starts listening for SIGTERM.
func (b *Base) Start() {
	b.Context.Logger.Infof("%s worker starting with settings: %s", b.Settings.Operation, b.Settings.ToJSON())
	for i := 0; i < b.Settings.NumberOfWorkers; i++ {
		b.Context.Logger.Infof("Starting worker #%d", i+1)
		go b.ProcessItem()
	}
	go b.ProcessSuccessChannel()
	go b.ProcessErrorChannel()
	signal.Notify(b.KillChannel, syscall.SIGINT, syscall.SIGTERM)
	go b.waitForSignal()
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, your worker will start handling messages if any are
// available.
func (b *Base) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", b.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(b.Settings.NSQTopic, b.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	b.NSQConsumer = consumer
	b.NSQConsumer.AddHandler(b)
	if err = b.NSQConsumer.ConnectToNSQLookupd(b.Context.Config.NsqLookupd); err != nil {
		return err
	}
	b.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage turns the message into a Task and queues it for
// processing. A message for a guid this worker is already working on
// goes back to NSQ with a delay. A message we can't parse is logged
// and dropped, since no retry will fix it.
func (b *Base) HandleMessage(message *nsq.Message) error {
	task, err := b.GetTask(message)
	if err != nil {
		b.Context.Logger.Errorf("Dropping NSQ message %s: %v", string(message.ID[:]), err)
		return nil
	}
	if !b.ItemsInProcess.AddIfAbsent(task.GUID) {
		b.Context.Logger.Infof("Requeueing %s %s: this worker is already working on it",
			b.Settings.Operation, task.GUID)
		message.DisableAutoResponse()
		message.Requeue(b.Settings.RequeueTimeout)
		return nil
	}
	b.MarkAsStarted(task)
	b.ProcessChannel <- task
	return nil
}

// ProcessItem runs tasks from the ProcessChannel and routes each one
// to the SuccessChannel or the ErrorChannel.
func (b *Base) ProcessItem() {
	for task := range b.ProcessChannel {
		b.processItem(task)
	}
}

func (b *Base) processItem(task *Task) {
	b.Context.Logger.Infof("%s %s is in ProcessChannel", b.Settings.Operation, task.GUID)
	err := b.RunTask(b.ctx, task)
	if err != nil {
		isFatal := !errors.Is(err, context.Canceled)
		task.JobResult.AddError(b.Error(task.GUID, err, isFatal))
		b.ErrorChannel <- task
		return
	}
	b.SuccessChannel <- task
}

// ProcessSuccessChannel records successful tasks.
func (b *Base) ProcessSuccessChannel() {
	for task := range b.SuccessChannel {
		b.Context.Logger.Infof("%s %s succeeded", b.Settings.Operation, task.GUID)
		b.FinishItem(task)
		task.NSQFinish()
	}
}

// ProcessErrorChannel records failed tasks. Fatal failures are
// finished in NSQ, since running them again would fail the same way.
// Tasks interrupted by shutdown go back to NSQ.
func (b *Base) ProcessErrorChannel() {
	for task := range b.ErrorChannel {
		b.Context.Logger.Errorf("%s %s failed: %s", b.Settings.Operation, task.GUID, task.JobResult.Errors[0].Message)
		b.FinishItem(task)
		if task.JobResult.HasFatalErrors() {
			task.NSQFinish()
		} else {
			task.NSQRequeue(b.Settings.RequeueTimeout)
		}
	}
}

// Error creates a new ProcessingError.
func (b *Base) Error(guid string, err error, isFatal bool) *service.ProcessingError {
	return service.NewProcessingError(guid, b.Settings.Operation, err.Error(), isFatal)
}

// GetJobResult returns the JobResult for guid from Redis, or a new
// one if there isn't one.
func (b *Base) GetJobResult(guid string) *service.JobResult {
	result, err := b.Context.RedisClient.JobResultGet(guid, b.Settings.Operation)
	if err != nil {
		b.Context.Logger.Infof("No JobResult in Redis for %s %s. Creating a new one.", b.Settings.Operation, guid)
		result = service.NewJobResult(guid, b.Settings.Operation)
	}
	return result
}

// SaveJobResult saves a JobResult to Redis. It tries three times, in
// case Redis is busy.
func (b *Base) SaveJobResult(result *service.JobResult) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = b.Context.RedisClient.JobResultSave(result); err == nil {
			resultJSON, _ := result.ToJSON()
			b.Context.Logger.Infof("Saved result for %s %s: %s", result.Operation, result.GUID, resultJSON)
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	b.Context.Logger.Errorf("Error saving JobResult for %s %s: %v", result.Operation, result.GUID, err)
	return err
}

// MarkAsStarted records the start of a new attempt in Redis and
// tells NSQ we're working on the message.
func (b *Base) MarkAsStarted(task *Task) {
	b.Context.Logger.Infof("Starting %s %s", b.Settings.Operation, task.GUID)
	task.JobResult = b.GetJobResult(task.GUID)
	task.JobResult.Reset()
	task.JobResult.Attempt++
	task.JobResult.Start()
	task.JobResult.Host, _ = os.Hostname()
	task.JobResult.Pid = os.Getpid()
	b.SaveJobResult(task.JobResult)
	task.NSQStart()
}

// FinishItem saves the finished JobResult and removes the guid from
// the ItemsInProcess list.
func (b *Base) FinishItem(task *Task) {
	if task.Item != nil {
		task.JobResult.ArchiveURL = task.Item.DetailsURL
	}
	task.JobResult.Finish()
	b.SaveJobResult(task.JobResult)
	b.ItemsInProcess.Del(task.GUID)
}

func (b *Base) waitForSignal() {
	sig := <-b.KillChannel
	b.doSigTermCleanup(sig)
}

// doSigTermCleanup stops the NSQ consumer so nsqd hands our in-flight
// messages to other workers, then cancels the running jobs. Canceled
// jobs land in the ErrorChannel as non-fatal and are requeued.
func (b *Base) doSigTermCleanup(sig os.Signal) {
	if sig != syscall.SIGINT && sig != syscall.SIGTERM {
		return
	}
	b.sigTermState.Received = true
	b.sigTermState.ItemsInProcess = len(b.ItemsInProcess.Items())
	b.Context.Logger.Warning("Worker received SIGTERM. Starting graceful shutdown.")
	if b.NSQConsumer != nil {
		b.Context.Logger.Warning("SIGTERM step 1: Disconnect from NSQ")
		b.NSQConsumer.ChangeMaxInFlight(0)
		b.NSQConsumer.Stop()
	} else {
		b.Context.Logger.Warning("SIGTERM step 1: No need to stop NSQ consumer because there isn't one.")
	}
	b.Context.Logger.Warning(fmt.Sprintf("SIGTERM step 2: Cancel %d running jobs", b.sigTermState.ItemsInProcess))
	b.cancel()
	deadline := time.Now().Add(drainTimeout)
	for len(b.ItemsInProcess.Items()) > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	b.sigTermState.Completed = true
	b.Context.Logger.Warning("SIGTERM: Graceful shutdown steps complete.")
	close(b.done)
}

// Done is closed when the worker has finished shutting down.
func (b *Base) Done() <-chan struct{} {
	return b.done
}

// GetSigTermState returns this worker's SigTermState object.
func (b *Base) GetSigTermState() SigTermState {
	return b.sigTermState
}
