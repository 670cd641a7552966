package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/nsqio/go-nsq"
)

// Archiver runs archive and metadata sync jobs. archive.Archiver
// implements it.
type Archiver interface {
	Archive(ctx context.Context, guid string) (*service.ArchiveItem, string, error)
	SyncMetadata(ctx context.Context, guid string, patch service.MetadataRecord) (*service.ArchiveItem, []string, error)
}

// Notifier tells the OSF where a registration was archived.
// network.RegistryClient implements it.
type Notifier interface {
	NotifyArchived(ctx context.Context, guid, archiveURL string) error
}

// ArchiveWorker consumes the archive topic. Each message body is a
// registration guid.
type ArchiveWorker struct {
	*Base
	Archiver Archiver
	Notifier Notifier
}

// NewArchiveWorker creates a new ArchiveWorker. Call Start and then
// RegisterAsNsqConsumer to begin work.
func NewArchiveWorker(_context *services.Context, bufSize, numWorkers int) *ArchiveWorker {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		NSQChannel:        constants.TopicFor(constants.OpArchive) + constants.ChannelSuffix,
		NSQTopic:          constants.TopicFor(constants.OpArchive),
		NumberOfWorkers:   numWorkers,
		Operation:         constants.OpArchive,
		RequeueTimeout:    (1 * time.Minute),
	}
	worker := &ArchiveWorker{
		Base:     NewBase(_context, settings),
		Archiver: _context.Archiver(),
		Notifier: _context.RegistryClient,
	}

	// These are not defined in Base. Failing to set them will
	// result in nil pointers and crashes.
	worker.Base.GetTask = worker.GetTask
	worker.Base.RunTask = worker.RunTask
	return worker
}

// GetTask reads the guid from the message body.
func (w *ArchiveWorker) GetTask(message *nsq.Message) (*Task, error) {
	guid := strings.TrimSpace(string(message.Body))
	if !util.LooksLikeGUID(guid) {
		return nil, fmt.Errorf("message body %q is not a guid", guid)
	}
	return &Task{GUID: guid, NSQMessage: message}, nil
}

// RunTask archives the registration, then tells the OSF where it is.
func (w *ArchiveWorker) RunTask(ctx context.Context, task *Task) error {
	item, _, err := w.Archiver.Archive(ctx, task.GUID)
	if err != nil {
		return err
	}
	task.Item = item
	if err = w.Notifier.NotifyArchived(ctx, task.GUID, item.DetailsURL); err != nil {
		return fmt.Errorf("archived %s at %s but could not notify the OSF: %w", task.GUID, item.DetailsURL, err)
	}
	return nil
}
