package workers

import (
	"context"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/network"
	"github.com/CenterForOpenScience/pigeon-services/services"
	"github.com/nsqio/go-nsq"
)

// MetadataWorker consumes the metadata topic. Each message body is a
// network.MetadataJob.
type MetadataWorker struct {
	*Base
	Archiver Archiver
}

func NewMetadataWorker(_context *services.Context, bufSize, numWorkers int) *MetadataWorker {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		NSQChannel:        constants.TopicFor(constants.OpSyncMetadata) + constants.ChannelSuffix,
		NSQTopic:          constants.TopicFor(constants.OpSyncMetadata),
		NumberOfWorkers:   numWorkers,
		Operation:         constants.OpSyncMetadata,
		RequeueTimeout:    (10 * time.Second),
	}
	worker := &MetadataWorker{
		Base:     NewBase(_context, settings),
		Archiver: _context.Archiver(),
	}
	worker.Base.GetTask = worker.GetTask
	worker.Base.RunTask = worker.RunTask
	return worker
}

func (w *MetadataWorker) GetTask(message *nsq.Message) (*Task, error) {
	job, err := network.ParseMetadataJob(message.Body)
	if err != nil {
		return nil, err
	}
	return &Task{GUID: job.GUID, Metadata: job.Metadata, NSQMessage: message}, nil
}

// RunTask pushes the metadata patch to the archive item.
func (w *MetadataWorker) RunTask(ctx context.Context, task *Task) error {
	item, keys, err := w.Archiver.SyncMetadata(ctx, task.GUID, task.Metadata)
	if err != nil {
		return err
	}
	task.Item = item
	task.Keys = keys
	w.Context.Logger.Infof("Synced %s for %s", strings.Join(keys, ", "), task.GUID)
	return nil
}
