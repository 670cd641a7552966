package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/bagit"
	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/google/uuid"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

// Archiver runs the whole pipeline for one registration: fetch,
// package, verify, upload.
type Archiver struct {
	Assembler *Assembler
	Config    *common.Config
	Formatter *MetadataFormatter
	Logger    *logging.Logger
	Registry  RegistryAPI
	Syncer    *MetadataSyncer
	Uploader  *Uploader
}

func NewArchiver(config *common.Config, registryAPI RegistryAPI, dataCite PIDResolver, backend ArchiveBackend, logger *logging.Logger) *Archiver {
	return &Archiver{
		Assembler: NewAssembler(config, registryAPI, dataCite, logger),
		Config:    config,
		Formatter: NewMetadataFormatter(config, registryAPI),
		Logger:    logger,
		Registry:  registryAPI,
		Syncer:    NewMetadataSyncer(config, backend, logger),
		Uploader:  NewUploader(config, backend, logger),
	}
}

// Archive packages registration guid and uploads it. It returns the
// archive item and the guid. A withdrawn registration fails with
// RegistrationWithdrawnError before anything else is fetched or
// written. The staging directory is removed whether or not the run
// succeeds.
func (a *Archiver) Archive(ctx context.Context, guid string) (*service.ArchiveItem, string, error) {
	started := time.Now()
	doc, err := a.Registry.Registration(ctx, guid)
	if err != nil {
		return nil, guid, err
	}
	if doc.Data.Attributes.Withdrawn {
		return nil, guid, &common.RegistrationWithdrawnError{GUID: guid}
	}

	itemID := a.Config.ItemIdentifier(guid)
	runID := uuid.New().String()
	stagingDir := filepath.Join(a.Config.StagingDir, fmt.Sprintf("%s-%s", itemID, runID))
	defer func() {
		if err := util.RemoveStagingDir(stagingDir); err != nil {
			a.Logger.Errorf("Could not remove staging dir %s: %s", stagingDir, err.Error())
		}
	}()

	bag, err := bagit.NewBag(stagingDir)
	if err != nil {
		return nil, guid, err
	}
	record, err := a.assemble(ctx, bag, doc)
	if err != nil {
		return nil, guid, err
	}

	tags := []*bagit.Tag{
		bagit.NewTag("bag-info.txt", "Source-Organization", a.Config.Publisher),
		bagit.NewTag("bag-info.txt", "External-Identifier", fmt.Sprintf("%s-%s", itemID, runID)),
	}
	if err = bag.Finalize(tags); err != nil {
		return nil, guid, err
	}
	if err = bag.Validate(); err != nil {
		return nil, guid, err
	}
	packagePath := filepath.Join(stagingDir, constants.PackageFileName)
	size, err := bagit.ZipDir(bag.Dir, packagePath)
	if err != nil {
		return nil, guid, err
	}
	a.Logger.Infof("Packaged %s: %s", guid, bagit.HumanSize(size))

	item, err := a.Uploader.Upload(ctx, itemID, packagePath, record, doc.Data.ProviderID())
	if err != nil {
		return nil, guid, err
	}
	a.Logger.Infof("Archived %s as %s in %s", guid, item.DetailsURL, time.Since(started))
	return item, guid, nil
}

// assemble writes every payload file and builds the item metadata.
// The first failure cancels the other tasks; assemble returns only
// after all of them have stopped.
func (a *Archiver) assemble(ctx context.Context, bag *bagit.Bag, doc *registry.RegistrationDocument) (service.MetadataRecord, error) {
	guid := doc.Data.GUID()
	var record service.MetadataRecord
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(atLeastOne(a.Config.ArtifactConcurrency))
	g.Go(func() error { return a.Assembler.WriteRegistration(bag, doc) })
	g.Go(func() error { return a.Assembler.WriteDataCite(gctx, bag, doc) })
	g.Go(func() error { return a.Assembler.WriteWikis(gctx, bag, guid) })
	g.Go(func() error { return a.Assembler.WriteLogs(gctx, bag, guid) })
	g.Go(func() error { return a.Assembler.WriteContributors(gctx, bag, guid) })
	if doc.Data.FileCount() > 0 {
		g.Go(func() error { return a.Assembler.WriteFiles(gctx, bag, guid) })
	} else {
		a.Logger.Infof("Registration %s has no files; skipping file download", guid)
	}
	g.Go(func() error {
		var err error
		record, err = a.Formatter.Format(gctx, doc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return record, nil
}

// SyncMetadata updates the archive item for guid with patch.
func (a *Archiver) SyncMetadata(ctx context.Context, guid string, patch service.MetadataRecord) (*service.ArchiveItem, []string, error) {
	return a.Syncer.SyncMetadata(ctx, guid, patch)
}
