package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/op/go-logging"
)

// Locator finds archive items, retrying while the archive reports
// them dark or unlocatable.
type Locator struct {
	Backend   ArchiveBackend
	Logger    *logging.Logger
	Retries   int
	RetryWait time.Duration
}

// Locate returns the item, retrying ItemLocateErrors up to Retries
// times with a fixed wait between attempts. Other errors are
// returned at once.
func (l *Locator) Locate(ctx context.Context, identifier string) (*service.ArchiveItem, error) {
	for attempt := 0; ; attempt++ {
		item, err := l.Backend.GetItem(ctx, identifier)
		var locateErr *common.ItemLocateError
		if err == nil || !errors.As(err, &locateErr) || attempt >= l.Retries {
			return item, err
		}
		l.Logger.Warningf("Cannot locate %s (attempt %d of %d): %s. Retrying in %s.",
			identifier, attempt+1, l.Retries+1, locateErr.Message, l.RetryWait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.RetryWait):
		}
	}
}

// Uploader sends a finished package to the archive.
type Uploader struct {
	Config  *common.Config
	Locator *Locator
	Logger  *logging.Logger
}

func NewUploader(config *common.Config, backend ArchiveBackend, logger *logging.Logger) *Uploader {
	return &Uploader{
		Config:  config,
		Locator: newLocator(config, backend, logger),
		Logger:  logger,
	}
}

func newLocator(config *common.Config, backend ArchiveBackend, logger *logging.Logger) *Locator {
	return &Locator{
		Backend:   backend,
		Logger:    logger,
		Retries:   config.IALocateRetries,
		RetryWait: config.IALocateRetryMs,
	}
}

// Upload puts the package at packagePath into item itemID, with record
// plus the provider's collection as the item metadata. It returns the
// item as it should now look in the archive.
func (u *Uploader) Upload(ctx context.Context, itemID, packagePath string, record service.MetadataRecord, providerID string) (*service.ArchiveItem, error) {
	item, err := u.Locator.Locate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	metadata := record.Copy()
	if providerID != "" {
		metadata["collection"] = u.Config.ProviderIdentifier(providerID)
	}
	started := time.Now()
	if err = u.Locator.Backend.Upload(ctx, itemID, packagePath, metadata); err != nil {
		return nil, err
	}
	u.Logger.Infof("Uploaded %s to %s in %s", packagePath, itemID, time.Since(started))
	item.Exists = true
	item.Metadata = metadata.Compact()
	return item, nil
}

// MetadataSyncer pushes metadata changes from the registry to an
// existing archive item.
type MetadataSyncer struct {
	Config  *common.Config
	Locator *Locator
	Logger  *logging.Logger
}

func NewMetadataSyncer(config *common.Config, backend ArchiveBackend, logger *logging.Logger) *MetadataSyncer {
	return &MetadataSyncer{
		Config:  config,
		Locator: newLocator(config, backend, logger),
		Logger:  logger,
	}
}

// SyncMetadata applies patch to the item for guid and returns the item
// and the keys it wrote.
//
// A non-empty withdrawal_justification, or an item already hidden with
// noindex, means the registration is withdrawn. A patch carrying a
// justification always sets noindex first, even on an item that has it.
// Then the patch goes out with the withdrawal notice on its description.
// withdrawal_justification itself is never written.
func (s *MetadataSyncer) SyncMetadata(ctx context.Context, guid string, patch service.MetadataRecord) (*service.ArchiveItem, []string, error) {
	if err := CheckPatch(patch); err != nil {
		return nil, nil, err
	}

	itemID := s.Config.ItemIdentifier(guid)
	item, err := s.Locator.Locate(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if !item.Exists {
		return nil, nil, &common.ItemLocateError{Identifier: itemID, Message: "item has not been archived"}
	}

	write := patch.Copy()
	delete(write, constants.WithdrawalKey)
	signaled := patch.String(constants.WithdrawalKey) != ""
	if signaled || item.IsNoIndex() {
		if signaled {
			hide := service.MetadataRecord{"noindex": true}
			if err = s.Locator.Backend.ModifyMetadata(ctx, itemID, hide); err != nil {
				return nil, nil, err
			}
			item.Metadata["noindex"] = "true"
			s.Logger.Infof("Set noindex on withdrawn item %s", itemID)
		}
		base, ok := write["description"].(string)
		if !ok {
			base = item.Metadata.String("description")
		}
		write["description"] = WithdrawnDescription(base)
	}
	if len(write) == 0 {
		return item, []string{}, nil
	}

	if err = s.Locator.Backend.ModifyMetadata(ctx, itemID, write); err != nil {
		return nil, nil, err
	}
	for key, value := range write {
		if value == nil {
			delete(item.Metadata, key)
		} else {
			item.Metadata[key] = value
		}
	}
	keys := write.Keys()
	s.Logger.Infof("Synced metadata for %s: %s", itemID, strings.Join(keys, ", "))
	return item, keys, nil
}

// CheckPatch returns an error if patch is empty, has keys that may
// not be synced, or has a withdrawal_justification that is not a
// string.
func CheckPatch(patch service.MetadataRecord) error {
	if len(patch) == 0 {
		return &common.MalformedMetadataError{Message: "metadata patch is empty"}
	}
	if invalid := util.StringListDiff(patch.Keys(), constants.SyncableMetadataKeys); len(invalid) > 0 {
		return &common.InvalidMetadataKeyError{Keys: invalid}
	}
	if justification, ok := patch[constants.WithdrawalKey]; ok && justification != nil {
		if _, isString := justification.(string); !isString {
			return &common.MalformedMetadataError{
				Field:   constants.WithdrawalKey,
				Message: fmt.Sprintf("must be a string, not %T", justification),
			}
		}
	}
	return nil
}

// WithdrawnDescription puts the withdrawal notice in front of
// description. A description that already has the notice comes back
// unchanged.
func WithdrawnDescription(description string) string {
	if description == "" || description == constants.WithdrawnDefaultNote {
		return constants.WithdrawnDefaultNote
	}
	if strings.HasPrefix(description, constants.WithdrawnNotePrefix) {
		return description
	}
	return fmt.Sprintf("%s%s", constants.WithdrawnNotePrefix, description)
}
