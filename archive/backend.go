package archive

import (
	"context"
	"encoding/json"

	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
)

// RegistryAPI is the part of the OSF API client the pipeline uses.
// network.RegistryClient implements it.
type RegistryAPI interface {
	BuildURL(relativeURL string) string
	Download(ctx context.Context, absoluteURL, path string) (int64, error)
	FetchAll(ctx context.Context, absoluteURL string) ([]json.RawMessage, error)
	FilesZipURL(guid string) string
	Registration(ctx context.Context, guid string) (*registry.RegistrationDocument, error)
}

// PIDResolver returns the DataCite XML record for a DOI.
// network.DataCiteClient implements it.
type PIDResolver interface {
	Metadata(ctx context.Context, doi string) ([]byte, error)
}

// ArchiveBackend is the archive itself. network.ArchiveClient
// implements it.
type ArchiveBackend interface {
	GetItem(ctx context.Context, identifier string) (*service.ArchiveItem, error)
	Upload(ctx context.Context, identifier, path string, record service.MetadataRecord) error
	ModifyMetadata(ctx context.Context, identifier string, patch service.MetadataRecord) error
}
