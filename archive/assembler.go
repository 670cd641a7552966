package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/CenterForOpenScience/pigeon-services/bagit"
	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
)

// Assembler writes the payload files of a registration's bag.
type Assembler struct {
	Config   *common.Config
	DataCite PIDResolver
	Logger   *logging.Logger
	Registry RegistryAPI
}

func NewAssembler(config *common.Config, registryAPI RegistryAPI, dataCite PIDResolver, logger *logging.Logger) *Assembler {
	return &Assembler{
		Config:   config,
		DataCite: dataCite,
		Logger:   logger,
		Registry: registryAPI,
	}
}

// WriteRegistration writes the registration document exactly as the
// API returned it.
func (a *Assembler) WriteRegistration(bag *bagit.Bag, doc *registry.RegistrationDocument) error {
	return writeFile(bag.PayloadPath(constants.RegistrationJSON), doc.Raw)
}

// WriteDataCite writes the DataCite XML for the registration's DOI.
// A registration without a DOI is a PIDNotFoundError.
func (a *Assembler) WriteDataCite(ctx context.Context, bag *bagit.Bag, doc *registry.RegistrationDocument) error {
	doi := doc.Data.DOI()
	if doi == "" {
		return &common.PIDNotFoundError{GUID: doc.Data.GUID()}
	}
	xml, err := a.DataCite.Metadata(ctx, doi)
	if err != nil {
		var notFound *common.PIDNotFoundError
		if errors.As(err, &notFound) {
			notFound.GUID = doc.Data.GUID()
		}
		return err
	}
	return writeFile(bag.PayloadPath(constants.DataCiteXML), xml)
}

// WriteWikis dumps every wiki record of the registration.
func (a *Assembler) WriteWikis(ctx context.Context, bag *bagit.Bag, guid string) error {
	records, err := a.Registry.FetchAll(ctx, a.listURL(guid, "wikis"))
	if err != nil {
		return err
	}
	return writeJSON(bag.PayloadPath(constants.WikisJSON), records)
}

// WriteLogs dumps every log record of the registration.
func (a *Assembler) WriteLogs(ctx context.Context, bag *bagit.Bag, guid string) error {
	records, err := a.Registry.FetchAll(ctx, a.listURL(guid, "logs"))
	if err != nil {
		return err
	}
	return writeJSON(bag.PayloadPath(constants.LogsJSON), records)
}

// WriteContributors dumps every contributor record, each with an added
// affiliated_institutions list naming the user's institutions.
func (a *Assembler) WriteContributors(ctx context.Context, bag *bagit.Bag, guid string) error {
	listURL := a.listURL(guid, "contributors")
	records, err := a.Registry.FetchAll(ctx, listURL)
	if err != nil {
		return err
	}
	enriched := make([]map[string]interface{}, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(atLeastOne(a.Config.PageConcurrency))
	for i, data := range records {
		i, data := i, data
		g.Go(func() error {
			contributor, err := a.enrichContributor(gctx, listURL, data)
			if err != nil {
				return err
			}
			enriched[i] = contributor
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	return writeJSON(bag.PayloadPath(constants.ContributorsJSON), enriched)
}

func (a *Assembler) enrichContributor(ctx context.Context, listURL string, data json.RawMessage) (map[string]interface{}, error) {
	contributor := make(map[string]interface{})
	if err := json.Unmarshal(data, &contributor); err != nil {
		return nil, &common.ParseError{URL: listURL, Message: "invalid contributor record", Err: err}
	}
	resource, err := registry.ResourceFromJSON(data)
	if err != nil {
		return nil, &common.ParseError{URL: listURL, Message: "invalid contributor record", Err: err}
	}
	names := make([]string, 0)
	href := resource.EmbeddedResource("users").RelatedHref("institutions")
	if href != "" {
		institutions, err := a.Registry.FetchAll(ctx, href)
		if err != nil {
			return nil, err
		}
		for _, raw := range institutions {
			institution, err := registry.ResourceFromJSON(raw)
			if err != nil {
				return nil, &common.ParseError{URL: href, Message: "invalid institution record", Err: err}
			}
			names = append(names, institution.StringAttr("name"))
		}
	}
	contributor["affiliated_institutions"] = names
	return contributor, nil
}

// WriteFiles streams the registration's osfstorage zip into the bag.
func (a *Assembler) WriteFiles(ctx context.Context, bag *bagit.Bag, guid string) error {
	written, err := a.Registry.Download(ctx, a.Registry.FilesZipURL(guid), bag.PayloadPath(constants.ArchivedFilesZip))
	if err != nil {
		return err
	}
	a.Logger.Infof("Downloaded %d bytes of files for %s", written, guid)
	return nil
}

func (a *Assembler) listURL(guid, list string) string {
	return a.Registry.BuildURL(fmt.Sprintf("v2/registrations/%s/%s/?page[size]=%d",
		url.PathEscape(guid), list, a.Config.PageSize))
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
