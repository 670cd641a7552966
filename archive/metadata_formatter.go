package archive

import (
	"context"
	"fmt"
	"net/url"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"golang.org/x/sync/errgroup"
)

// MetadataFormatter turns a registration document into the flat
// metadata record the archive stores on the item.
type MetadataFormatter struct {
	Config   *common.Config
	Registry RegistryAPI
}

func NewMetadataFormatter(config *common.Config, registryAPI RegistryAPI) *MetadataFormatter {
	return &MetadataFormatter{
		Config:   config,
		Registry: registryAPI,
	}
}

// extractor pulls one value out of a related record.
type extractor func(*registry.Resource) (string, error)

// Format builds the item metadata for doc. Contributors, institutions,
// subjects and children are fetched concurrently; the first failure
// cancels the others. Lists keep the order the API returned them in.
func (f *MetadataFormatter) Format(ctx context.Context, doc *registry.RegistrationDocument) (service.MetadataRecord, error) {
	reg := &doc.Data
	record, err := f.fromRegistration(reg)
	if err != nil {
		return nil, err
	}

	guid := url.PathEscape(reg.GUID())
	related := []struct {
		key         string
		relativeURL string
		extract     extractor
	}{
		{"creator", fmt.Sprintf("v2/registrations/%s/contributors/?filter[bibliographic]=true", guid), contributorName},
		{"affiliated_institutions", fmt.Sprintf("v2/registrations/%s/institutions/", guid), attrExtractor("affiliated_institutions", "name")},
		{"osf_subjects", fmt.Sprintf("v2/registrations/%s/subjects/", guid), attrExtractor("osf_subjects", "text")},
		{"children", fmt.Sprintf("v2/registrations/%s/children/?fields[registrations]=id", guid), f.childURL},
	}
	results := make([][]string, len(related))
	g, gctx := errgroup.WithContext(ctx)
	for i, rel := range related {
		i, rel := i, rel
		g.Go(func() error {
			values, err := f.fetchList(gctx, f.Registry.BuildURL(rel.relativeURL), rel.extract)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	for i, rel := range related {
		record[rel.key] = results[i]
	}
	return record, nil
}

// fromRegistration returns the fields that come straight from the
// registration document.
func (f *MetadataFormatter) fromRegistration(reg *registry.Registration) (service.MetadataRecord, error) {
	attrs := reg.Attributes
	if attrs.Title == nil || *attrs.Title == "" {
		return nil, &common.MalformedMetadataError{Field: "title", Message: "registration has no title"}
	}
	if attrs.DateCreated == "" {
		return nil, &common.MalformedMetadataError{Field: "date_created", Message: "registration has no creation date"}
	}
	created, err := reg.DateCreated()
	if err != nil {
		return nil, &common.MalformedMetadataError{Field: "date_created", Message: err.Error()}
	}

	tags := attrs.Tags
	if tags == nil {
		tags = make([]string, 0)
	}
	articleDOI := ""
	if attrs.ArticleDOI != nil && *attrs.ArticleDOI != "" {
		articleDOI = "urn:doi:" + *attrs.ArticleDOI
	}
	record := service.MetadataRecord{
		"publisher":            f.Config.Publisher,
		"title":                *attrs.Title,
		"description":          attrs.Description,
		"osf_category":         attrs.Category,
		"osf_tags":             tags,
		"date":                 created.Format("2006-01-02"),
		"article_doi":          articleDOI,
		"osf_registration_doi": nil,
	}
	if doi := reg.DOI(); doi != "" {
		record["osf_registration_doi"] = doi
	}
	if provider := reg.EmbeddedResource("provider"); provider != nil {
		record["osf_registry"] = provider.StringAttr("name")
	}
	if schema := reg.EmbeddedResource("registration_schema"); schema != nil {
		record["osf_registration_schema"] = schema.StringAttr("name")
	}
	root := reg.SiteRoot()
	registeredFrom := reg.RelatedID("registered_from")
	if root != "" && registeredFrom != "" {
		record["source"] = root + registeredFrom
	}
	if parentID := reg.RelatedID("parent"); parentID != "" {
		record["parent"] = f.Config.DetailsURL(f.Config.ItemIdentifier(parentID))
	}
	if license := reg.EmbeddedResource("license"); license != nil {
		if licenseURL := license.StringAttr("url"); licenseURL != "" {
			record["license"] = licenseURL
		}
	}
	return record, nil
}

func (f *MetadataFormatter) fetchList(ctx context.Context, absoluteURL string, extract extractor) ([]string, error) {
	records, err := f.Registry.FetchAll(ctx, absoluteURL)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(records))
	for _, data := range records {
		resource, err := registry.ResourceFromJSON(data)
		if err != nil {
			return nil, &common.ParseError{URL: absoluteURL, Message: "invalid record", Err: err}
		}
		value, err := extract(resource)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func (f *MetadataFormatter) childURL(child *registry.Resource) (string, error) {
	if child.ID == "" {
		return "", &common.MalformedMetadataError{Field: "children", Message: "child registration has no id"}
	}
	return f.Config.DetailsURL(f.Config.ItemIdentifier(child.ID)), nil
}

func contributorName(contributor *registry.Resource) (string, error) {
	name := contributor.EmbeddedResource("users").StringAttr("full_name")
	if name == "" {
		return "", &common.MalformedMetadataError{
			Field:   "creator",
			Message: fmt.Sprintf("contributor %s has no embedded user name", contributor.ID),
		}
	}
	return name, nil
}

func attrExtractor(field, attr string) extractor {
	return func(resource *registry.Resource) (string, error) {
		value := resource.StringAttr(attr)
		if value == "" {
			return "", &common.MalformedMetadataError{
				Field:   field,
				Message: fmt.Sprintf("%s %s has no %s", resource.Type, resource.ID, attr),
			}
		}
		return value, nil
	}
}
