package registry

import (
	"encoding/json"
	"net/url"
	"time"
)

// RegistrationDocument is the top-level JSON:API document returned by
// GET v2/registrations/{guid}/. Raw holds the bytes exactly as
// received, for registration.json.
type RegistrationDocument struct {
	Data Registration    `json:"data"`
	Raw  json.RawMessage `json:"-"`
}

type Registration struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    RegistrationAttributes  `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships"`
	Embeds        map[string]Embed        `json:"embeds"`
	Links         RegistrationLinks       `json:"links"`
}

type RegistrationAttributes struct {
	ArticleDOI              *string  `json:"article_doi"`
	Category                string   `json:"category"`
	DateCreated             string   `json:"date_created"`
	DateModified            string   `json:"date_modified"`
	Description             string   `json:"description"`
	Tags                    []string `json:"tags"`
	Title                   *string  `json:"title"`
	WithdrawalJustification *string  `json:"withdrawal_justification"`
	Withdrawn               bool     `json:"withdrawn"`
}

type RegistrationLinks struct {
	HTML string `json:"html"`
}

// Relationship is a JSON:API relationship. Data is either null, a
// resource identifier or a list of them, so it stays raw.
type Relationship struct {
	Data  json.RawMessage   `json:"data"`
	Links RelationshipLinks `json:"links"`
}

type RelationshipLinks struct {
	Related RelatedLink `json:"related"`
}

type RelatedLink struct {
	Href string                 `json:"href"`
	Meta map[string]interface{} `json:"meta"`
}

// ResourceID is a JSON:API resource identifier.
type ResourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Embed is the result of an ?embed= parameter. Data holds one
// resource or a list; Errors is set when the embedded resource
// could not be loaded (e.g. a registration with no license).
type Embed struct {
	Data   json.RawMessage   `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// Resource is a generic embedded resource.
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    map[string]interface{}  `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships"`
	Embeds        map[string]Embed        `json:"embeds"`
}

// RegistrationFromJSON decodes a registration document.
func RegistrationFromJSON(data []byte) (*RegistrationDocument, error) {
	doc := &RegistrationDocument{}
	err := json.Unmarshal(data, doc)
	if err != nil {
		return nil, err
	}
	doc.Raw = append(json.RawMessage(nil), data...)
	return doc, nil
}

// GUID returns the registration's id.
func (r *Registration) GUID() string {
	return r.ID
}

// FileCount returns relationships.files.links.related.meta.count,
// or zero if the API didn't report it.
func (r *Registration) FileCount() int {
	rel, ok := r.Relationships["files"]
	if !ok || rel.Links.Related.Meta == nil {
		return 0
	}
	if count, ok := rel.Links.Related.Meta["count"].(float64); ok {
		return int(count)
	}
	return 0
}

// RelatedID returns the id of the single resource a relationship
// points to, or "" if the relationship is missing or null.
func (r *Registration) RelatedID(name string) string {
	rel, ok := r.Relationships[name]
	if !ok || len(rel.Data) == 0 || string(rel.Data) == "null" {
		return ""
	}
	ref := &ResourceID{}
	if err := json.Unmarshal(rel.Data, ref); err != nil {
		return ""
	}
	return ref.ID
}

// EmbeddedResource returns the single resource under embeds.<name>.
// It returns nil if the embed is missing, errored or not an object.
func (r *Registration) EmbeddedResource(name string) *Resource {
	return embeddedResource(r.Embeds, name)
}

// EmbeddedResource returns the single resource under embeds.<name>,
// e.g. the user embedded in a contributor record.
func (res *Resource) EmbeddedResource(name string) *Resource {
	if res == nil {
		return nil
	}
	return embeddedResource(res.Embeds, name)
}

// RelatedHref returns relationships.<name>.links.related.href.
func (res *Resource) RelatedHref(name string) string {
	if res == nil {
		return ""
	}
	return res.Relationships[name].Links.Related.Href
}

func embeddedResource(embeds map[string]Embed, name string) *Resource {
	embed, ok := embeds[name]
	if !ok || len(embed.Errors) > 0 || len(embed.Data) == 0 || string(embed.Data) == "null" {
		return nil
	}
	resource := &Resource{}
	if err := json.Unmarshal(embed.Data, resource); err != nil {
		return nil
	}
	return resource
}

// ResourceFromJSON decodes one record of a related list.
func ResourceFromJSON(data []byte) (*Resource, error) {
	resource := &Resource{}
	err := json.Unmarshal(data, resource)
	return resource, err
}

// EmbeddedList returns the resources under embeds.<name>.
func (r *Registration) EmbeddedList(name string) []*Resource {
	embed, ok := r.Embeds[name]
	if !ok || len(embed.Errors) > 0 || len(embed.Data) == 0 {
		return nil
	}
	list := make([]*Resource, 0)
	if err := json.Unmarshal(embed.Data, &list); err != nil {
		return nil
	}
	return list
}

// DOI returns the value of the first identifier whose category
// is "doi", or "" if there is none.
func (r *Registration) DOI() string {
	for _, identifier := range r.EmbeddedList("identifiers") {
		if identifier.StringAttr("category") == "doi" {
			return identifier.StringAttr("value")
		}
	}
	return ""
}

// ProviderID returns the id of the embedded provider.
func (r *Registration) ProviderID() string {
	if provider := r.EmbeddedResource("provider"); provider != nil {
		return provider.ID
	}
	return ""
}

// SiteRoot returns scheme://host/ of the registration's html link.
func (r *Registration) SiteRoot() string {
	u, err := url.Parse(r.Links.HTML)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// DateCreated parses attributes.date_created. The API sends
// ISO-8601 with or without fractional seconds.
func (r *Registration) DateCreated() (time.Time, error) {
	return ParseAPITime(r.Attributes.DateCreated)
}

// StringAttr returns a string attribute, or "" if it is missing or
// not a string.
func (res *Resource) StringAttr(name string) string {
	if res == nil || res.Attributes == nil {
		return ""
	}
	if value, ok := res.Attributes[name].(string); ok {
		return value
	}
	return ""
}

var apiTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseAPITime parses the timestamp formats the OSF API uses.
func ParseAPITime(value string) (time.Time, error) {
	var err error
	var t time.Time
	for _, format := range apiTimeFormats {
		t, err = time.Parse(format, value)
		if err == nil {
			return t, nil
		}
	}
	return t, err
}
