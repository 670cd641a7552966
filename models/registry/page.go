package registry

import (
	"encoding/json"
)

// Page is one page of a JSON:API list response from the OSF API.
// Records stay raw so we can dump them to disk exactly as the API
// sent them.
type Page struct {
	Data  []json.RawMessage `json:"data"`
	Links PageLinks         `json:"links"`
	Meta  PageMeta          `json:"meta"`
}

// PageLinks holds pagination links. Older API versions put the
// pagination meta under links instead of at the top level.
type PageLinks struct {
	Next *string  `json:"next"`
	Meta PageMeta `json:"meta"`
}

type PageMeta struct {
	Total   *int `json:"total"`
	PerPage *int `json:"per_page"`
}

// PageFromJSON decodes a list response. A response whose data is a
// single object (not a list) is an error.
func PageFromJSON(data []byte) (*Page, error) {
	page := &Page{}
	err := json.Unmarshal(data, page)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// HasNext returns true if the API says there are more pages.
func (p *Page) HasNext() bool {
	return p.Links.Next != nil && *p.Links.Next != ""
}

// Total returns the advertised number of records, looking first
// under links.meta and then under meta.
func (p *Page) Total() (int, bool) {
	if p.Links.Meta.Total != nil {
		return *p.Links.Meta.Total, true
	}
	if p.Meta.Total != nil {
		return *p.Meta.Total, true
	}
	return 0, false
}

// PerPage returns the advertised page size.
func (p *Page) PerPage() (int, bool) {
	if p.Links.Meta.PerPage != nil && *p.Links.Meta.PerPage > 0 {
		return *p.Links.Meta.PerPage, true
	}
	if p.Meta.PerPage != nil && *p.Meta.PerPage > 0 {
		return *p.Meta.PerPage, true
	}
	return 0, false
}

// PageCount returns the number of pages needed to hold all records.
func (p *Page) PageCount() (int, bool) {
	total, ok := p.Total()
	if !ok {
		return 0, false
	}
	perPage, ok := p.PerPage()
	if !ok {
		return 0, false
	}
	return (total + perPage - 1) / perPage, true
}
