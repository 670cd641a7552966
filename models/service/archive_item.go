package service

import (
	"encoding/json"
	"sort"
)

// MetadataRecord is a flat archive metadata record. Values are
// string, []string, bool or nil. A nil value means the field is
// known to be absent and is never sent to the archive.
type MetadataRecord map[string]interface{}

// Keys returns the record's keys in sorted order.
func (r MetadataRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Compact returns a copy of the record without nil values.
func (r MetadataRecord) Compact() MetadataRecord {
	compact := make(MetadataRecord, len(r))
	for key, value := range r {
		if value != nil {
			compact[key] = value
		}
	}
	return compact
}

// Copy returns a shallow copy of the record.
func (r MetadataRecord) Copy() MetadataRecord {
	dup := make(MetadataRecord, len(r))
	for key, value := range r {
		dup[key] = value
	}
	return dup
}

// String returns the string value at key, or "" if the value is
// missing or not a string.
func (r MetadataRecord) String(key string) string {
	if value, ok := r[key].(string); ok {
		return value
	}
	return ""
}

// Bool returns true only if the value at key is boolean true or
// the string "true". The archive returns metadata values as strings.
func (r MetadataRecord) Bool(key string) bool {
	switch value := r[key].(type) {
	case bool:
		return value
	case string:
		return value == "true"
	}
	return false
}

// ToJSON marshals the record. encoding/json sorts map keys, so the
// output is deterministic.
func (r MetadataRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ArchiveItem describes an item in the archive.
type ArchiveItem struct {
	Identifier string         `json:"identifier"`
	DetailsURL string         `json:"details_url"`
	Metadata   MetadataRecord `json:"metadata"`
	Exists     bool           `json:"exists"`
}

// NewArchiveItem returns an item that does not yet exist in
// the archive.
func NewArchiveItem(identifier, detailsURL string) *ArchiveItem {
	return &ArchiveItem{
		Identifier: identifier,
		DetailsURL: detailsURL,
		Metadata:   make(MetadataRecord),
	}
}

// IsNoIndex returns true if the item has been hidden from search,
// which is what happens when a registration is withdrawn.
func (item *ArchiveItem) IsNoIndex() bool {
	return item.Metadata.Bool("noindex")
}
