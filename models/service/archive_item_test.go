package service_test

import (
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRecordKeys(t *testing.T) {
	record := service.MetadataRecord{"title": "t", "date": "2021-01-01", "article_doi": ""}
	assert.Equal(t, []string{"article_doi", "date", "title"}, record.Keys())
}

func TestMetadataRecordCompact(t *testing.T) {
	record := service.MetadataRecord{"title": "t", "parent": nil}
	compact := record.Compact()
	assert.Equal(t, service.MetadataRecord{"title": "t"}, compact)
	// Original is untouched.
	assert.Len(t, record, 2)
}

func TestMetadataRecordAccessors(t *testing.T) {
	record := service.MetadataRecord{
		"title":   "t",
		"tags":    []string{"a"},
		"noindex": "true",
		"dark":    true,
	}
	assert.Equal(t, "t", record.String("title"))
	assert.Equal(t, "", record.String("tags"))
	assert.True(t, record.Bool("noindex"))
	assert.True(t, record.Bool("dark"))
	assert.False(t, record.Bool("title"))
	assert.False(t, record.Bool("missing"))

	dup := record.Copy()
	dup["title"] = "changed"
	assert.Equal(t, "t", record.String("title"))
}

func TestMetadataRecordToJSON(t *testing.T) {
	record := service.MetadataRecord{"title": "t", "date": "2021-01-01", "osf_tags": []string{"b", "a"}}
	data, err := record.ToJSON()
	require.Nil(t, err)
	assert.Equal(t, `{"date":"2021-01-01","osf_tags":["b","a"],"title":"t"}`, string(data))
}

func TestArchiveItem(t *testing.T) {
	item := service.NewArchiveItem("osf-registrations-abc12-v1", "https://archive.org/details/osf-registrations-abc12-v1")
	assert.False(t, item.Exists)
	assert.False(t, item.IsNoIndex())
	item.Metadata["noindex"] = true
	assert.True(t, item.IsNoIndex())
}
