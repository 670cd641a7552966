package archive_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/archive"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	osf := fakeOSF(t, "")
	client := newRegistryClient(osf)
	doc, err := client.Registration(context.Background(), testGUID)
	require.Nil(t, err)

	formatter := archive.NewMetadataFormatter(testConfig(t), client)
	record, err := formatter.Format(context.Background(), doc)
	require.Nil(t, err)

	expected := service.MetadataRecord{
		"publisher":               "Center for Open Science",
		"title":                   "Effects of Pigeon Homing on Archive Latency",
		"description":             "Preregistered study of homing behavior.",
		"osf_category":            "project",
		"osf_tags":                []string{"pigeons", "homing"},
		"date":                    "2021-03-04",
		"article_doi":             "urn:doi:10.1234/journal.5678",
		"osf_registration_doi":    testDOI,
		"osf_registry":            "OSF Registries",
		"osf_registration_schema": "Open-Ended Registration",
		"source":                  "https://osf.io/xyz98",
		"license":                 "https://creativecommons.org/publicdomain/zero/1.0/legalcode",
		"creator":                 []string{"Ada Pigeon", "Rock Dove", "Carrier Smith"},
		"affiliated_institutions": []string{"Pigeon University"},
		"osf_subjects":            []string{"Ornithology", "Logistics"},
		"children": []string{
			"https://archive.org/details/osf-registrations-kid01-v1",
			"https://archive.org/details/osf-registrations-kid02-v1",
		},
	}
	assert.Equal(t, expected, record)
	_, hasParent := record["parent"]
	assert.False(t, hasParent)
}

func TestFormatIsDeterministic(t *testing.T) {
	osf := fakeOSF(t, "")
	client := newRegistryClient(osf)
	doc, err := client.Registration(context.Background(), testGUID)
	require.Nil(t, err)
	formatter := archive.NewMetadataFormatter(testConfig(t), client)

	first, err := formatter.Format(context.Background(), doc)
	require.Nil(t, err)
	second, err := formatter.Format(context.Background(), doc)
	require.Nil(t, err)
	assert.Equal(t, toJSON(t, first), toJSON(t, second))
}

func TestFormatOptionalFields(t *testing.T) {
	registration := registrationWith(t,
		`"parent": {"data": null}`, `"parent": {"data": {"id": "mom01", "type": "registrations"}}`,
		`"article_doi": "10.1234/journal.5678"`, `"article_doi": null`,
		`"license": {`, `"license": {"errors": [{"detail": "Not found."}], `,
		`{"id": "doi1", "type": "identifiers", "attributes": {"category": "doi", "value": "10.70102/FK2osf.io/abc12"}}`,
		`{"id": "doi1", "type": "identifiers", "attributes": {"category": "legacy_doi", "value": "10.1/old"}}`,
	)
	osf := fakeOSF(t, registration)
	client := newRegistryClient(osf)
	doc, err := client.Registration(context.Background(), testGUID)
	require.Nil(t, err)

	record, err := archive.NewMetadataFormatter(testConfig(t), client).Format(context.Background(), doc)
	require.Nil(t, err)
	assert.Equal(t, "https://archive.org/details/osf-registrations-mom01-v1", record["parent"])
	assert.Equal(t, "", record["article_doi"])
	assert.Nil(t, record["osf_registration_doi"])
	_, hasLicense := record["license"]
	assert.False(t, hasLicense)
}

func TestFormatMalformed(t *testing.T) {
	formatter := archive.NewMetadataFormatter(testConfig(t), nil)
	cases := map[string]string{
		"title":        `{"data": {"id": "abc12", "attributes": {"date_created": "2021-03-04T12:34:56Z"}}}`,
		"date_created": `{"data": {"id": "abc12", "attributes": {"title": "T", "date_created": "yesterday"}}}`,
	}
	for field, text := range cases {
		doc, err := registry.RegistrationFromJSON([]byte(text))
		require.Nil(t, err)
		_, err = formatter.Format(context.Background(), doc)
		var malformed *common.MalformedMetadataError
		require.True(t, errors.As(err, &malformed), field)
		assert.Equal(t, field, malformed.Field)
	}
}

func TestFormatRelatedFailure(t *testing.T) {
	osf := fakeOSF(t, "")
	osf.Handle("/v2/registrations/abc12/subjects/", testutil.HttpStatusResponder(http.StatusInternalServerError, "boom"))
	client := newRegistryClient(osf)
	doc, err := client.Registration(context.Background(), testGUID)
	require.Nil(t, err)

	_, err = archive.NewMetadataFormatter(testConfig(t), client).Format(context.Background(), doc)
	var upstream *common.UpstreamHTTPError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Equal(t, "boom", upstream.Body)
}
