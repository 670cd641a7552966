package archive_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/network"
	"github.com/CenterForOpenScience/pigeon-services/testutil"
	"github.com/stretchr/testify/require"
)

const testGUID = "abc12"
const testItemID = "osf-registrations-abc12-v1"
const testDOI = "10.70102/FK2osf.io/abc12"

var testLogger = testutil.GetLogger("archive_test")

func testConfig(t *testing.T) *common.Config {
	return &common.Config{
		ArtifactConcurrency: 4,
		IADetailsURL:        "https://archive.org/details/",
		IALocateRetries:     2,
		IALocateRetryMs:     time.Millisecond,
		IDVersion:           "v1",
		PageConcurrency:     2,
		PageSize:            2,
		ProviderIDTemplate:  "osf-registration-providers-{provider_id}-{version}",
		Publisher:           "Center for Open Science",
		RegIDTemplate:       "osf-registrations-{guid}-{version}",
		StagingDir:          t.TempDir(),
	}
}

func newRegistryClient(osf *testutil.FakeOSF) *network.RegistryClient {
	return network.NewRegistryClient(network.RegistryClientOptions{
		APIURL:          osf.URL,
		FilesURL:        osf.URL + "files/",
		PageConcurrency: 2,
		Retry: network.RetryPolicy{
			MaxAttempts: 2,
			DefaultWait: 5 * time.Millisecond,
			MaxWait:     10 * time.Millisecond,
		},
	}, testLogger)
}

// fakeOSF serves the registration fixture and every list the pipeline
// reads. registration, if not empty, replaces the fixture.
func fakeOSF(t *testing.T, registration string) *testutil.FakeOSF {
	if registration == "" {
		data, err := testutil.ReadOSFFixture("registration.json")
		require.Nil(t, err)
		registration = string(data)
	}
	osf := testutil.NewFakeOSF()
	t.Cleanup(osf.Close)
	osf.HandleJSON("/v2/registrations/abc12/", registration)
	osf.Handle("/v2/registrations/abc12/contributors/", testutil.PagedList(contributors(osf.URL), 2))
	osf.Handle("/v2/registrations/abc12/institutions/", testutil.PagedList(named("attributes", "name", "Pigeon University"), 2))
	osf.Handle("/v2/registrations/abc12/subjects/", testutil.PagedList(named("attributes", "text", "Ornithology", "Logistics"), 2))
	osf.Handle("/v2/registrations/abc12/children/", testutil.PagedList([]map[string]interface{}{{"id": "kid01"}, {"id": "kid02"}}, 2))
	osf.Handle("/v2/registrations/abc12/wikis/", testutil.PagedList(testutil.Records("wikis", 3), 2))
	osf.Handle("/v2/registrations/abc12/logs/", testutil.PagedList(testutil.Records("logs", 5), 2))
	osf.Handle("/v2/users/u1/institutions/", testutil.PagedList(named("attributes", "name", "Pigeon University"), 2))
	osf.Handle("/v2/users/u2/institutions/", testutil.PagedList(named("attributes", "name"), 2))
	osf.Handle("/v2/users/u3/institutions/", testutil.PagedList(named("attributes", "name", "Coop College", "Roost Institute"), 2))
	osf.Handle("/files/v1/resources/abc12/providers/osfstorage/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK not really a zip"))
	})
	return osf
}

func contributors(apiURL string) []map[string]interface{} {
	names := []string{"Ada Pigeon", "Rock Dove", "Carrier Smith"}
	records := make([]map[string]interface{}, len(names))
	for i, name := range names {
		userID := fmt.Sprintf("u%d", i+1)
		records[i] = map[string]interface{}{
			"id":         testGUID + "-" + userID,
			"type":       "contributors",
			"attributes": map[string]interface{}{"bibliographic": true},
			"embeds": map[string]interface{}{
				"users": map[string]interface{}{
					"data": map[string]interface{}{
						"id":         userID,
						"attributes": map[string]interface{}{"full_name": name},
						"relationships": map[string]interface{}{
							"institutions": map[string]interface{}{
								"links": map[string]interface{}{
									"related": map[string]interface{}{
										"href": apiURL + "v2/users/" + userID + "/institutions/",
									},
								},
							},
						},
					},
				},
			},
		}
	}
	return records
}

func named(section, attr string, values ...string) []map[string]interface{} {
	records := make([]map[string]interface{}, len(values))
	for i, value := range values {
		records[i] = map[string]interface{}{
			"id":    fmt.Sprintf("%s-%d", attr, i),
			section: map[string]interface{}{attr: value},
		}
	}
	return records
}

func registrationWith(t *testing.T, replacements ...string) string {
	data, err := testutil.ReadOSFFixture("registration.json")
	require.Nil(t, err)
	text := string(data)
	for i := 0; i+1 < len(replacements); i += 2 {
		require.Contains(t, text, replacements[i])
		text = strings.Replace(text, replacements[i], replacements[i+1], 1)
	}
	return text
}

type fakeResolver struct {
	records map[string]string
}

func (r *fakeResolver) Metadata(ctx context.Context, doi string) ([]byte, error) {
	xml, ok := r.records[doi]
	if !ok {
		return nil, &common.PIDNotFoundError{DOI: doi}
	}
	return []byte(xml), nil
}

func newResolver(t *testing.T) *fakeResolver {
	data, err := testutil.ReadDataCiteFixture("abc12.xml")
	require.Nil(t, err)
	return &fakeResolver{records: map[string]string{testDOI: string(data)}}
}

// fakeBackend is an in-memory archive that records the order of
// calls made to it.
type fakeBackend struct {
	mutex     sync.Mutex
	items     map[string]service.MetadataRecord
	locateErr map[string]int
	calls     []string
	patches   []service.MetadataRecord
	uploads   map[string]service.MetadataRecord
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		items:     make(map[string]service.MetadataRecord),
		locateErr: make(map[string]int),
		uploads:   make(map[string]service.MetadataRecord),
	}
}

func (b *fakeBackend) GetItem(ctx context.Context, identifier string) (*service.ArchiveItem, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = append(b.calls, "get")
	if b.locateErr[identifier] > 0 {
		b.locateErr[identifier]--
		return nil, &common.ItemLocateError{Identifier: identifier, Message: "item is dark"}
	}
	item := service.NewArchiveItem(identifier, "https://archive.org/details/"+identifier)
	if metadata, ok := b.items[identifier]; ok {
		item.Exists = true
		item.Metadata = metadata.Copy()
	}
	return item, nil
}

func (b *fakeBackend) Upload(ctx context.Context, identifier, path string, record service.MetadataRecord) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = append(b.calls, "upload")
	b.uploads[identifier] = record.Copy()
	b.items[identifier] = record.Compact()
	return nil
}

func (b *fakeBackend) ModifyMetadata(ctx context.Context, identifier string, patch service.MetadataRecord) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = append(b.calls, "modify")
	b.patches = append(b.patches, patch.Copy())
	item, ok := b.items[identifier]
	if !ok {
		return fmt.Errorf("item %s does not exist", identifier)
	}
	for key, value := range patch {
		if value == nil {
			delete(item, key)
		} else {
			item[key] = value
		}
	}
	return nil
}

func toJSON(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.Nil(t, err)
	return string(data)
}
