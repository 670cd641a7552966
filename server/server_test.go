package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/network"
	"github.com/CenterForOpenScience/pigeon-services/server"
	"github.com/CenterForOpenScience/pigeon-services/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mutex    sync.Mutex
	err      error
	archive  []string
	metadata map[string]service.MetadataRecord
}

func (q *fakeQueue) EnqueueArchive(ctx context.Context, guid string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.err != nil {
		return q.err
	}
	q.archive = append(q.archive, guid)
	return nil
}

func (q *fakeQueue) EnqueueMetadata(ctx context.Context, guid string, metadata service.MetadataRecord) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.err != nil {
		return q.err
	}
	if q.metadata == nil {
		q.metadata = make(map[string]service.MetadataRecord)
	}
	q.metadata[guid] = metadata
	return nil
}

type fixture struct {
	queue  *fakeQueue
	redis  *network.RedisClient
	server *httptest.Server
}

func newFixture(t *testing.T, logFile string) *fixture {
	redisServer := testutil.NewRedisServer()
	t.Cleanup(redisServer.Close)
	f := &fixture{
		queue: &fakeQueue{},
		redis: network.NewRedisClient(redisServer.Addr(), "", 0),
	}
	s := server.NewServer(&common.Config{}, f.queue, f.redis, testutil.GetLogger("server_test"), logFile)
	f.server = httptest.NewServer(s)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.Nil(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer resp.Body.Close()
	data := make(map[string]interface{})
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.Nil(t, json.NewDecoder(resp.Body).Decode(&data))
	}
	return resp, data
}

func TestIndex(t *testing.T) {
	f := newFixture(t, "")
	resp, data := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"🐦": "👍"}, data)
}

func TestLogs(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "pigeon_server.log")
	require.Nil(t, os.WriteFile(logFile, []byte("[INFO] archived abc12\n"), 0644))
	f := newFixture(t, logFile)

	resp, err := http.Get(f.server.URL + "/logs")
	require.Nil(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.Nil(t, err)
	assert.Equal(t, "[INFO] archived abc12\n", buf.String())

	f = newFixture(t, "")
	resp, _ = f.do(t, http.MethodGet, "/logs", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArchive(t *testing.T) {
	f := newFixture(t, "")
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, data := f.do(t, method, "/archive/abc12", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "queued", data["abc12"])
	}
	assert.Equal(t, []string{"abc12", "abc12"}, f.queue.archive)

	resp, _ := f.do(t, http.MethodGet, "/archive/a.b", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, f.queue.archive, 2)

	resp, _ = f.do(t, http.MethodDelete, "/archive/abc12", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestArchiveQueueDown(t *testing.T) {
	f := newFixture(t, "")
	f.queue.err = errors.New("connection refused")
	resp, data := f.do(t, http.MethodPost, "/archive/abc12", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "connection refused", data["error"])
}

func TestMetadata(t *testing.T) {
	f := newFixture(t, "")
	resp, data := f.do(t, http.MethodPost, "/metadata/abc12", `{"title": "New title", "osf_tags": ["a", "b"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "queued", data["abc12"])
	require.Contains(t, f.queue.metadata, "abc12")
	assert.Equal(t, "New title", f.queue.metadata["abc12"]["title"])
	assert.Equal(t, []interface{}{"a", "b"}, f.queue.metadata["abc12"]["osf_tags"])

	resp, _ = f.do(t, http.MethodGet, "/metadata/abc12", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetadataRejectsBadPatches(t *testing.T) {
	f := newFixture(t, "")

	resp, data := f.do(t, http.MethodPost, "/metadata/abc12", `{"title": "x", "noindex": true, "collection": "y"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []interface{}{"collection", "noindex"}, data["invalid_keys"])

	resp, _ = f.do(t, http.MethodPost, "/metadata/abc12", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/metadata/abc12", `["title"]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, f.queue.metadata)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")
	resp, _ := f.do(t, http.MethodGet, "/status/abc12", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	archived := service.NewJobResult("abc12", "archive")
	archived.Attempt = 1
	archived.Start()
	archived.ArchiveURL = "https://archive.org/details/osf-registrations-abc12-v1"
	archived.Finish()
	require.Nil(t, f.redis.JobResultSave(archived))

	synced := service.NewJobResult("abc12", "metadata")
	synced.Start()
	synced.AddError(service.NewProcessingError("abc12", "metadata", "metadata keys not allowed: collection", true))
	synced.Finish()
	require.Nil(t, f.redis.JobResultSave(synced))

	resp, data := f.do(t, http.MethodGet, "/status/abc12", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archiveStatus := data["archive"].(map[string]interface{})
	assert.Equal(t, "succeeded", archiveStatus["status"])
	assert.Equal(t, "https://archive.org/details/osf-registrations-abc12-v1", archiveStatus["archive_url"])
	assert.Equal(t, float64(1), archiveStatus["attempt"])
	metadataStatus := data["metadata"].(map[string]interface{})
	assert.Equal(t, "failed", metadataStatus["status"])
	assert.Len(t, metadataStatus["errors"], 1)
}
