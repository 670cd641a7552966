package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// FakeOSF is an httptest server that stands in for the OSF API and
// files service. Tests register handlers by path; requests to any
// other path get a 404. FakeOSF counts requests per path.
type FakeOSF struct {
	URL    string
	server *httptest.Server
	mutex  sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

func NewFakeOSF() *FakeOSF {
	fake := &FakeOSF{
		routes: make(map[string]http.HandlerFunc),
		hits:   make(map[string]int),
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	fake.URL = fake.server.URL + "/"
	return fake
}

func (f *FakeOSF) serve(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	f.hits[r.URL.Path]++
	handler, ok := f.routes[r.URL.Path]
	f.mutex.Unlock()
	if !ok {
		http.Error(w, `{"errors": [{"detail": "Not found."}]}`, http.StatusNotFound)
		return
	}
	handler(w, r)
}

// Handle registers handler for requests to path, e.g.
// "/v2/registrations/abc12/".
func (f *FakeOSF) Handle(path string, handler http.HandlerFunc) {
	f.mutex.Lock()
	f.routes[path] = handler
	f.mutex.Unlock()
}

// HandleJSON registers a handler that always returns body as JSON.
func (f *FakeOSF) HandleJSON(path, body string) {
	f.Handle(path, HttpStringResponder(map[string]string{"Content-Type": "application/json"}, body))
}

// Hits returns the number of requests made to path.
func (f *FakeOSF) Hits(path string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.hits[path]
}

// TotalHits returns the number of requests made to any path.
func (f *FakeOSF) TotalHits() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	total := 0
	for _, count := range f.hits {
		total += count
	}
	return total
}

func (f *FakeOSF) Close() {
	f.server.Close()
}

// PagedList returns a handler that serves records as a paginated
// JSON:API list, perPage records at a time, using the page query
// param. Pagination meta goes under links.meta, the way the OSF API
// does it.
func PagedList(records []map[string]interface{}, perPage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageNumber := 1
		if value := r.URL.Query().Get("page"); value != "" {
			pageNumber, _ = strconv.Atoi(value)
		}
		start := (pageNumber - 1) * perPage
		end := start + perPage
		if start > len(records) {
			start = len(records)
		}
		if end > len(records) {
			end = len(records)
		}
		var next interface{}
		if end < len(records) {
			next = fmt.Sprintf("http://%s%s?page=%d", r.Host, r.URL.Path, pageNumber+1)
		}
		body := map[string]interface{}{
			"data": records[start:end],
			"links": map[string]interface{}{
				"next": next,
				"meta": map[string]interface{}{
					"total":    len(records),
					"per_page": perPage,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

// Records returns count records with ids "<prefix>-1" through
// "<prefix>-<count>".
func Records(prefix string, count int) []map[string]interface{} {
	records := make([]map[string]interface{}, count)
	for i := range records {
		records[i] = map[string]interface{}{
			"id":         fmt.Sprintf("%s-%d", prefix, i+1),
			"type":       prefix,
			"attributes": map[string]interface{}{"name": fmt.Sprintf("%s %d", prefix, i+1)},
		}
	}
	return records
}
