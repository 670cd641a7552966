package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// FakeArchiveUpload records one PUT to the fake archive's S3 API.
type FakeArchiveUpload struct {
	Item    string
	Object  string
	Headers http.Header
	Body    []byte
}

// FakeArchivePatch records one metadata write.
type FakeArchivePatch struct {
	Item string
	Form url.Values
	Ops  []map[string]interface{}
}

// FakeArchive stands in for both the archive's S3-like upload API and
// its metadata API. The metadata API lives under /metadata/.
type FakeArchive struct {
	URL     string
	Host    string
	server  *httptest.Server
	mutex   sync.Mutex
	items   map[string]map[string]interface{}
	dark    map[string]int
	reply   string
	Uploads []FakeArchiveUpload
	Patches []FakeArchivePatch
}

func NewFakeArchive() *FakeArchive {
	fake := &FakeArchive{
		items: make(map[string]map[string]interface{}),
		dark:  make(map[string]int),
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	fake.URL = fake.server.URL
	fake.Host = strings.TrimPrefix(fake.server.URL, "http://")
	return fake
}

func (f *FakeArchive) Close() {
	f.server.Close()
}

// MetadataURL returns the root of the fake metadata API.
func (f *FakeArchive) MetadataURL() string {
	return f.URL + "/metadata/"
}

// SetItem creates or replaces an item's metadata.
func (f *FakeArchive) SetItem(identifier string, metadata map[string]interface{}) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.items[identifier] = metadata
}

// Item returns a copy of an item's metadata, or nil.
func (f *FakeArchive) Item(identifier string) map[string]interface{} {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	item, ok := f.items[identifier]
	if !ok {
		return nil
	}
	dup := make(map[string]interface{}, len(item))
	for key, value := range item {
		dup[key] = value
	}
	return dup
}

// GoDark makes the next count metadata reads of identifier report
// the item as dark.
func (f *FakeArchive) GoDark(identifier string, count int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.dark[identifier] = count
}

// SetWriteReply makes every later metadata write answer 200 with body
// instead of applying the patch.
func (f *FakeArchive) SetWriteReply(body string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.reply = body
}

func (f *FakeArchive) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/metadata/") {
		identifier := strings.TrimPrefix(r.URL.Path, "/metadata/")
		switch r.Method {
		case http.MethodGet:
			f.getMetadata(w, identifier)
		case http.MethodPost:
			f.postMetadata(w, r, identifier)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if r.Method == http.MethodPut {
		f.put(w, r)
		return
	}
	w.WriteHeader(http.StatusNotImplemented)
}

func (f *FakeArchive) getMetadata(w http.ResponseWriter, identifier string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if f.dark[identifier] > 0 {
		f.dark[identifier]--
		w.Write([]byte(`{"is_dark": true}`))
		return
	}
	item, ok := f.items[identifier]
	if !ok {
		w.Write([]byte(`{}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"metadata": item})
}

func (f *FakeArchive) postMetadata(w http.ResponseWriter, r *http.Request, identifier string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ops := make([]map[string]interface{}, 0)
	if err := json.Unmarshal([]byte(r.PostForm.Get("-patch")), &ops); err != nil {
		http.Error(w, `{"success": false, "error": "bad patch"}`, http.StatusBadRequest)
		return
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Patches = append(f.Patches, FakeArchivePatch{Item: identifier, Form: r.PostForm, Ops: ops})
	if f.reply != "" {
		w.Write([]byte(f.reply))
		return
	}
	item, ok := f.items[identifier]
	if !ok {
		http.Error(w, `{"success": false, "error": "item does not exist"}`, http.StatusBadRequest)
		return
	}
	for _, op := range ops {
		key := strings.TrimPrefix(op["path"].(string), "/")
		switch op["op"] {
		case "add", "replace":
			item[key] = op["value"]
		case "remove":
			delete(item, key)
		}
	}
	w.Write([]byte(`{"success": true}`))
}

func (f *FakeArchive) put(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if len(parts) != 2 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Uploads = append(f.Uploads, FakeArchiveUpload{
		Item:    parts[0],
		Object:  parts[1],
		Headers: r.Header.Clone(),
		Body:    body,
	})
	if _, ok := f.items[parts[0]]; !ok {
		f.items[parts[0]] = map[string]interface{}{"identifier": parts[0]}
	}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}
