package testutil

import (
	"io"
	"net/http"
	"os"
)

// These functions allow us to mock http responses from the OSF API,
// DataCite and the archive.

var EmptyHeaders = make(map[string]string, 0)

// Returns an http handler function that returns the contents
// of the specified file, along with the specified headers.
func HttpFileResponder(headers map[string]string, filePath string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w, headers)
		f, err := os.Open(filePath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that returns the specified
// string, along with the specified headers.
func HttpStringResponder(headers map[string]string, data string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w, headers)
		w.Write([]byte(data))
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that always responds with status
// and body.
func HttpStatusResponder(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	if headers != nil {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
	}
}
