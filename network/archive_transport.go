package network

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/CenterForOpenScience/pigeon-services/models/service"
)

const (
	amzMetaPrefix     = "x-amz-meta-"
	archiveMetaPrefix = "x-archive-meta"
)

var listKeyPattern = regexp.MustCompile(`^meta(\d{2})-(.+)$`)

// archiveTransport adapts minio's S3 requests to the archive's
// dialect of S3. The archive wants metadata in x-archive-meta headers
// rather than x-amz-meta, authenticates with a LOW header instead of
// a V4 signature, and creates the bucket (item) on first upload.
type archiveTransport struct {
	base      http.RoundTripper
	accessKey string
	secretKey string
}

func (t *archiveTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header = make(http.Header, len(req.Header)+2)
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, amzMetaPrefix) {
			// Set the map directly so Go doesn't re-canonicalize
			// the name. The archive keys are lower case.
			out.Header[archiveHeaderName(lower[len(amzMetaPrefix):])] = values
			continue
		}
		out.Header[name] = values
	}
	out.Header.Set("Authorization", fmt.Sprintf("LOW %s:%s", t.accessKey, t.secretKey))
	out.Header.Set("X-Amz-Auto-Make-Bucket", "1")
	return t.base.RoundTrip(out)
}

// archiveHeaderName turns a minio user metadata key into an archive
// header name. "title" becomes "x-archive-meta-title" and the list
// entry "meta01-osf_tags" becomes "x-archive-meta01-osf--tags".
// Underscores aren't safe in header names, and the archive reads
// "--" as "_".
func archiveHeaderName(key string) string {
	index := ""
	if match := listKeyPattern.FindStringSubmatch(key); match != nil {
		index = match[1]
		key = match[2]
	}
	return archiveMetaPrefix + index + "-" + strings.ReplaceAll(key, "_", "--")
}

// ArchiveUserMetadata flattens a metadata record into minio user
// metadata. List values become one entry per element, numbered
// meta00, meta01 and so on. Nil values and empty lists are left out.
func ArchiveUserMetadata(record service.MetadataRecord) map[string]string {
	userMetadata := make(map[string]string, len(record))
	for _, key := range record.Keys() {
		switch value := record[key].(type) {
		case nil:
			continue
		case string:
			userMetadata[key] = quoteHeaderValue(value)
		case bool:
			userMetadata[key] = fmt.Sprintf("%t", value)
		case []string:
			for i, item := range value {
				userMetadata[fmt.Sprintf("meta%02d-%s", i, key)] = quoteHeaderValue(item)
			}
		default:
			userMetadata[key] = quoteHeaderValue(fmt.Sprint(value))
		}
	}
	return userMetadata
}

// quoteHeaderValue wraps values that can't travel in an HTTP header
// as uri(<percent-encoded value>), which the archive decodes.
func quoteHeaderValue(value string) string {
	for _, r := range value {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			return "uri(" + strings.ReplaceAll(url.QueryEscape(value), "+", "%20") + ")"
		}
	}
	return value
}
