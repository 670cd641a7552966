package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
)

// ArchiveClientOptions holds the settings for NewArchiveClient.
type ArchiveClientOptions struct {
	S3Host      string
	UseSSL      bool
	Region      string
	MetadataURL string
	DetailsURL  string
	AccessKey   string
	SecretKey   string
	Timeout     time.Duration
}

// ArchiveClient uploads packages to the archive through its S3-like
// API and reads and writes item metadata through its metadata API.
type ArchiveClient struct {
	MetadataURL string
	DetailsURL  string
	accessKey   string
	secretKey   string
	s3Client    *minio.Client
	httpClient  *http.Client
	logger      *logging.Logger
}

// JSONPatchOp is one operation of an RFC 6902 JSON Patch, which is
// what the metadata API accepts.
type JSONPatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

type metadataResponse struct {
	Metadata map[string]interface{} `json:"metadata"`
	IsDark   bool                   `json:"is_dark"`
	Error    string                 `json:"error"`
}

type metadataWriteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewArchiveClient(opts ArchiveClientOptions, logger *logging.Logger) (*ArchiveClient, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	transport := &archiveTransport{
		base:      base,
		accessKey: opts.AccessKey,
		secretKey: opts.SecretKey,
	}
	// Empty credentials keep minio from signing requests. The
	// transport adds the archive's own auth header. Setting the
	// region keeps minio from asking for the bucket location, and
	// path-style lookup keeps item names out of the host name.
	s3Client, err := minio.New(opts.S3Host, &minio.Options{
		Creds:        credentials.NewStaticV4("", "", ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("Could not initialize archive S3 client: %w", err)
	}
	return &ArchiveClient{
		MetadataURL: opts.MetadataURL,
		DetailsURL:  opts.DetailsURL,
		accessKey:   opts.AccessKey,
		secretKey:   opts.SecretKey,
		s3Client:    s3Client,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		logger:      logger,
	}, nil
}

// GetItem returns the item with identifier. An item the archive has
// never seen comes back with Exists false. A dark item, or one the
// archive can't find right now, is an ItemLocateError.
func (client *ArchiveClient) GetItem(ctx context.Context, identifier string) (*service.ArchiveItem, error) {
	absoluteURL := joinURL(client.MetadataURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absoluteURL, nil)
	if err != nil {
		return nil, err
	}
	body, status, err := client.do(req)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, &common.ItemLocateError{Identifier: identifier, Message: fmt.Sprintf("metadata API returned status %d", status)}
	}
	if status >= 400 {
		return nil, common.NewHttpError(string(body), nil, http.MethodGet, absoluteURL, status)
	}
	parsed := &metadataResponse{}
	if err = json.Unmarshal(body, parsed); err != nil {
		return nil, &common.ParseError{URL: absoluteURL, Message: "invalid metadata response", Err: err}
	}
	if parsed.IsDark {
		return nil, &common.ItemLocateError{Identifier: identifier, Message: "item is dark"}
	}
	if parsed.Error != "" {
		return nil, &common.ItemLocateError{Identifier: identifier, Message: parsed.Error}
	}
	item := service.NewArchiveItem(identifier, joinURL(client.DetailsURL, identifier))
	if parsed.Metadata != nil {
		item.Exists = true
		item.Metadata = toMetadataRecord(parsed.Metadata)
	}
	return item, nil
}

// Upload sends the file at path to the item, creating the item if
// needed, with record as the item metadata. The object name is the
// file's base name.
func (client *ArchiveClient) Upload(ctx context.Context, identifier, path string, record service.MetadataRecord) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	objectName := filepath.Base(path)
	progress := logger.NewUploadProgressLogger(client.logger, identifier+"/"+objectName, stat.Size())
	info, err := client.s3Client.FPutObject(ctx, identifier, objectName, path, minio.PutObjectOptions{
		UserMetadata:     ArchiveUserMetadata(record),
		ContentType:      "application/zip",
		DisableMultipart: true,
		Progress:         progress,
	})
	if err != nil {
		return fmt.Errorf("uploading %s to %s: %w", path, identifier, err)
	}
	if info.Size != stat.Size() {
		return common.NewError(
			fmt.Sprintf("archive received %d of %d bytes of %s", info.Size, stat.Size(), objectName),
			nil, true)
	}
	client.logger.Infof("Uploaded %s (%d bytes) to %s", objectName, info.Size, identifier)
	return nil
}

// ModifyMetadata writes patch to the item's metadata. Keys the item
// already has are replaced, new keys are added, and nil values remove
// the key.
func (client *ArchiveClient) ModifyMetadata(ctx context.Context, identifier string, patch service.MetadataRecord) error {
	item, err := client.GetItem(ctx, identifier)
	if err != nil {
		return err
	}
	ops := BuildMetadataPatch(item.Metadata, patch)
	if len(ops) == 0 {
		return nil
	}
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("-target", "metadata")
	form.Set("-patch", string(opsJSON))
	form.Set("access", client.accessKey)
	form.Set("secret", client.secretKey)

	absoluteURL := joinURL(client.MetadataURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, absoluteURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, status, err := client.do(req)
	if err != nil {
		return err
	}
	result := &metadataWriteResponse{}
	decodeErr := json.Unmarshal(body, result)
	if status >= 400 || (!result.Success && !strings.Contains(result.Error, "no changes")) {
		message := fmt.Sprintf("metadata write to %s failed: %s", identifier, string(body))
		if decodeErr != nil {
			message = fmt.Sprintf("%s (response is not JSON: %v)", message, decodeErr)
		}
		return common.NewHttpError(message, decodeErr, http.MethodPost, absoluteURL, status)
	}
	return nil
}

// BuildMetadataPatch returns JSON Patch operations that turn current
// into current + patch, in key order.
func BuildMetadataPatch(current, patch service.MetadataRecord) []JSONPatchOp {
	ops := make([]JSONPatchOp, 0, len(patch))
	for _, key := range patch.Keys() {
		path := "/" + escapeJSONPointer(key)
		_, exists := current[key]
		value := patch[key]
		switch {
		case value == nil && exists:
			ops = append(ops, JSONPatchOp{Op: "remove", Path: path})
		case value == nil:
			continue
		case exists:
			ops = append(ops, JSONPatchOp{Op: "replace", Path: path, Value: value})
		default:
			ops = append(ops, JSONPatchOp{Op: "add", Path: path, Value: value})
		}
	}
	return ops
}

func (client *ArchiveClient) do(req *http.Request) ([]byte, int, error) {
	reqTime := time.Now()
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.String(), err)
	}
	defer resp.Body.Close()
	client.logger.Infof("%s %s returned %d in %s", req.Method, req.URL.String(), resp.StatusCode, time.Since(reqTime))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: reading body: %w", req.Method, req.URL.String(), err)
	}
	return body, resp.StatusCode, nil
}

func escapeJSONPointer(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "~", "~0"), "/", "~1")
}

// toMetadataRecord converts decoded JSON into a record whose values
// are strings, string lists or bools.
func toMetadataRecord(raw map[string]interface{}) service.MetadataRecord {
	record := make(service.MetadataRecord, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case []interface{}:
			list := make([]string, len(v))
			for i, item := range v {
				list[i] = fmt.Sprint(item)
			}
			record[key] = list
		case string, bool:
			record[key] = v
		case nil:
			continue
		default:
			record[key] = fmt.Sprint(v)
		}
	}
	return record
}
