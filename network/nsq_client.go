package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/constants"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
)

type NSQClient struct {
	URL        string
	httpClient *http.Client
}

// Formally define this so we can fake it in tests.
type NSQClientInterface interface {
	EnqueueArchive(ctx context.Context, guid string) error
	EnqueueMetadata(ctx context.Context, guid string, metadata service.MetadataRecord) error
}

// MetadataJob is the body of a message on the metadata topic.
type MetadataJob struct {
	GUID     string                 `json:"guid"`
	Metadata service.MetadataRecord `json:"metadata"`
}

// NewNSQClient returns a new NSQ client that will connect to the NSQ
// server at the specified url. The URL is typically available through
// Config.NsqURL, and usually ends with :4151. This is the URL to
// which we post items we want to queue, and from which our workers
// read.
//
// Note that this client provides write access to queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{
		URL:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EnqueueArchive queues a registration guid for archiving.
func (client *NSQClient) EnqueueArchive(ctx context.Context, guid string) error {
	return client.Enqueue(ctx, constants.TopicArchive, []byte(guid))
}

// EnqueueMetadata queues a metadata sync for a registration.
func (client *NSQClient) EnqueueMetadata(ctx context.Context, guid string, metadata service.MetadataRecord) error {
	body, err := json.Marshal(&MetadataJob{GUID: guid, Metadata: metadata})
	if err != nil {
		return err
	}
	return client.Enqueue(ctx, constants.TopicMetadata, body)
}

// Enqueue posts data to NSQ, which essentially means putting it into
// a work topic.
func (client *NSQClient) Enqueue(ctx context.Context, topic string, data []byte) error {
	pubURL := fmt.Sprintf("%s/pub?topic=%s", client.URL, url.QueryEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pubURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %w", err)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}

// ParseMetadataJob decodes the body of a metadata topic message.
func ParseMetadataJob(body []byte) (*MetadataJob, error) {
	job := &MetadataJob{}
	if err := json.Unmarshal(body, job); err != nil {
		return nil, err
	}
	if job.GUID == "" {
		return nil, fmt.Errorf("metadata job has no guid")
	}
	return job, nil
}
