package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/op/go-logging"
)

// DataCiteClient reads DOI metadata from the DataCite MDS API.
type DataCiteClient struct {
	HostURL    string
	Username   string
	Password   string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewDataCiteClient(hostURL, username, password string, timeout time.Duration, logger *logging.Logger) *DataCiteClient {
	return &DataCiteClient{
		HostURL:    hostURL,
		Username:   username,
		Password:   password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Metadata returns the DataCite XML for doi. A DOI that DataCite
// doesn't know comes back as a PIDNotFoundError.
func (client *DataCiteClient) Metadata(ctx context.Context, doi string) ([]byte, error) {
	absoluteURL := joinURL(client.HostURL, "metadata/"+escapeDOI(doi))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absoluteURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")
	if client.Username != "" {
		req.SetBasicAuth(client.Username, client.Password)
	}
	reqTime := time.Now()
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", absoluteURL, err)
	}
	defer resp.Body.Close()
	client.logger.Infof("GET %s returned %d in %s", absoluteURL, resp.StatusCode, time.Since(reqTime))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", absoluteURL, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &common.PIDNotFoundError{DOI: doi}
	case resp.StatusCode >= 400:
		return nil, common.NewHttpError(
			fmt.Sprintf("DataCite returned status %d: %s", resp.StatusCode, string(body)),
			nil, http.MethodGet, absoluteURL, resp.StatusCode)
	}
	return body, nil
}

// escapeDOI escapes each segment of a DOI but keeps the slashes,
// which DataCite expects in the path.
func escapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
