package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/registry"
	"github.com/op/go-logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultMaxPages is the most pages FetchAll will read from one list
// unless the client is configured otherwise.
const DefaultMaxPages = 1000

// RegistryClient talks to the OSF JSON:API and to the OSF files
// service. It retries rate-limited requests according to its
// RetryPolicy and walks paginated lists.
type RegistryClient struct {
	APIURL          string
	FilesURL        string
	Token           string
	PageConcurrency int
	MaxPages        int
	Retry           RetryPolicy
	httpClient      *http.Client
	limiter         *rate.Limiter
	logger          *logging.Logger
}

// RegistryClientOptions holds the settings for NewRegistryClient.
// These usually come straight from common.Config.
type RegistryClientOptions struct {
	APIURL          string
	FilesURL        string
	Token           string
	PageConcurrency int
	MaxPages        int
	ThrottleRPS     float64
	Timeout         time.Duration
	Retry           RetryPolicy
}

// NewRegistryClient creates a new registry client. If ThrottleRPS is
// greater than zero, the client never sends more than that many
// requests per second.
func NewRegistryClient(opts RegistryClientOptions, logger *logging.Logger) *RegistryClient {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
		IdleConnTimeout:   90 * time.Second,
	}
	client := &RegistryClient{
		APIURL:          opts.APIURL,
		FilesURL:        opts.FilesURL,
		Token:           opts.Token,
		PageConcurrency: opts.PageConcurrency,
		MaxPages:        opts.MaxPages,
		Retry:           opts.Retry,
		httpClient:      &http.Client{Transport: transport, Timeout: opts.Timeout},
		logger:          logger,
	}
	if client.PageConcurrency < 1 {
		client.PageConcurrency = 1
	}
	if client.MaxPages < 1 {
		client.MaxPages = DefaultMaxPages
	}
	if opts.ThrottleRPS > 0 {
		burst := int(opts.ThrottleRPS)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(opts.ThrottleRPS), burst)
	}
	return client
}

// BuildURL joins relativeURL onto the API root. For example, if
// client.APIURL is "https://api.osf.io/", then
// client.BuildURL("v2/registrations/abc12/") returns
// "https://api.osf.io/v2/registrations/abc12/".
func (client *RegistryClient) BuildURL(relativeURL string) string {
	return joinURL(client.APIURL, relativeURL)
}

// FilesZipURL returns the URL that streams a zip of all of a
// registration's osfstorage files.
func (client *RegistryClient) FilesZipURL(guid string) string {
	return joinURL(client.FilesURL, fmt.Sprintf("v1/resources/%s/providers/osfstorage/?zip=", guid))
}

// Registration returns the registration document with the embeds
// the archive metadata needs.
func (client *RegistryClient) Registration(ctx context.Context, guid string) (*registry.RegistrationDocument, error) {
	params := url.Values{}
	for _, embed := range []string{"parent", "children", "provider", "identifiers", "license", "registration_schema"} {
		params.Add("embed", embed)
	}
	params.Set("related_counts", "true")
	params.Set("version", "2.20")
	absoluteURL := client.BuildURL(fmt.Sprintf("v2/registrations/%s/?%s", url.PathEscape(guid), params.Encode()))
	data, err := client.getBytes(ctx, absoluteURL)
	if err != nil {
		return nil, err
	}
	doc, err := registry.RegistrationFromJSON(data)
	if err != nil {
		return nil, &common.ParseError{URL: absoluteURL, Message: "invalid registration document", Err: err}
	}
	if doc.Data.ID == "" {
		return nil, &common.ParseError{URL: absoluteURL, Message: "registration document has no id"}
	}
	return doc, nil
}

// Get fetches one JSON document and decodes it into v.
func (client *RegistryClient) Get(ctx context.Context, absoluteURL string, v interface{}) error {
	data, err := client.getBytes(ctx, absoluteURL)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return &common.ParseError{URL: absoluteURL, Message: "invalid JSON", Err: err}
	}
	return nil
}

// FetchAll returns every record of a paginated list. It reads the
// first page, works out how many pages there are from the pagination
// meta, then fetches the rest concurrently. Records come back in page
// order. If any page fails, FetchAll cancels the others and returns
// the first error. Pagination meta that contradicts the next link, or
// that promises more than MaxPages pages, is a ParseError.
func (client *RegistryClient) FetchAll(ctx context.Context, absoluteURL string) ([]json.RawMessage, error) {
	first, err := client.getPage(ctx, absoluteURL)
	if err != nil {
		return nil, err
	}
	if !first.HasNext() {
		if first.Data == nil {
			return make([]json.RawMessage, 0), nil
		}
		return first.Data, nil
	}
	pageCount, ok := first.PageCount()
	if !ok {
		return nil, &common.ParseError{URL: absoluteURL, Message: "next link without total and per_page"}
	}
	total, _ := first.Total()
	if pageCount < 2 {
		return nil, &common.ParseError{
			URL:     absoluteURL,
			Message: fmt.Sprintf("next link but pagination meta says %d records fit on %d page(s)", total, pageCount),
		}
	}
	if pageCount > client.MaxPages {
		return nil, &common.ParseError{
			URL:     absoluteURL,
			Message: fmt.Sprintf("list has %d pages, more than the limit of %d", pageCount, client.MaxPages),
		}
	}

	pageURLs := make([]string, pageCount+1)
	for pageNumber := 2; pageNumber <= pageCount; pageNumber++ {
		if pageURLs[pageNumber], err = withPageNumber(absoluteURL, pageNumber); err != nil {
			return nil, &common.ParseError{URL: absoluteURL, Message: "bad page URL", Err: err}
		}
	}

	pages := make([][]json.RawMessage, pageCount)
	pages[0] = first.Data
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(client.PageConcurrency)
	for pageNumber := 2; pageNumber <= pageCount; pageNumber++ {
		pageNumber := pageNumber
		pageURL := pageURLs[pageNumber]
		g.Go(func() error {
			page, err := client.getPage(gctx, pageURL)
			if err != nil {
				return err
			}
			pages[pageNumber-1] = page.Data
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	records := make([]json.RawMessage, 0, total)
	for _, page := range pages {
		records = append(records, page...)
	}
	if len(records) != total {
		return nil, &common.ParseError{
			URL:     absoluteURL,
			Message: fmt.Sprintf("API advertised %d records but returned %d", total, len(records)),
		}
	}
	return records, nil
}

// Download streams the response body of absoluteURL into the file at
// path and returns the number of bytes written.
func (client *RegistryClient) Download(ctx context.Context, absoluteURL, path string) (int64, error) {
	resp, err := client.send(ctx, http.MethodGet, absoluteURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err != nil {
		return written, fmt.Errorf("GET %s: copying body to %s: %w", absoluteURL, path, err)
	}
	return written, closeErr
}

// NotifyArchived tells the OSF that a registration now lives in the
// archive at archiveURL.
func (client *RegistryClient) NotifyArchived(ctx context.Context, guid, archiveURL string) error {
	absoluteURL := client.BuildURL(fmt.Sprintf("_/ia/%s/done/", url.PathEscape(guid)))
	body, err := json.Marshal(map[string]string{"ia_url": archiveURL})
	if err != nil {
		return err
	}
	resp, err := client.send(ctx, http.MethodPost, absoluteURL, body)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (client *RegistryClient) getPage(ctx context.Context, absoluteURL string) (*registry.Page, error) {
	data, err := client.getBytes(ctx, absoluteURL)
	if err != nil {
		return nil, err
	}
	page, err := registry.PageFromJSON(data)
	if err != nil {
		return nil, &common.ParseError{URL: absoluteURL, Message: "invalid list page", Err: err}
	}
	return page, nil
}

func (client *RegistryClient) getBytes(ctx context.Context, absoluteURL string) ([]byte, error) {
	resp, err := client.send(ctx, http.MethodGet, absoluteURL, nil)
	if err != nil {
		return nil, err
	}
	// Read the whole body and close it, or the connection stays
	// open indefinitely.
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", absoluteURL, err)
	}
	return data, nil
}

// NewJSONRequest returns a new request with headers indicating JSON
// request and response formats, plus the bearer token if we have one.
func (client *RegistryClient) NewJSONRequest(ctx context.Context, method, absoluteURL string, requestData io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, absoluteURL, requestData)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	if client.Token != "" {
		req.Header.Add("Authorization", "Bearer "+client.Token)
	}
	return req, nil
}

// send issues a request, retrying per client.Retry. On success it
// returns the response with its body still open. Any other status
// >= 400 comes back as an UpstreamHTTPError.
func (client *RegistryClient) send(ctx context.Context, method, absoluteURL string, body []byte) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		if client.limiter != nil {
			if err := client.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		var requestData io.Reader
		if body != nil {
			requestData = bytes.NewReader(body)
		}
		request, err := client.NewJSONRequest(ctx, method, absoluteURL, requestData)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, absoluteURL, err)
		}
		reqTime := time.Now()
		resp, err := client.httpClient.Do(request)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, absoluteURL, err)
		}
		client.logger.Infof("%s %s returned %d in %s", method, absoluteURL, resp.StatusCode, time.Since(reqTime))

		if client.Retry.ShouldRetry(resp.StatusCode) {
			drain(resp)
			if client.Retry.Exhausted(attempt) {
				return nil, &common.RateLimitedError{URL: absoluteURL, Attempts: attempt}
			}
			wait := client.Retry.WaitFor(resp.Header.Get("Retry-After"), time.Now())
			client.logger.Warningf("%s %s: status %d, retrying in %s (attempt %d)",
				method, absoluteURL, resp.StatusCode, wait, attempt)
			if err = sleepContext(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &common.UpstreamHTTPError{
				Method:     method,
				URL:        absoluteURL,
				StatusCode: resp.StatusCode,
				Body:       string(data),
			}
		}
		return resp, nil
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func joinURL(base, relativeURL string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(relativeURL, "/")
}

// withPageNumber sets the page query param, keeping the rest of the
// query intact.
func withPageNumber(absoluteURL string, pageNumber int) (string, error) {
	u, err := url.Parse(absoluteURL)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("page", strconv.Itoa(pageNumber))
	u.RawQuery = query.Encode()
	return u.String(), nil
}
