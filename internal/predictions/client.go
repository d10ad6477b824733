// Package predictions fetches arrival predictions from the Rosario "cuando
// llega" service and parses them into records keyed by RouteStop.
package predictions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"rosariobus.dev/internal/logging"
)

const (
	DefaultBaseURL        = "https://ws.rosario.gob.ar/ubicaciones/public/cuandollega"
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxResults     = 2

	maxBodySize = 5 * 1024 * 1024
)

// ClientConfig configures a Client. Zero values fall back to the defaults.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxResults int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues one bulk request per agency polling cycle.
type Client struct {
	baseURL    string
	timeout    time.Duration
	maxResults int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config ClientConfig) *Client {
	c := &Client{
		baseURL:    config.BaseURL,
		timeout:    config.Timeout,
		maxResults: config.MaxResults,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	if c.maxResults <= 0 {
		c.maxResults = DefaultMaxResults
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.timeout)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(slog.String("component", "predictions_client"))
	return c
}

// newHTTPClient clones the default transport so proxy, dialer and keepalive
// defaults survive, and puts a hard timeout on every request.
func newHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Fetch requests predictions for every key in one call. Keys missing from the
// response are missing from the result; that is not an error.
func (c *Client) Fetch(ctx context.Context, agency string, keys []RouteStop) (map[RouteStop]*Record, error) {
	wanted := make(map[RouteStop]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	if len(wanted) == 0 {
		return map[RouteStop]*Record{}, nil
	}

	logger := logging.FromContextOr(ctx, c.logger)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL, err := c.requestURL(keys)
	if err != nil {
		return nil, transportError(agency, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, transportError(agency, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(agency, fmt.Errorf("failed to execute predictions request: %w", err))
	}
	defer logging.SafeCloseWithLogging(resp.Body, logger, "http_response_body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, transportError(agency, &StatusError{
			URL:        resp.Request.URL.Redacted(),
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, transportError(agency, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(body) > maxBodySize {
		return nil, malformedError(agency, fmt.Errorf("response exceeds size limit of %d bytes", maxBodySize))
	}

	records, err := Parse(body, wanted)
	if err != nil {
		return nil, malformedError(agency, err)
	}

	logger.Debug("fetched predictions",
		slog.String("agency", agency),
		slog.Int("requested", len(wanted)),
		slog.Int("returned", len(records)))

	return records, nil
}

// requestURL encodes every distinct stop as "parada" and every distinct route
// as "routeid", both sorted so the same set always yields the same URL.
func (c *Client) requestURL(keys []RouteStop) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}

	stops := make(map[string]struct{})
	routes := make(map[string]struct{})
	for _, k := range keys {
		stops[k.StopTag] = struct{}{}
		routes[k.RouteTag] = struct{}{}
	}

	q := u.Query()
	for _, s := range sortedKeys(stops) {
		q.Add("parada", s)
	}
	for _, r := range sortedKeys(routes) {
		q.Add("routeid", r)
	}
	q.Set("maxresults", strconv.Itoa(c.maxResults))
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
