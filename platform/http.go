package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pithecene-io/canary/iox"
	"github.com/pithecene-io/canary/types"
)

// Defaults for HTTPClient configuration.
const (
	DefaultBaseURL           = "https://api.apify.com"
	DefaultRequestsPerSecond = 10
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPageSize          = 1000
)

// StatisticsRecordKey is the key-value store record holding crawler statistics.
const StatisticsRecordKey = "SDK_CRAWLER_STATISTICS_0"

// maxErrorBody bounds how much of an error response is kept in StatusError.
const maxErrorBody = 512

// Config configures the REST client.
type Config struct {
	// BaseURL is the API root (default https://api.apify.com).
	BaseURL string
	// Token is the API token sent as a bearer token.
	Token string
	// RequestsPerSecond caps the request rate across all scenarios (default 10).
	RequestsPerSecond float64
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
	// PageSize is the dataset items page size (default 1000).
	PageSize int
}

// HTTPClient implements Client against the platform REST API (v2).
type HTTPClient struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a REST client. Returns an error if the base URL is invalid.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("platform: invalid base URL: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	burst := max(1, int(cfg.RequestsPerSecond))
	return &HTTPClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}, nil
}

// runData is the run object returned by the API.
type runData struct {
	ID                     string `json:"id"`
	ActID                  string `json:"actId"`
	ActorTaskID            string `json:"actorTaskId"`
	Status                 string `json:"status"`
	DefaultDatasetID       string `json:"defaultDatasetId"`
	DefaultKeyValueStoreID string `json:"defaultKeyValueStoreId"`
	BuildNumber            string `json:"buildNumber"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// Submit starts an actor or task run.
func (c *HTTPClient) Submit(ctx context.Context, desc types.JobDescriptor) (*types.JobHandle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	path := "/v2/acts/" + escapeID(desc.ActorID) + "/runs"
	if desc.TaskID != "" {
		path = "/v2/actor-tasks/" + escapeID(desc.TaskID) + "/runs"
	}

	q := url.Values{}
	if desc.Options.Build != "" {
		q.Set("build", desc.Options.Build)
	}
	if desc.Options.MemoryMbytes > 0 {
		q.Set("memory", strconv.Itoa(desc.Options.MemoryMbytes))
	}
	if desc.Options.TimeoutSecs > 0 {
		q.Set("timeout", strconv.Itoa(desc.Options.TimeoutSecs))
	}

	input := desc.Input
	if input == nil {
		input = map[string]any{}
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("platform: marshal input: %w", err)
	}

	var out envelope[runData]
	if err := c.doJSON(ctx, http.MethodPost, path, q, body, "submit", &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, errors.New("platform: submit response missing run id")
	}

	return &types.JobHandle{
		RunID:           out.Data.ID,
		ActorID:         out.Data.ActID,
		TaskID:          out.Data.ActorTaskID,
		DatasetID:       out.Data.DefaultDatasetID,
		KeyValueStoreID: out.Data.DefaultKeyValueStoreID,
		BuildNumber:     out.Data.BuildNumber,
	}, nil
}

// Status returns the run's current status.
func (c *HTTPClient) Status(ctx context.Context, h *types.JobHandle) (types.JobStatus, error) {
	var out envelope[runData]
	if err := c.doJSON(ctx, http.MethodGet, "/v2/actor-runs/"+h.RunID, nil, nil, "status", &out); err != nil {
		return "", err
	}
	return types.ParseJobStatus(out.Data.Status), nil
}

// Cancel aborts the run.
func (c *HTTPClient) Cancel(ctx context.Context, h *types.JobHandle) error {
	return c.doJSON(ctx, http.MethodPost, "/v2/actor-runs/"+h.RunID+"/abort", nil, nil, "cancel", nil)
}

// FetchLog returns the full run log.
func (c *HTTPClient) FetchLog(ctx context.Context, h *types.JobHandle) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/v2/logs/"+h.RunID, nil, nil, "log")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchDatasetInfo returns aggregate info of the run's default dataset.
func (c *HTTPClient) FetchDatasetInfo(ctx context.Context, h *types.JobHandle) (*types.DatasetInfo, error) {
	var out envelope[types.Record]
	if err := c.doJSON(ctx, http.MethodGet, "/v2/datasets/"+h.DatasetID, nil, nil, "dataset info", &out); err != nil {
		return nil, err
	}
	info := &types.DatasetInfo{ID: h.DatasetID, Raw: out.Data}
	if id, ok := out.Data["id"].(string); ok && id != "" {
		info.ID = id
	}
	info.CleanItemCount, _ = types.ToInt64(out.Data["cleanItemCount"])
	info.ItemCount, _ = types.ToInt64(out.Data["itemCount"])
	return info, nil
}

// FetchDatasetItems pages through the dataset until a short page is returned.
func (c *HTTPClient) FetchDatasetItems(ctx context.Context, h *types.JobHandle) ([]types.Record, error) {
	var items []types.Record
	for offset := 0; ; {
		q := url.Values{}
		q.Set("clean", "true")
		q.Set("format", "json")
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(c.config.PageSize))

		var page []types.Record
		if err := c.doJSON(ctx, http.MethodGet, "/v2/datasets/"+h.DatasetID+"/items", q, nil, "dataset items", &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
		offset += len(page)
		if len(page) < c.config.PageSize {
			return items, nil
		}
	}
}

// FetchStatistics reads the crawler statistics record from the run's key-value store.
func (c *HTTPClient) FetchStatistics(ctx context.Context, h *types.JobHandle) (*types.Statistics, error) {
	var raw types.Record
	path := "/v2/key-value-stores/" + h.KeyValueStoreID + "/records/" + StatisticsRecordKey
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, "statistics", &raw); err != nil {
		return nil, err
	}
	stats := &types.Statistics{Raw: raw}
	stats.RequestsRetries, _ = types.ToInt64(raw["requestsRetries"])
	stats.CrawlerRuntimeMillis, _ = types.ToInt64(raw["crawlerRuntimeMillis"])
	return stats, nil
}

// doJSON performs a request and decodes a JSON response into out (if non-nil).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, q url.Values, body []byte, op string, out any) error {
	data, err := c.do(ctx, method, path, q, body, op)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// do performs a single rate-limited request and returns the body on 2xx.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body []byte, op string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	u := c.config.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer iox.DiscardClose(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Op: op, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// escapeID converts "user/actor" names to the API's "user~actor" form.
func escapeID(id string) string {
	return url.PathEscape(strings.ReplaceAll(id, "/", "~"))
}

// Verify HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
