package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// HTTPClient implements CollectionClient using the portal HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	session    Session
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). The session's token, user and role are
// sent as headers on every request.
func NewHTTPClient(baseURL string, session Session) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Collection reads ---

func (c *HTTPClient) List(ctx context.Context, res *model.Resource, req *ListRequest) (*ListResponse, error) {
	if err := req.Criteria.Validate(); err != nil {
		return nil, err
	}
	path := res.Path + "?" + listQuery(req).Encode()
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeList(body, res, req.Criteria)
}

// listQuery builds the collection query string. Empty filter values are
// left out so the backend never sees "" as a literal filter.
func listQuery(req *ListRequest) url.Values {
	q := url.Values{}
	q.Set(model.KeyPage, strconv.Itoa(req.Criteria.Page))
	q.Set(model.KeyLimit, strconv.Itoa(req.Criteria.Limit))
	if s := strings.TrimSpace(req.Criteria.Search); s != "" {
		q.Set(model.KeySearch, s)
	}
	active := req.Criteria.Active()
	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, active[k])
	}
	if !req.Sort.IsZero() {
		q.Set("sortBy", req.Sort.Key)
		q.Set("sortOrder", string(req.Sort.Direction))
	}
	return q
}

func (c *HTTPClient) Stats(ctx context.Context, res *model.Resource) (*model.Stats, error) {
	body, err := c.do(ctx, http.MethodGet, res.Path+"/stats", nil)
	if err != nil {
		return nil, err
	}
	return NormalizeStats(body, res)
}

// --- Single-record endpoints ---

func (c *HTTPClient) Get(ctx context.Context, res *model.Resource, id string) (model.Record, error) {
	body, err := c.do(ctx, http.MethodGet, recordPath(res, id), nil)
	if err != nil {
		return nil, err
	}
	return NormalizeRecord(body, res)
}

func (c *HTTPClient) Create(ctx context.Context, res *model.Resource, fields map[string]any) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPost, res.Path, fields)
	if err != nil {
		return nil, err
	}
	return NormalizeRecord(body, res)
}

func (c *HTTPClient) Update(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error) {
	body, err := c.do(ctx, http.MethodPatch, recordPath(res, id), fields)
	if err != nil {
		return nil, err
	}
	return NormalizeRecord(body, res)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, res *model.Resource, id, status, notes string) (model.Record, error) {
	payload := map[string]any{"status": status}
	if notes != "" {
		payload["notes"] = notes
	}
	body, err := c.do(ctx, http.MethodPatch, recordPath(res, id), payload)
	if err != nil {
		return nil, err
	}
	return NormalizeRecord(body, res)
}

func (c *HTTPClient) Delete(ctx context.Context, res *model.Resource, id string) error {
	body, err := c.do(ctx, http.MethodDelete, recordPath(res, id), nil)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		return checkSuccess(m)
	}
	return nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func recordPath(res *model.Resource, id string) string {
	return res.Path + "/" + url.PathEscape(id)
}

// doJSON performs a request and decodes the JSON response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// do performs an HTTP request with an optional JSON body and returns the raw
// response body. Non-2xx responses become *APIError; requests that got no
// response become *NetworkError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if c.session.User != "" {
		req.Header.Set("X-Portal-User", c.session.User)
	}
	if c.session.Role != "" {
		req.Header.Set("X-Portal-Role", string(c.session.Role))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "reading response", Err: err}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp map[string]any
		if json.Unmarshal(respBody, &errResp) == nil {
			apiErr.Message = serverMessage(errResp)
			apiErr.Fields = serverFieldErrors(errResp)
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("The server returned an error (%d %s).", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, apiErr
	}

	return respBody, nil
}
