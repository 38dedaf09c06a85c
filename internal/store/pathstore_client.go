package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// pathstoreClient speaks the pathstore key/value HTTP API.
type pathstoreClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newPathstoreClient(baseURL, apiKey string) *pathstoreClient {
	return &pathstoreClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// nodeRequest is the body for PUT /kv/{key}.
type nodeRequest struct {
	Value     any    `json:"value"`
	MergeMode string `json:"merge_mode,omitempty"`
	Source    string `json:"source,omitempty"`
}

// nodeResponse is a node returned by GET /kv/{key} or a prefix scan.
type nodeResponse struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// statusError is a non-success HTTP answer from pathstore.
type statusError struct {
	op     string
	key    string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.op, e.key, e.status, e.body)
}

func (c *pathstoreClient) do(ctx context.Context, op, method, key, target string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", op, key, err)
		}
		return nil, Retryable(fmt.Errorf("%s %s: %w", op, key, err))
	}
	return resp, nil
}

// checkStatus turns an unexpected status into an error, marking 429 and
// 5xx answers retryable. The response body is closed on error.
func checkStatus(resp *http.Response, op, key string, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	err := &statusError{op: op, key: key, status: resp.StatusCode, body: string(respBody)}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Retryable(err)
	}
	return err
}

func (c *pathstoreClient) putNode(ctx context.Context, key string, req nodeRequest) error {
	resp, err := c.do(ctx, "put node", http.MethodPut, key, c.baseURL+"/kv/"+key, req)
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "put node", key, http.StatusOK, http.StatusCreated); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// getNode returns ErrNotFound when the key does not exist.
func (c *pathstoreClient) getNode(ctx context.Context, key string) (*nodeResponse, error) {
	resp, err := c.do(ctx, "get node", http.MethodGet, key, c.baseURL+"/kv/"+key, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if err := checkStatus(resp, "get node", key, http.StatusOK); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var node nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

func (c *pathstoreClient) deleteNode(ctx context.Context, key string, recursive bool) error {
	u := c.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	resp, err := c.do(ctx, "delete node", http.MethodDelete, key, u, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return ErrNotFound
	}
	if err := checkStatus(resp, "delete node", key, http.StatusOK, http.StatusNoContent); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// listChildren does a prefix scan under the given key.
func (c *pathstoreClient) listChildren(ctx context.Context, key string, limit int) ([]nodeResponse, error) {
	u := c.baseURL + "/kv/" + key + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	resp, err := c.do(ctx, "list children", http.MethodGet, key, u, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, "list children", key, http.StatusOK); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Nodes []nodeResponse `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	return result.Nodes, nil
}

func (c *pathstoreClient) close() {
	c.httpClient.CloseIdleConnections()
}
