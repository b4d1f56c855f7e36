package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chapter-relay/pkg/httputil"
	"chapter-relay/pkg/logger"
)

// PostJSON sends body as JSON and returns the response once its status is
// 2xx. The caller closes the body.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req, headers)
}

// GetBody performs a GET and returns the full body of a 2xx response.
func GetBody(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := do(client, req, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Bearer returns an Authorization header map for token; empty when token is.
func Bearer(token string) map[string]string {
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func do(client *http.Client, req *http.Request, headers map[string]string) (*http.Response, error) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Error("upstream request failed", "error", err, "method", req.Method, "url", req.URL.Redacted())
		return nil, err
	}
	if err := httputil.CheckStatus(resp); err != nil {
		resp.Body.Close()
		logger.Error("upstream request rejected", "error", err, "method", req.Method, "url", req.URL.Redacted())
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}
