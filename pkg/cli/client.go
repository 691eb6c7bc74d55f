package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// clientOptions holds the connection flags shared by all subcommands.
type clientOptions struct {
	host   string
	token  string
	output string
}

func (o *clientOptions) jsonOutput() bool {
	return strings.EqualFold(o.output, "json")
}

// apiClient is a thin HTTP client over the audit admin API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(opts *clientOptions) *apiClient {
	return &apiClient{
		base:  strings.TrimSuffix(opts.host, "/"),
		token: opts.token,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// getJSON performs a GET and decodes the JSON response into dst.
func (c *apiClient) getJSON(path string, query url.Values, dst any) error {
	return c.doJSON(http.MethodGet, path, query, nil, dst)
}

// postJSON performs a POST with a JSON body and decodes the response.
func (c *apiClient) postJSON(path string, body, dst any) error {
	return c.doJSON(http.MethodPost, path, nil, body, dst)
}

func (c *apiClient) doJSON(method, path string, query url.Values, body, dst any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	resp, err := c.do(method, path, query, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// stream performs a GET and copies the raw response body to w.
func (c *apiClient) stream(path string, query url.Values, w io.Writer) error {
	resp, err := c.do(http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *apiClient) do(method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close() //nolint:errcheck
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error %d: %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
