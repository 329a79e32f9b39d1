package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
)

// envelope is implemented by every response type through the embedded
// response.CommonResponse.
type envelope interface {
	Err() error
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, out envelope) error {
	var body io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return c.doRequest(httpReq, out)
}

func (c *Client) doRequest(req *http.Request, out envelope) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse decodes the JSON body into out and surfaces a failed envelope
// as a coded error.
func decodeResponse(resp *http.Response, out envelope) error {
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if err := out.Err(); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}
	return nil
}
