package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go-social/utils/errors"
)

// Client issues requests against the named REST collections of the
// backend (users, posts, groups and their sub-resources). One request
// per call: no retry, no timeout, no caching. Non-2xx responses come
// back as *errors.APIError.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// New builds a client for the given base URL. token may be nil; when
// set, its result is attached as a bearer token on every request.
func New(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		token:   token,
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	reader, err := encodeBody(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, reader, "application/json", out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	reader, err := encodeBody(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, reader, "application/json", out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// PatchMultipart sends a single file as a multipart form, used by the
// group avatar endpoint.
func (c *Client) PatchMultipart(ctx context.Context, path, field, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, path, &buf, writer.FormDataContentType(), out)
}

func encodeBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "NETWORK_ERROR", "failed to build request", errors.ErrNetwork.Status)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "NETWORK_ERROR", "request failed", errors.ErrNetwork.Status)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "NETWORK_ERROR", "failed to decode response", errors.ErrNetwork.Status)
	}
	return nil
}

// decodeError prefers the backend's own APIError payload so taxonomy
// codes like ACCOUNT_LOCKED survive the wire; anything else becomes a
// NETWORK_ERROR with the body passed through verbatim.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var apiErr errors.APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != "" {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}
	return errors.NewAPIError("NETWORK_ERROR", message, resp.StatusCode)
}
