// Package apiclient is the HTTP client the CLI uses to talk to a running
// shelf API server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/shelf/api"
	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/documents"
	"github.com/papercomputeco/shelf/pkg/storage"
)

// DefaultTimeout covers uploads of large files, which embed synchronously.
const DefaultTimeout = 5 * time.Minute

// Client calls the shelf API at Target.
type Client struct {
	target     *url.URL
	httpClient *http.Client
}

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
	Kind    string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (HTTP %d, %s)", e.Message, e.Status, e.Kind)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// ChunksResponse is returned by the chunk listing endpoint.
type ChunksResponse struct {
	DocumentID int64           `json:"document_id"`
	Chunks     []storage.Chunk `json:"chunks"`
	Count      int             `json:"count"`
}

// New returns a client for target, e.g. "http://localhost:8080".
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", target)
	}

	return &Client{
		target:     u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Upload sends the file at path.
func (c *Client) Upload(ctx context.Context, path string) (*documents.UploadResult, error) {
	out := &documents.UploadResult{}
	if err := c.sendFile(ctx, http.MethodPost, "/v1/documents", path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reupload replaces the content of document id with the file at path.
func (c *Client) Reupload(ctx context.Context, id int64, path string) (*documents.ReuploadResult, error) {
	out := &documents.ReuploadResult{}
	if err := c.sendFile(ctx, http.MethodPut, documentPath(id), path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns one page of documents.
func (c *Client) List(ctx context.Context, page, perPage int) (*documents.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	out := &documents.Page{}
	if err := c.do(ctx, http.MethodGet, "/v1/documents", q, nil, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*storage.Document, error) {
	out := &storage.Document{}
	if err := c.do(ctx, http.MethodGet, documentPath(id), nil, nil, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Chunks(ctx context.Context, id int64) (*ChunksResponse, error) {
	out := &ChunksResponse{}
	if err := c.do(ctx, http.MethodGet, documentPath(id)+"/chunks", nil, nil, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, documentPath(id), nil, nil, "", nil)
}

// Search ranks chunks for query.
func (c *Client) Search(ctx context.Context, query string, topK int) (*api.SearchResponse, error) {
	out := &api.SearchResponse{}
	if err := c.postJSON(ctx, "/v1/search", query, topK, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Chat asks a question. When generation fails the server still returns the
// fallback answer; it is decoded into the response alongside the error.
func (c *Client) Chat(ctx context.Context, query string, topK int) (*answer.ChatResponse, error) {
	out := &answer.ChatResponse{}
	if err := c.postJSON(ctx, "/v1/chat", query, topK, out); err != nil {
		if out.Answer != "" {
			return out, err
		}
		return nil, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path, query string, topK int, out any) error {
	req := api.QueryRequest{Query: query}
	if topK > 0 {
		req.TopK = &topK
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(body), "application/json", out)
}

func (c *Client) sendFile(ctx context.Context, method, path, file string, out any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}

	return c.do(ctx, method, path, nil, body, w.FormDataContentType(), out)
}

// do sends a request and decodes a JSON response into out. Error bodies are
// decoded into *Error; for other failures out is still filled when the body
// is a JSON object.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := *c.target
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to shelf API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw, out)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte, out any) error {
	apiErr := &Error{Status: status, Message: http.StatusText(status)}

	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = string(body.Kind)
		return apiErr
	}

	// Chat failures carry the full response rather than an error body.
	if out != nil {
		_ = json.Unmarshal(raw, out)
	}
	return apiErr
}

func documentPath(id int64) string {
	return "/v1/documents/" + strconv.FormatInt(id, 10)
}
