// Package assetclient is a typed HTTP client for the asset API.
package assetclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"it-asset-manager-api/pkg/importer"
	"it-asset-manager-api/pkg/models"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is an APIError with status 409
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client talks to one API base URL
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for baseURL, e.g. "http://localhost:8080"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches every asset
func (c *Client) List(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := c.doJSON(ctx, http.MethodGet, "/assets", nil, &assets); err != nil {
		return nil, err
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	return assets, nil
}

// Get fetches one asset
func (c *Client) Get(ctx context.Context, id int64) (models.Asset, error) {
	var a models.Asset
	err := c.doJSON(ctx, http.MethodGet, assetPath(id), nil, &a)
	return a, err
}

// Create posts a new asset
func (c *Client) Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error) {
	var a models.Asset
	err := c.doJSON(ctx, http.MethodPost, "/assets", req, &a)
	return a, err
}

// Update sends the supplied fields of req for asset id
func (c *Client) Update(ctx context.Context, id int64, req models.UpdateAssetRequest) (models.Asset, error) {
	var a models.Asset
	err := c.doJSON(ctx, http.MethodPut, assetPath(id), req, &a)
	return a, err
}

// Delete removes asset id
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, assetPath(id), nil, nil)
}

// ImportExcel uploads a workbook to the import endpoint
func (c *Client) ImportExcel(ctx context.Context, filename string, r io.Reader, dryRun bool) (importer.ImportSummary, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if dryRun {
		if err := writer.WriteField("dry_run", "true"); err != nil {
			return importer.ImportSummary{}, err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return importer.ImportSummary{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return importer.ImportSummary{}, err
	}
	if err := writer.Close(); err != nil {
		return importer.ImportSummary{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/imports/excel", body)
	if err != nil {
		return importer.ImportSummary{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		Data importer.ImportSummary `json:"data"`
	}
	err = c.do(req, &out)
	return out.Data, err
}

// ExportExcel downloads the inventory workbook into w
func (c *Client) ExportExcel(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/exports/excel", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func assetPath(id int64) string {
	return "/assets/" + url.PathEscape(strconv.FormatInt(id, 10))
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := codec.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := codec.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError prefers the server's "error" field and falls back to a generic message
func apiError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Error string `json:"error"`
	}
	if codec.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
