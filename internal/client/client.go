// Package client is a thin JSON client for the toolkit server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"language-toolkit/internal/errs"
	internalhttp "language-toolkit/internal/http"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/translation"
	"language-toolkit/models"
)

// SubmitRequest mirrors the server's JSON submission body.
type SubmitRequest struct {
	SourceLang   string   `json:"source_lang,omitempty"`
	TargetLangs  []string `json:"target_langs,omitempty"`
	Text         string   `json:"text,omitempty"`
	Voice        string   `json:"voice,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIClient handles all HTTP communication with the toolkit server.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a client for the server at baseURL. token may be empty.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// BuildURL constructs a full URL for the given endpoint.
func (c *APIClient) BuildURL(endpoint string) string {
	return c.baseURL + endpoint
}

func (c *APIClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BuildURL(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and returns the response for 2xx statuses. Error bodies are
// decoded back into classified errors.
func (c *APIClient) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger.Debug("Starting %s request to %s", req.Method, req.URL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	logger.Debug("Request to %s completed in %v with status %d", req.URL, time.Since(start), resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Kind != "" {
		return nil, &errs.Error{Kind: errs.Kind(apiErr.Error.Kind), Msg: apiErr.Error.Message}
	}
	return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *APIClient) requestJSON(ctx context.Context, method, endpoint string, body, result interface{}) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, endpoint, reader, contentType)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

// Ping checks that the server answers /health.
func (c *APIClient) Ping(ctx context.Context) error {
	return c.requestJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// WaitForServer pings until the server answers or attempts run out.
func (c *APIClient) WaitForServer(ctx context.Context, attempts int) error {
	_, err := internalhttp.RetryWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, c.Ping(ctx)
	}, attempts, 200*time.Millisecond)
	return err
}

// Submit posts a JSON submission and returns the task id.
func (c *APIClient) Submit(ctx context.Context, kind models.OperationKind, req SubmitRequest) (string, error) {
	var out submitResponse
	if err := c.requestJSON(ctx, http.MethodPost, "/submit/"+string(kind), req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SubmitFiles uploads files as a multipart submission.
func (c *APIClient) SubmitFiles(ctx context.Context, kind models.OperationKind, req SubmitRequest, files []string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"source_lang":   req.SourceLang,
		"text":          req.Text,
		"voice":         req.Voice,
		"output_format": req.OutputFormat,
		"target_langs":  strings.Join(req.TargetLangs, ","),
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", err
		}
	}
	for _, path := range files {
		if err := addFilePart(mw, path); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/submit/"+string(kind), &body, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	resp, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	return out.ID, nil
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Status returns the full task snapshot.
func (c *APIClient) Status(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.requestJSON(ctx, http.MethodGet, "/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns task summaries, newest first.
func (c *APIClient) List(ctx context.Context) ([]models.Summary, error) {
	var out []models.Summary
	err := c.requestJSON(ctx, http.MethodGet, "/tasks", nil, &out)
	return out, err
}

// Cancel asks the server to stop a task.
func (c *APIClient) Cancel(ctx context.Context, id string) error {
	return c.requestJSON(ctx, http.MethodPost, "/tasks/"+id+"/cancel", nil, nil)
}

// Delete removes a finished task and its files from the server.
func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.requestJSON(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}

// Languages lists the routing table.
func (c *APIClient) Languages(ctx context.Context) ([]translation.LanguageInfo, error) {
	var out []translation.LanguageInfo
	err := c.requestJSON(ctx, http.MethodGet, "/languages", nil, &out)
	return out, err
}

// Download saves a result into destDir and returns the written path. A nil
// index fetches the single file, or a zip of all files.
func (c *APIClient) Download(ctx context.Context, id string, index *int, destDir string) (string, error) {
	endpoint := "/tasks/" + id + "/result"
	if index != nil {
		endpoint += "/" + strconv.Itoa(*index)
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := "result_" + id
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}

// Watch polls the task every interval and sends each snapshot on the
// returned channel until the task is terminal, an error occurs, or ctx is
// done. The channel is closed afterwards; the last error, if any, is
// delivered on errc.
func (c *APIClient) Watch(ctx context.Context, id string, interval time.Duration) (<-chan *models.Task, <-chan error) {
	updates := make(chan *models.Task)
	errc := make(chan error, 1)
	go func() {
		defer close(updates)
		defer close(errc)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			task, err := c.Status(ctx, id)
			if err != nil {
				errc <- err
				return
			}
			select {
			case updates <- task:
			case <-ctx.Done():
				return
			}
			if task.Status.IsTerminal() {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return updates, errc
}
