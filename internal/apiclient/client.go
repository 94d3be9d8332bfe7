// Package apiclient calls the phasetrack HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpggio/phasetrack/internal/autosave"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/domain/validation"
)

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
	Details    []validation.FieldError
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a small JSON client for the /api routes.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. An empty token sends no Authorization header.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// SaveRequest is the body of POST /api/module-progress.
type SaveRequest struct {
	ProjectID     string          `json:"projectId"`
	ModuleNumber  int             `json:"moduleNumber"`
	PhaseNumber   int             `json:"phaseNumber"`
	Content       *string         `json:"content,omitempty"`
	PromptCreated *string         `json:"promptCreated,omitempty"`
	Status        progress.Status `json:"status,omitempty"`
}

func (c *Client) ListProjects(ctx context.Context) ([]project.Summary, error) {
	var out []project.Summary
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var out project.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, title string, description *string) (*project.Project, error) {
	body := map[string]any{"title": title}
	if description != nil {
		body["description"] = *description
	}
	var out project.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListModuleProgress(ctx context.Context, projectID string) ([]progress.ModuleProgress, error) {
	var out []progress.ModuleProgress
	path := "/api/module-progress?projectId=" + url.QueryEscape(projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PhaseContent returns the saved content of one phase, or "" when the phase
// has no record.
func (c *Client) PhaseContent(ctx context.Context, projectID string, moduleNumber, phaseNumber int) (string, error) {
	recs, err := c.ListModuleProgress(ctx, projectID)
	if err != nil {
		return "", err
	}
	for _, r := range recs {
		if r.ModuleNumber == moduleNumber && r.PhaseNumber == phaseNumber && r.Content != nil {
			return *r.Content, nil
		}
	}
	return "", nil
}

func (c *Client) SaveModuleProgress(ctx context.Context, req SaveRequest) (*progress.ModuleProgress, error) {
	var out progress.ModuleProgress
	if err := c.do(ctx, http.MethodPost, "/api/module-progress", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FrameworkModules(ctx context.Context) ([]catalog.Module, error) {
	var out []catalog.Module
	if err := c.do(ctx, http.MethodGet, "/api/framework/modules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Export downloads a project export in format ("json" or "markdown").
func (c *Client) Export(ctx context.Context, projectID, format string) ([]byte, error) {
	path := fmt.Sprintf("/api/projects/%s/export?format=%s", url.PathEscape(projectID), url.QueryEscape(format))
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &Error{StatusCode: resp.StatusCode}
	var body struct {
		Error   string                  `json:"error"`
		Details []validation.FieldError `json:"details"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	return apiErr
}

// Saver stores autosave content through the API.
type Saver struct {
	Client *Client
}

var _ autosave.Saver = Saver{}

// Save posts the content of one phase. Empty content clears the phase.
func (s Saver) Save(ctx context.Context, key autosave.Key, content string) error {
	_, err := s.Client.SaveModuleProgress(ctx, SaveRequest{
		ProjectID:    key.ProjectID,
		ModuleNumber: key.ModuleNumber,
		PhaseNumber:  key.PhaseNumber,
		Content:      &content,
	})
	return err
}
