// Package client implements the TableDesk HTTP client.
//
// The client handles all communication with the TableDesk server:
// - POST /v1/init - Register a workspace and mint an API key
// - File store endpoints (upload, list, delete)
// - Table endpoints (schema + preview rows)
// - Chat endpoints (sessions, messages, SSE stream URLs)
// - Transform endpoints (review/apply AI-suggested transformations)
// - Job endpoints (background parse/transform/analysis jobs)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is the TableDesk HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string // API key for Bearer auth
	logger     zerolog.Logger
}

// New creates a new TableDesk client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zerolog.Nop(),
	}
}

// NewWithAPIKey creates a new TableDesk client with API key authentication.
// When an API key is set, all requests include an Authorization: Bearer header.
func NewWithAPIKey(baseURL, apiKey string) *Client {
	c := New(baseURL)
	c.apiKey = apiKey
	return c
}

// WithLogger sets the logger used for request tracing and returns the client.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// BaseURL returns the server base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a server-relative path (like an sse_url field) into an
// absolute URL against the client's base URL. Absolute URLs pass through.
func (c *Client) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// InitRequest is the request body for POST /v1/init.
type InitRequest struct {
	Workspace string `json:"workspace"`
	UserName  string `json:"user_name,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
}

// InitResponse is the response from POST /v1/init.
type InitResponse struct {
	WorkspaceID string `json:"workspace_id"`
	Workspace   string `json:"workspace"`
	APIKey      string `json:"api_key,omitempty"` // Empty when authenticating with an existing key
	UserID      string `json:"user_id"`
	Created     bool   `json:"created"` // True if the workspace was newly created
}

// Init registers a workspace (creating it if needed) via POST /v1/init.
// When the client has no API key, the server mints one and returns it.
func (c *Client) Init(ctx context.Context, req *InitRequest) (*InitResponse, error) {
	var resp InitResponse
	if err := c.post(ctx, "/v1/init", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account is the response from GET /v1/me.
type Account struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name"`
	Plan         string `json:"plan"`
	FileCount    int    `json:"file_count"`
	TableCount   int    `json:"table_count"`
	StorageBytes int64  `json:"storage_bytes"`
	CreatedAt    string `json:"created_at"`
}

// Whoami fetches the authenticated account via GET /v1/me.
func (c *Client) Whoami(ctx context.Context) (*Account, error) {
	var resp Account
	if err := c.get(ctx, "/v1/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// File store API
// =============================================================================

// FileInfo represents a file in the cloud file store.
type FileInfo struct {
	FileID      string   `json:"file_id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"` // csv, tsv, xlsx, parquet, json
	SizeBytes   int64    `json:"size_bytes"`
	ContentHash string   `json:"content_hash"`
	Status      string   `json:"status"` // stored, parsing, parsed, error
	StatusError string   `json:"status_error,omitempty"`
	TableIDs    []string `json:"table_ids,omitempty"` // Tables parsed out of this file
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ListFilesRequest is the request parameters for GET /v1/files.
type ListFilesRequest struct {
	Prefix string // Filter to names with this prefix
	Kind   string // Filter to a single file kind
	Limit  int
}

// ListFilesResponse is the response from GET /v1/files.
type ListFilesResponse struct {
	Files   []FileInfo `json:"files"`
	Count   int        `json:"count"`
	HasMore bool       `json:"has_more"`
}

// ListFiles lists files in the workspace file store.
func (c *Client) ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	var resp ListFilesResponse
	if err := c.get(ctx, "/v1/files", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFile fetches a single file by ID.
// Returns nil if the file does not exist (404).
func (c *Client) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	var resp FileInfo
	if err := c.get(ctx, "/v1/files/"+url.PathEscape(fileID), nil, &resp); err != nil {
		if clientErr, ok := err.(*Error); ok && clientErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// DeleteFileResponse is the response from DELETE /v1/files/{id}.
type DeleteFileResponse struct {
	FileID        string `json:"file_id"`
	DeletedAt     string `json:"deleted_at"`
	TablesDropped int    `json:"tables_dropped"`
}

// DeleteFile deletes a file by its ID. Tables parsed from it are dropped.
// Returns nil error and nil response if the file was already deleted (404).
func (c *Client) DeleteFile(ctx context.Context, fileID string) (*DeleteFileResponse, error) {
	var resp DeleteFileResponse
	if err := c.delete(ctx, "/v1/files/"+url.PathEscape(fileID), &resp); err != nil {
		if clientErr, ok := err.(*Error); ok && clientErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Tables API
// =============================================================================

// TableColumn describes one column of a parsed table.
type TableColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string, integer, float, boolean, date, datetime
	Nullable bool   `json:"nullable"`
	Example  string `json:"example,omitempty"`
}

// TableInfo represents a table parsed from an uploaded file.
type TableInfo struct {
	TableID   string        `json:"table_id"`
	FileID    string        `json:"file_id"`
	Name      string        `json:"name"`
	RowCount  int64         `json:"row_count"`
	Columns   []TableColumn `json:"columns"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// ListTablesRequest is the request parameters for GET /v1/tables.
type ListTablesRequest struct {
	FileID string // Filter to tables parsed from this file
	Limit  int
}

// ListTablesResponse is the response from GET /v1/tables.
type ListTablesResponse struct {
	Tables []TableInfo `json:"tables"`
	Count  int         `json:"count"`
}

// ListTables lists tables in the workspace.
func (c *Client) ListTables(ctx context.Context, req *ListTablesRequest) (*ListTablesResponse, error) {
	var resp ListTablesResponse
	if err := c.get(ctx, "/v1/tables", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTableRequest is the request parameters for GET /v1/tables/{id}.
type GetTableRequest struct {
	PreviewRows int // Number of sample rows to include (server default 10)
}

// GetTableResponse is the response from GET /v1/tables/{id}.
type GetTableResponse struct {
	Table          TableInfo  `json:"table"`
	PreviewColumns []string   `json:"preview_columns"`
	PreviewRows    [][]string `json:"preview_rows"`
}

// GetTable fetches a table's schema and a preview of its rows.
// Returns nil if the table does not exist (404).
func (c *Client) GetTable(ctx context.Context, tableID string, req *GetTableRequest) (*GetTableResponse, error) {
	var resp GetTableResponse
	if err := c.get(ctx, "/v1/tables/"+url.PathEscape(tableID), req, &resp); err != nil {
		if clientErr, ok := err.(*Error); ok && clientErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Chat API (assistant sessions over tabular data)
// =============================================================================

// ChatSession represents an assistant conversation scoped to a set of tables.
type ChatSession struct {
	SessionID    string   `json:"session_id"`
	Title        string   `json:"title,omitempty"`
	TableIDs     []string `json:"table_ids"`
	MessageCount int      `json:"message_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// CreateChatSessionRequest is the request body for POST /v1/chat/sessions.
type CreateChatSessionRequest struct {
	TableIDs []string `json:"table_ids,omitempty"`
	Message  string   `json:"message"`
}

// CreateChatSessionResponse is the response from POST /v1/chat/sessions.
// SSEURL streams the assistant's reply to the opening message.
type CreateChatSessionResponse struct {
	SessionID string   `json:"session_id"`
	MessageID string   `json:"message_id"`
	SSEURL    string   `json:"sse_url"`
	JobIDs    []string `json:"job_ids,omitempty"` // Analysis jobs spawned by the message
}

// CreateChatSession creates a chat session and sends its opening message.
func (c *Client) CreateChatSession(ctx context.Context, req *CreateChatSessionRequest) (*CreateChatSessionResponse, error) {
	var resp CreateChatSessionResponse
	if err := c.post(ctx, "/v1/chat/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListChatSessionsRequest is the request parameters for GET /v1/chat/sessions.
type ListChatSessionsRequest struct {
	Limit int
}

// ListChatSessionsResponse is the response from GET /v1/chat/sessions.
type ListChatSessionsResponse struct {
	Sessions []ChatSession `json:"sessions"`
	Count    int           `json:"count"`
}

// ListChatSessions lists chat sessions for the workspace, most recent first.
func (c *Client) ListChatSessions(ctx context.Context, req *ListChatSessionsRequest) (*ListChatSessionsResponse, error) {
	var resp ListChatSessionsResponse
	if err := c.get(ctx, "/v1/chat/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatMessage represents a message in a chat session.
type ChatMessage struct {
	MessageID    string   `json:"message_id"`
	Role         string   `json:"role"` // user or assistant
	Body         string   `json:"body"`
	TransformIDs []string `json:"transform_ids,omitempty"` // Transforms suggested by this message
	JobIDs       []string `json:"job_ids,omitempty"`       // Jobs spawned while producing it
	CreatedAt    string   `json:"created_at"`
}

// GetChatMessagesRequest is the request parameters for GET /v1/chat/sessions/{id}/messages.
type GetChatMessagesRequest struct {
	Since string // RFC3339; only messages after this time
	Limit int
}

// GetChatMessagesResponse is the response from GET /v1/chat/sessions/{id}/messages.
type GetChatMessagesResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

// GetChatMessages gets message history for a chat session.
func (c *Client) GetChatMessages(ctx context.Context, sessionID string, req *GetChatMessagesRequest) (*GetChatMessagesResponse, error) {
	var resp GetChatMessagesResponse
	path := fmt.Sprintf("/v1/chat/sessions/%s/messages", url.PathEscape(sessionID))
	if err := c.get(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendChatMessageRequest is the request body for POST /v1/chat/sessions/{id}/messages.
type SendChatMessageRequest struct {
	Body string `json:"body"`
}

// SendChatMessageResponse is the response from POST /v1/chat/sessions/{id}/messages.
type SendChatMessageResponse struct {
	MessageID string   `json:"message_id"`
	SSEURL    string   `json:"sse_url"`
	JobIDs    []string `json:"job_ids,omitempty"`
}

// SendChatMessage sends a message to an existing chat session.
func (c *Client) SendChatMessage(ctx context.Context, sessionID string, req *SendChatMessageRequest) (*SendChatMessageResponse, error) {
	var resp SendChatMessageResponse
	path := fmt.Sprintf("/v1/chat/sessions/%s/messages", url.PathEscape(sessionID))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Transforms API (AI-suggested data transformations)
// =============================================================================

// Transform statuses.
const (
	TransformPending  = "pending"
	TransformApplied  = "applied"
	TransformRejected = "rejected"
)

// Transform represents an AI-suggested data transformation awaiting review.
type Transform struct {
	TransformID  string `json:"transform_id"`
	SessionID    string `json:"session_id,omitempty"` // Chat session that suggested it
	TableID      string `json:"table_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"` // pending, applied, rejected
	AppliedJobID string `json:"applied_job_id,omitempty"`
	CreatedAt    string `json:"created_at"`
	ResolvedAt   string `json:"resolved_at,omitempty"`
}

// ListTransformsRequest is the request parameters for GET /v1/transforms.
type ListTransformsRequest struct {
	Status  string // pending, applied, rejected
	TableID string
	Limit   int
}

// ListTransformsResponse is the response from GET /v1/transforms.
type ListTransformsResponse struct {
	Transforms []Transform `json:"transforms"`
	Count      int         `json:"count"`
}

// ListTransforms lists suggested transforms, newest first.
func (c *Client) ListTransforms(ctx context.Context, req *ListTransformsRequest) (*ListTransformsResponse, error) {
	var resp ListTransformsResponse
	if err := c.get(ctx, "/v1/transforms", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransform fetches a single transform by ID.
// Returns nil if the transform does not exist (404).
func (c *Client) GetTransform(ctx context.Context, transformID string) (*Transform, error) {
	var resp Transform
	if err := c.get(ctx, "/v1/transforms/"+url.PathEscape(transformID), nil, &resp); err != nil {
		if clientErr, ok := err.(*Error); ok && clientErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// PreviewTransformRequest is the request body for POST /v1/transforms/{id}/preview.
type PreviewTransformRequest struct {
	SampleRows int `json:"sample_rows,omitempty"` // Server default 10
}

// PreviewTransformResponse is the response from POST /v1/transforms/{id}/preview.
// Before and After hold the same sample rows pre- and post-transformation.
type PreviewTransformResponse struct {
	TransformID  string     `json:"transform_id"`
	Columns      []string   `json:"columns"`
	Before       [][]string `json:"before"`
	After        [][]string `json:"after"`
	RowsAffected int64      `json:"rows_affected"`
}

// PreviewTransform computes a before/after sample for a pending transform.
func (c *Client) PreviewTransform(ctx context.Context, transformID string, req *PreviewTransformRequest) (*PreviewTransformResponse, error) {
	var resp PreviewTransformResponse
	path := fmt.Sprintf("/v1/transforms/%s/preview", url.PathEscape(transformID))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApplyTransformResponse is the response from POST /v1/transforms/{id}/apply.
type ApplyTransformResponse struct {
	TransformID string `json:"transform_id"`
	Status      string `json:"status"`
	JobID       string `json:"job_id"` // Background job executing the transform
}

// ApplyTransform accepts a pending transform. Execution is asynchronous; the
// returned job ID should be tracked to observe completion. The idempotency
// key makes retried applies safe: the server returns the original job.
func (c *Client) ApplyTransform(ctx context.Context, transformID, idempotencyKey string) (*ApplyTransformResponse, error) {
	var resp ApplyTransformResponse
	path := fmt.Sprintf("/v1/transforms/%s/apply", url.PathEscape(transformID))
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	if err := c.postWithHeaders(ctx, path, nil, &resp, headers); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RejectTransformRequest is the request body for POST /v1/transforms/{id}/reject.
type RejectTransformRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RejectTransformResponse is the response from POST /v1/transforms/{id}/reject.
type RejectTransformResponse struct {
	TransformID string `json:"transform_id"`
	Status      string `json:"status"`
}

// RejectTransform declines a pending transform.
func (c *Client) RejectTransform(ctx context.Context, transformID string, req *RejectTransformRequest) (*RejectTransformResponse, error) {
	var resp RejectTransformResponse
	path := fmt.Sprintf("/v1/transforms/%s/reject", url.PathEscape(transformID))
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Jobs API
// =============================================================================

// Job statuses reported by the server.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// Job represents a background job (file parse, transform execution, analysis).
type Job struct {
	JobID      string  `json:"job_id"`
	Kind       string  `json:"kind"` // parse, transform, analysis, export
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"` // 0.0 - 1.0
	Detail     string  `json:"detail,omitempty"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	StartedAt  string  `json:"started_at,omitempty"`
	FinishedAt string  `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Active reports whether the job is queued or running.
func (j *Job) Active() bool {
	return j.Status == JobQueued || j.Status == JobRunning
}

// ListJobsRequest is the request parameters for GET /v1/jobs.
type ListJobsRequest struct {
	IDs    []string // Fetch exactly these jobs
	Active bool     // Fetch all non-terminal jobs
	Limit  int
}

// ListJobsResponse is the response from GET /v1/jobs.
type ListJobsResponse struct {
	Jobs  []Job `json:"jobs"`
	Count int   `json:"count"`
}

// ListJobs fetches job statuses. Unknown IDs are silently omitted from the
// response; callers that track jobs should treat missing IDs as gone.
func (c *Client) ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResponse, error) {
	var resp ListJobsResponse
	if err := c.get(ctx, "/v1/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJob fetches a single job by ID.
// Returns nil if the job does not exist (404).
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var resp Job
	if err := c.get(ctx, "/v1/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		if clientErr, ok := err.(*Error); ok && clientErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// Error represents an error response from the TableDesk server.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("TableDesk error (status %d): %s", e.StatusCode, e.Body)
}

// post sends a POST request and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	return c.postWithHeaders(ctx, path, reqBody, respBody, nil)
}

// postWithHeaders sends a POST request with additional headers and decodes the JSON response.
func (c *Client) postWithHeaders(ctx context.Context, path string, reqBody, respBody any, headers map[string]string) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return c.do(req, respBody)
}

// delete sends a DELETE request and decodes the JSON response.
func (c *Client) delete(ctx context.Context, path string, respBody any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.do(req, respBody)
}

// get sends a GET request with query parameters and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params any, respBody any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// Build query parameters from the request struct
	if params != nil {
		// Avoid panics when params is a typed-nil pointer stored in an interface.
		v := reflect.ValueOf(params)
		if v.Kind() == reflect.Ptr && v.IsNil() {
			params = nil
		}
	}
	if params != nil {
		q := req.URL.Query()
		switch p := params.(type) {
		case *ListFilesRequest:
			if p.Prefix != "" {
				q.Set("prefix", p.Prefix)
			}
			if p.Kind != "" {
				q.Set("kind", p.Kind)
			}
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		case *ListTablesRequest:
			if p.FileID != "" {
				q.Set("file_id", p.FileID)
			}
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		case *GetTableRequest:
			if p.PreviewRows > 0 {
				q.Set("preview_rows", fmt.Sprintf("%d", p.PreviewRows))
			}
		case *ListChatSessionsRequest:
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		case *GetChatMessagesRequest:
			if p.Since != "" {
				q.Set("since", p.Since)
			}
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		case *ListTransformsRequest:
			if p.Status != "" {
				q.Set("status", p.Status)
			}
			if p.TableID != "" {
				q.Set("table_id", p.TableID)
			}
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		case *ListJobsRequest:
			if len(p.IDs) > 0 {
				q.Set("ids", strings.Join(p.IDs, ","))
			}
			if p.Active {
				q.Set("active", "true")
			}
			if p.Limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", p.Limit))
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	return c.do(req, respBody)
}

// do executes a prepared request and decodes the JSON response body.
func (c *Client) do(req *http.Request, respBody any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	// Read maxResponseSize+1 to detect oversized responses while still accepting
	// responses exactly at the limit. If we read more than maxResponseSize, reject.
	respBodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if int64(len(respBodyBytes)) > maxResponseSize {
		return fmt.Errorf("response exceeds maximum size of %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Body:       string(respBodyBytes),
		}
	}

	if err := json.Unmarshal(respBodyBytes, respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
