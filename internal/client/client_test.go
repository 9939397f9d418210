package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/init" {
			t.Errorf("expected /v1/init, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("unauthenticated init should send no auth header, got %q", auth)
		}

		var req InitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Workspace != "quarterly-finance" {
			t.Errorf("expected workspace quarterly-finance, got %q", req.Workspace)
		}

		_ = json.NewEncoder(w).Encode(InitResponse{
			WorkspaceID: "01234567-89ab-cdef-0123-456789abcdef",
			Workspace:   req.Workspace,
			APIKey:      "tdk_secret",
			UserID:      "user-1",
			Created:     true,
		})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Init(context.Background(), &InitRequest{Workspace: "quarterly-finance", UserName: "Dana"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if resp.APIKey != "tdk_secret" {
		t.Errorf("expected minted API key, got %q", resp.APIKey)
	}
	if !resp.Created {
		t.Error("expected Created=true")
	}
}

func TestAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %q", auth)
		}
		_ = json.NewEncoder(w).Encode(Account{UserID: "user-1", Name: "Dana", Plan: "free"})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "test-key")
	account, err := c.Whoami(context.Background())
	if err != nil {
		t.Fatalf("Whoami() error: %v", err)
	}
	if account.Name != "Dana" {
		t.Errorf("expected account name Dana, got %q", account.Name)
	}
}

func TestListFilesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files" {
			t.Errorf("expected /v1/files, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("prefix") != "rev" {
			t.Errorf("expected prefix=rev, got %q", q.Get("prefix"))
		}
		if q.Get("kind") != "csv" {
			t.Errorf("expected kind=csv, got %q", q.Get("kind"))
		}
		if q.Get("limit") != "5" {
			t.Errorf("expected limit=5, got %q", q.Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(ListFilesResponse{
			Files: []FileInfo{{FileID: "file-1", Name: "revenue.csv", Kind: "csv"}},
			Count: 1,
		})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	resp, err := c.ListFiles(context.Background(), &ListFilesRequest{Prefix: "rev", Kind: "csv", Limit: 5})
	if err != nil {
		t.Fatalf("ListFiles() error: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].FileID != "file-1" {
		t.Errorf("unexpected files: %+v", resp.Files)
	}
}

func TestGetFileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	file, err := c.GetFile(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if file != nil {
		t.Errorf("expected nil file for 404, got %+v", file)
	}
}

func TestGetTableNilRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("nil request should produce no query, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(GetTableResponse{
			Table: TableInfo{TableID: "tbl-1", Name: "revenue", RowCount: 42},
		})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")

	// A typed-nil *GetTableRequest must behave like no request at all.
	var req *GetTableRequest
	resp, err := c.GetTable(context.Background(), "tbl-1", req)
	if err != nil {
		t.Fatalf("GetTable() error: %v", err)
	}
	if resp.Table.RowCount != 42 {
		t.Errorf("expected 42 rows, got %d", resp.Table.RowCount)
	}
}

func TestSendChatMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/sessions/sess-1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req SendChatMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Body != "which region grew fastest?" {
			t.Errorf("unexpected body %q", req.Body)
		}
		_ = json.NewEncoder(w).Encode(SendChatMessageResponse{
			MessageID: "msg-2",
			SSEURL:    "/v1/chat/sessions/sess-1/stream?cursor=msg-2",
		})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	resp, err := c.SendChatMessage(context.Background(), "sess-1", &SendChatMessageRequest{
		Body: "which region grew fastest?",
	})
	if err != nil {
		t.Fatalf("SendChatMessage() error: %v", err)
	}
	if resp.MessageID != "msg-2" {
		t.Errorf("expected msg-2, got %q", resp.MessageID)
	}
}

func TestApplyTransformIdempotencyKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transforms/tf-1/apply" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.Header.Get("Idempotency-Key"); key != "retry-key-1" {
			t.Errorf("expected Idempotency-Key retry-key-1, got %q", key)
		}
		_ = json.NewEncoder(w).Encode(ApplyTransformResponse{
			TransformID: "tf-1",
			Status:      TransformApplied,
			JobID:       "job-9",
		})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	resp, err := c.ApplyTransform(context.Background(), "tf-1", "retry-key-1")
	if err != nil {
		t.Fatalf("ApplyTransform() error: %v", err)
	}
	if resp.JobID != "job-9" {
		t.Errorf("expected job-9, got %q", resp.JobID)
	}
}

func TestListJobsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("ids") != "job-1,job-2" {
			t.Errorf("expected ids=job-1,job-2, got %q", q.Get("ids"))
		}
		_ = json.NewEncoder(w).Encode(ListJobsResponse{
			Jobs: []Job{
				{JobID: "job-1", Status: JobRunning},
				{JobID: "job-2", Status: JobCompleted},
			},
			Count: 2,
		})
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	resp, err := c.ListJobs(context.Background(), &ListJobsRequest{IDs: []string{"job-1", "job-2"}})
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 jobs, got %d", resp.Count)
	}
}

func TestErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"workspace quota exceeded"}`, http.StatusForbidden)
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	_, err := c.ListFiles(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	clientErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if clientErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", clientErr.StatusCode)
	}
	if !strings.Contains(clientErr.Body, "quota") {
		t.Errorf("expected body to carry server message, got %q", clientErr.Body)
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("expected status in error string, got %q", err.Error())
	}
}

func TestOversizedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// 1MB chunks until just over the limit.
		chunk := strings.Repeat("x", 1024*1024)
		for written := int64(0); written <= maxResponseSize; written += int64(len(chunk)) {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := NewWithAPIKey(server.URL, "k")
	_, err := c.ListFiles(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Errorf("expected oversized-response error, got %v", err)
	}
}

func TestJobTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
		active   bool
	}{
		{JobQueued, false, true},
		{JobRunning, false, true},
		{JobCompleted, true, false},
		{JobFailed, true, false},
		{JobCancelled, true, false},
		{"unknown", false, false},
	}
	for _, tt := range tests {
		j := Job{JobID: "j", Status: tt.status}
		if j.Terminal() != tt.terminal {
			t.Errorf("Terminal() for %q = %v, want %v", tt.status, j.Terminal(), tt.terminal)
		}
		if j.Active() != tt.active {
			t.Errorf("Active() for %q = %v, want %v", tt.status, j.Active(), tt.active)
		}
	}
}

func TestResolveURL(t *testing.T) {
	c := New("https://api.tabledesk.example")

	tests := []struct {
		ref  string
		want string
	}{
		{"/v1/chat/sessions/s/stream", "https://api.tabledesk.example/v1/chat/sessions/s/stream"},
		{"v1/jobs/stream", "https://api.tabledesk.example/v1/jobs/stream"},
		{"https://other.example/stream", "https://other.example/stream"},
	}
	for _, tt := range tests {
		if got := c.ResolveURL(tt.ref); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
