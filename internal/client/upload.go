package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// maxUploadSize caps spreadsheet uploads. The server enforces its own limit;
// this one exists so a fat-fingered path fails fast without streaming gigabytes.
const maxUploadSize = 256 * 1024 * 1024 // 256MB

// UploadFileRequest describes a file upload for POST /v1/files.
type UploadFileRequest struct {
	// Path is the local file to upload.
	Path string

	// Name overrides the stored file name. Defaults to the base name of Path.
	Name string

	// ContentHash is the client-computed content hash ("v1:<hex>"). The server
	// verifies it and uses it for deduplication.
	ContentHash string

	// IdempotencyKey makes retried uploads safe. When empty no header is sent.
	IdempotencyKey string

	// Overwrite replaces an existing file with the same name.
	Overwrite bool
}

// UploadFileResponse is the response from POST /v1/files.
type UploadFileResponse struct {
	File         FileInfo `json:"file"`
	ParseJobID   string   `json:"parse_job_id,omitempty"` // Background job parsing the file into tables
	Deduplicated bool     `json:"deduplicated"`           // True when the server already had this content
}

// UploadFile uploads a local spreadsheet to the workspace file store as a
// multipart request. Parsing into tables happens asynchronously; track the
// returned parse job to observe completion.
func (c *Client) UploadFile(ctx context.Context, req *UploadFileRequest) (*UploadFileResponse, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", req.Path, err)
	}
	if info.Size() > maxUploadSize {
		return nil, fmt.Errorf("%s is %d bytes, exceeds upload limit of %d", req.Path, info.Size(), maxUploadSize)
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", req.Path, err)
	}
	defer func() { _ = f.Close() }()

	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}

	// Stream the multipart body through a pipe so large files are never
	// buffered fully in memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeUploadBody(writer, f, name, req)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", pr)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	// Uploads can legitimately outlive DefaultTimeout; the caller's context
	// is the only deadline here.
	uploadClient := &http.Client{}
	resp, err := uploadClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(respBodyBytes)) > maxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Body:       string(respBodyBytes),
		}
	}

	var uploadResp UploadFileResponse
	if err := json.Unmarshal(respBodyBytes, &uploadResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &uploadResp, nil
}

// writeUploadBody writes the metadata fields and file part of an upload.
func writeUploadBody(writer *multipart.Writer, f *os.File, name string, req *UploadFileRequest) error {
	if err := writer.WriteField("name", name); err != nil {
		return err
	}
	if req.ContentHash != "" {
		if err := writer.WriteField("content_hash", req.ContentHash); err != nil {
			return err
		}
	}
	if req.Overwrite {
		if err := writer.WriteField("overwrite", "true"); err != nil {
			return err
		}
	}

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
