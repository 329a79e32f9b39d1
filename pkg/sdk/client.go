package sdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/parcel/internal/utils/blake3"
	"github.com/beanbocchi/parcel/internal/utils/progress"
	"github.com/beanbocchi/parcel/pkg/response"
)

// DefaultChunkSize is the size of every chunk but the last.
const DefaultChunkSize int64 = 5 * 1024 * 1024

// Client is the Parcel SDK client
type Client struct {
	baseURL    string
	httpClient *http.Client
	chunkSize  int64
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout per request).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithChunkSize overrides DefaultChunkSize. Non-positive sizes are ignored.
func WithChunkSize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// NewClient creates a new SDK client
// baseURL is the server root, e.g., "http://localhost:8080"
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadRequest is the request parameters for UploadFile and ResumeUpload
type UploadRequest struct {
	File     io.ReaderAt
	Size     int64
	FileName string
	// MimeType is optional; the server sniffs the content when it is empty.
	MimeType string
	// OnProgress receives round(acknowledged/total*100) after every chunk.
	OnProgress func(percent int)
}

// UploadResult is the response from UploadFile and ResumeUpload
type UploadResult struct {
	UploadID string
	URL      string
	FileName string
	Size     int64
	Hash     string
	MimeType string
}

type initResponse struct {
	response.CommonResponse
	UploadID string `json:"uploadId"`
}

type completeResponse struct {
	response.CommonResponse
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	MimeType string `json:"mimeType"`
}

type statusResponse struct {
	response.CommonResponse
	UploadID string `json:"uploadId"`
	Chunks   []int  `json:"chunks"`
}

type ackResponse struct {
	response.CommonResponse
}

func (r UploadRequest) validate() error {
	if r.File == nil {
		return fmt.Errorf("file is required")
	}
	if r.Size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	if r.FileName == "" {
		return fmt.Errorf("file name is required")
	}
	return nil
}

// UploadFile uploads req.File in sequential chunks and returns the retrieval URL.
// Chunks are never retried; a failed chunk stops the upload with a *ChunkUploadError.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := req.validate(); err != nil {
		return nil, &InitError{Err: err}
	}

	payload := map[string]any{
		"filename": req.FileName,
		"size":     req.Size,
	}
	if req.MimeType != "" {
		payload["mimeType"] = req.MimeType
	}

	var initResp initResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload/init", nil, payload, &initResp); err != nil {
		return nil, &InitError{Err: err}
	}

	return c.upload(ctx, initResp.UploadID, req, nil)
}

// ResumeUpload continues a session started by UploadFile, sending only the
// chunks the server does not have yet. req must describe the same file.
func (c *Client) ResumeUpload(ctx context.Context, uploadID string, req UploadRequest) (*UploadResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	present, err := c.Status(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("get upload status: %w", err)
	}

	have := make(map[int]bool, len(present))
	for _, index := range present {
		have[index] = true
	}

	return c.upload(ctx, uploadID, req, have)
}

// upload sends every chunk not in have, then completes the session.
func (c *Client) upload(ctx context.Context, uploadID string, req UploadRequest, have map[int]bool) (*UploadResult, error) {
	totalChunks := (req.Size + c.chunkSize - 1) / c.chunkSize
	tracker := progress.NewTracker(totalChunks)
	hasher := blake3.New()

	for i := int64(0); i < totalChunks; i++ {
		offset := i * c.chunkSize
		size := min(c.chunkSize, req.Size-offset)
		section := io.NewSectionReader(req.File, offset, size)

		if have[int(i)] {
			tracker.Add(1)
			if _, err := io.Copy(hasher, section); err != nil {
				return nil, &ChunkUploadError{UploadID: uploadID, Index: int(i), Err: fmt.Errorf("read chunk: %w", err)}
			}
			continue
		}

		if err := c.sendChunk(ctx, uploadID, int(i), io.TeeReader(section, hasher), size); err != nil {
			return nil, &ChunkUploadError{UploadID: uploadID, Index: int(i), Err: err}
		}

		percent := tracker.Add(1)
		if req.OnProgress != nil {
			req.OnProgress(percent)
		}
	}

	var completeResp completeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/upload/complete", nil, map[string]any{
		"uploadId": uploadID,
		"filename": req.FileName,
	}, &completeResp); err != nil {
		return nil, &CompleteError{UploadID: uploadID, Err: err}
	}

	if got := hasher.Sum(); completeResp.Hash != got {
		return nil, &CompleteError{
			UploadID: uploadID,
			Err:      fmt.Errorf("%w: server %s, local %s", ErrHashMismatch, completeResp.Hash, got),
		}
	}

	return &UploadResult{
		UploadID: uploadID,
		URL:      completeResp.URL,
		FileName: completeResp.Filename,
		Size:     completeResp.Size,
		Hash:     completeResp.Hash,
		MimeType: completeResp.MimeType,
	}, nil
}

func (c *Client) sendChunk(ctx context.Context, uploadID string, index int, body io.Reader, size int64) error {
	query := url.Values{}
	query.Set("uploadId", uploadID)
	query.Set("chunkIndex", strconv.Itoa(index))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/upload/chunk", query), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.ContentLength = size
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	var ack ackResponse
	return c.doRequest(httpReq, &ack)
}

// Status returns the chunk indices the server holds for a live session.
func (c *Client) Status(ctx context.Context, uploadID string) ([]int, error) {
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/upload/status", url.Values{"uploadId": {uploadID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}

// Abort discards a live session and its chunks.
func (c *Client) Abort(ctx context.Context, uploadID string) error {
	var ack ackResponse
	return c.doJSON(ctx, http.MethodDelete, "/api/upload/"+url.PathEscape(uploadID), nil, nil, &ack)
}

// Download streams the artifact at fileURL to dst. fileURL may be the relative
// URL returned by UploadFile. When expectedHash is set the stream is verified.
func (c *Client) Download(ctx context.Context, fileURL string, dst io.Writer, expectedHash string) (int64, error) {
	if strings.HasPrefix(fileURL, "/") {
		fileURL = c.baseURL + fileURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("send download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ackResponse
		return 0, decodeResponse(resp, &errResp)
	}

	hashReader := blake3.NewReader(resp.Body)
	n, err := io.Copy(dst, hashReader)
	if err != nil {
		return n, fmt.Errorf("stream download: %w", err)
	}

	if expectedHash != "" {
		if got := hashReader.Sum(); got != expectedHash {
			return n, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, expectedHash, got)
		}
	}
	return n, nil
}

// Upload is a journal entry as returned by ListUploads
type Upload struct {
	ID             string      `json:"id"`
	Filename       string      `json:"filename"`
	Status         string      `json:"status"`
	DeclaredSize   null.Int64  `json:"declaredSize"`
	MimeType       null.String `json:"mimeType"`
	StoredFilename null.String `json:"storedFilename"`
	URL            null.String `json:"url"`
	Size           null.Int64  `json:"size"`
	Hash           null.String `json:"hash"`
	ChunkCount     null.Int64  `json:"chunkCount"`
	CreatedAt      time.Time   `json:"createdAt"`
	CompletedAt    null.Time   `json:"completedAt"`
}

// ListUploads returns one page of the upload journal, newest first.
func (c *Client) ListUploads(ctx context.Context, page, limit int) (*response.PaginationResponse[Upload], error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp response.PaginationResponse[Upload]
	if err := c.doJSON(ctx, http.MethodGet, "/api/uploads", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
