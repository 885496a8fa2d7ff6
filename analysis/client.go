package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one analysis request.
const DefaultTimeout = 60 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client calls POST {base}/analyze.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: DefaultTimeout},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type analyzeRequest struct {
	FileID string `json:"fileId"`
}

// Analyze requests the analysis of fileID. Every failure, including an
// invalid grid, is an *Error.
func (c *Client) Analyze(ctx context.Context, fileID string) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{FileID: fileID})
	if err != nil {
		return nil, &Error{Source: fileID, Op: "request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Source: fileID, Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Source: fileID, Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{
			Source:     fileID,
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(msg))),
		}
	}

	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &Error{Source: fileID, Op: "decode", Err: err}
	}
	if err := r.normalize(); err != nil {
		return nil, &Error{Source: fileID, Op: "validate", Err: err}
	}
	if err := r.Validate(); err != nil {
		return nil, &Error{Source: fileID, Op: "validate", Err: err}
	}
	if r.FileID == "" {
		r.FileID = fileID
	}
	c.log.Debug("analysis received", "file", fileID, "bpm", r.BPM,
		"beats", len(r.Beats), "sections", len(r.Sections), "took", time.Since(start))
	return &r, nil
}
