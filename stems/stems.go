// Package stems is a client for the stem separation collaborator. It starts
// separation jobs, polls them and resolves the stem stream URLs that decks
// can use as alternative sources.
package stems

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultModel is the separation model requested when none is given.
const DefaultModel = "htdemucs"

// Kind names an instrument layer.
type Kind string

// Stem kinds produced by the service.
const (
	Vocals Kind = "vocals"
	Drums  Kind = "drums"
	Bass   Kind = "bass"
	Other  Kind = "other"
)

// Kinds lists the four layers in display order.
var Kinds = [...]Kind{Vocals, Drums, Bass, Other}

// State is the lifecycle of a job.
type State string

// Job states.
const (
	Pending    State = "pending"
	Processing State = "processing"
	Completed  State = "completed"
	Failed     State = "failed"
)

// ErrJobFailed is returned by Wait when the service reports a failure.
var ErrJobFailed = errors.New("stems: separation failed")

// Job is an accepted separation request.
type Job struct {
	ID            string  `json:"jobId"`
	EstimatedTime float64 `json:"estimatedTime"`
}

// Stem locates one separated layer.
type Stem struct {
	FileID    string `json:"fileId"`
	StreamURL string `json:"streamUrl"`
}

// Status is the state of a job.
type Status struct {
	JobID    string        `json:"jobId"`
	State    State         `json:"status"`
	Progress float64       `json:"progress"`
	Stems    map[Kind]Stem `json:"stems,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Done reports whether the job reached a final state.
func (s Status) Done() bool { return s.State == Completed || s.State == Failed }

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

// Client talks to POST {base}/stems and GET {base}/stems/{jobId}.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type separateRequest struct {
	FileID string `json:"fileId"`
	Model  string `json:"model"`
}

// Request starts separating fileID. An empty model uses DefaultModel.
func (c *Client) Request(ctx context.Context, fileID, model string) (Job, error) {
	if model == "" {
		model = DefaultModel
	}
	body, err := json.Marshal(separateRequest{FileID: fileID, Model: model})
	if err != nil {
		return Job{}, fmt.Errorf("stems: marshal request: %w", err)
	}
	var job Job
	if err := c.do(ctx, http.MethodPost, c.base+"/stems", body, &job); err != nil {
		return Job{}, err
	}
	if job.ID == "" {
		return Job{}, errors.New("stems: response has no job id")
	}
	c.log.Info("stem separation requested", "file", fileID, "job", job.ID, "eta", job.EstimatedTime)
	return job, nil
}

// Status fetches the state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, c.base+"/stems/"+url.PathEscape(jobID), nil, &st); err != nil {
		return Status{}, err
	}
	if st.JobID == "" {
		st.JobID = jobID
	}
	return st, nil
}

// Wait polls a job every interval until it completes, fails or ctx ends.
// Transient poll errors are logged and retried.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration) (Status, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := c.Status(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Status{}, ctx.Err()
			}
			c.log.Warn("stem status poll failed", "job", jobID, "err", err)
		case st.State == Failed:
			return st, fmt.Errorf("%w: job %s: %s", ErrJobFailed, jobID, st.Error)
		case st.State == Completed:
			return st, nil
		}
		select {
		case <-ctx.Done():
			return Status{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sources returns the stream URL of every stem keyed by kind, resolved
// against the service base URL.
func (c *Client) Sources(st Status) map[string]string {
	out := make(map[string]string, len(st.Stems))
	for k, s := range st.Stems {
		if s.StreamURL == "" {
			continue
		}
		out[string(k)] = c.resolve(s.StreamURL)
	}
	return out
}

// SortedKinds returns the kinds present in sources in a stable order.
func SortedKinds(sources map[string]string) []string {
	out := make([]string, 0, len(sources))
	for k := range sources {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.base + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return fmt.Errorf("stems: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stems: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stems: %s %s: HTTP %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stems: decode response: %w", err)
	}
	return nil
}
