package stems

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestAndWait(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	var got separateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/stems":
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"jobId": "job-7", "estimatedTime": 42}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/stems/job-7":
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"jobId": "job-7", "status": "processing", "progress": 40}`))
				return
			}
			_, _ = w.Write([]byte(`{"jobId": "job-7", "status": "completed", "progress": 100,
				"stems": {
					"vocals": {"fileId": "v", "streamUrl": "stream/v"},
					"drums": {"fileId": "d", "streamUrl": "https://cdn.example/d.wav"},
					"bass": {"fileId": "b", "streamUrl": ""}
				}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/api")
	job, err := c.Request(context.Background(), "song", "")
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != "job-7" || job.EstimatedTime != 42 || got.Model != DefaultModel || got.FileID != "song" {
		t.Fatalf("job = %+v, request = %+v", job, got)
	}

	st, err := c.Wait(context.Background(), job.ID, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Done() || st.State != Completed || polls.Load() != 3 {
		t.Fatalf("status = %+v after %d polls", st, polls.Load())
	}

	src := c.Sources(st)
	if len(src) != 2 {
		t.Fatalf("sources = %v", src)
	}
	if src["vocals"] != srv.URL+"/api/stream/v" || src["drums"] != "https://cdn.example/d.wav" {
		t.Fatalf("sources = %v", src)
	}
	if kinds := SortedKinds(src); kinds[0] != "drums" || kinds[1] != "vocals" {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestWaitReportsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "error": "out of memory"}`))
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL).Wait(context.Background(), "j", time.Millisecond)
	if !errors.Is(err, ErrJobFailed) || st.State != Failed || st.JobID != "j" {
		t.Fatalf("status %+v, err %v", st, err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL).Wait(ctx, "j", time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stems" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Request(context.Background(), "f", "htdemucs_ft"); err == nil {
		t.Fatal("missing job id accepted")
	}
	if _, err := c.Status(context.Background(), "nope/../x"); err == nil {
		t.Fatal("404 accepted")
	}
}
