package analysis

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/deck"
)

// Analyzer resolves a deck source to its analysis. A sidecar next to a local
// file wins; otherwise the service is asked for the source's file id.
type Analyzer struct {
	Client *Client
	// Sidecars enables the sidecar lookup for local paths.
	Sidecars bool
	// Optional returns an empty result instead of failing when neither a
	// sidecar nor a client can answer.
	Optional bool
}

// Analyze implements deck.Analyzer. The result is a *Result.
func (a Analyzer) Analyze(ctx context.Context, src string) (deck.Analysis, error) {
	r, err := a.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the analysis of src.
func (a Analyzer) Resolve(ctx context.Context, src string) (*Result, error) {
	local := !isURL(src)
	if a.Sidecars && local {
		r, err := LoadSidecar(SidecarPath(src))
		switch {
		case err == nil:
			return r, nil
		case !isNotExist(err):
			return nil, err
		case a.Client == nil && !a.Optional:
			return nil, err
		}
	}
	if a.Client == nil {
		if a.Optional {
			return &Result{FileID: FileID(src)}, nil
		}
		return nil, &Error{Source: src, Op: "request", Err: ErrNoSource}
	}
	return a.Client.Analyze(ctx, FileID(src))
}

// FileID derives the service file id from a source: the last path element
// without its extension.
func FileID(src string) string {
	p := src
	if isURL(src) {
		if u, err := url.Parse(src); err == nil {
			p = u.Path
		}
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
