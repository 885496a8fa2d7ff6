package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SidecarExt is appended to a track's base name to find its analysis file.
const SidecarExt = ".analysis.yaml"

// SidecarPath returns the sidecar location for a local track path:
// "set/track.wav" becomes "set/track.analysis.yaml".
func SidecarPath(track string) string {
	return strings.TrimSuffix(track, filepath.Ext(track)) + SidecarExt
}

// ParseSidecar decodes and validates a YAML analysis document.
func ParseSidecar(data []byte) (*Result, error) {
	var r Result
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := r.normalize(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadSidecar reads the sidecar at path. A missing file wraps fs.ErrNotExist.
func LoadSidecar(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Source: path, Op: "sidecar", Err: err}
	}
	r, err := ParseSidecar(data)
	if err != nil {
		return nil, &Error{Source: path, Op: "sidecar", Err: err}
	}
	return r, nil
}

// WriteSidecar stores r as YAML at path.
func WriteSidecar(path string, r *Result) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("analysis: encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("analysis: write sidecar: %w", err)
	}
	return nil
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }
