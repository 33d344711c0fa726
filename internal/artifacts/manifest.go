package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is one file written by a run.
type Artifact struct {
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Manifest records what a run produced, keyed by a fresh run id. The
// manifest file accumulates runs, newest last.
type Manifest struct {
	Runs []RunRecord `json:"runs"`
}

// RunRecord is one pipeline run's entry.
type RunRecord struct {
	RunID     string     `json:"run_id"`
	Mode      string     `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	Artifacts []Artifact `json:"artifacts"`
}

// Add appends one artifact to the record.
func (r *RunRecord) Add(kind, path string) {
	r.Artifacts = append(r.Artifacts, Artifact{
		Kind:      kind,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	})
}

// IO handles reading and writing manifest files.
type IO struct {
	manifestPath string
}

// NewIO creates a manifest I/O handler.
func NewIO(manifestPath string) *IO {
	return &IO{manifestPath: manifestPath}
}

// Load reads the manifest, returning an empty one when the file does not
// exist yet.
func (io *IO) Load() (*Manifest, error) {
	if _, err := os.Stat(io.manifestPath); os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	raw, err := os.ReadFile(io.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// Append loads the manifest, adds the record, and writes it back.
func (io *IO) Append(record RunRecord) error {
	manifest, err := io.Load()
	if err != nil {
		return err
	}
	manifest.Runs = append(manifest.Runs, record)

	if err := os.MkdirAll(filepath.Dir(io.manifestPath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	tmp := io.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(tmp, io.manifestPath)
}
