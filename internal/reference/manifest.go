package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestFile = "manifest.json"

	// SchemaVersion is bumped whenever the stored row format changes.
	SchemaVersion = 2
)

// Manifest records metadata about a built data directory.
type Manifest struct {
	BuildTime     time.Time        `json:"build_time"`
	DumpSource    string           `json:"dump_source"`
	Mode          string           `json:"mode"`
	ProductCount  int64            `json:"product_count"`
	IndexedCount  int64            `json:"indexed_count"`
	SkippedCount  int64            `json:"skipped_count"`
	SchemaVersion int              `json:"schema_version"`
	SkipReasons   map[string]int64 `json:"skip_reasons,omitempty"`
}

// ReadManifest loads the manifest.json from the given data directory.
func ReadManifest(dataDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.SchemaVersion != SchemaVersion {
		return &m, fmt.Errorf("manifest schema version %d, want %d", m.SchemaVersion, SchemaVersion)
	}
	return &m, nil
}

// WriteManifest serialises m to manifest.json inside dataDir. It writes to a
// temporary file first so a crashed import never leaves a truncated manifest.
func WriteManifest(dataDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(dataDir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dataDir, manifestFile))
}
