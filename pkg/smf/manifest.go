package smf

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// Manifest is the JSON provenance record stored in SectionManifest. It says
// where the geometry came from and how it was recovered, so an archive can
// be audited long after the source file is gone.
type Manifest struct {
	ManifestVersion int       `json:"manifest_version"`
	Tool            string    `json:"tool,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	SourceFile   string `json:"source_file,omitempty"`
	SourceSHA256 string `json:"source_sha256,omitempty"`
	SourceBytes  int64  `json:"source_bytes,omitempty"`
	Variant      string `json:"variant,omitempty"`

	MeshCount      int `json:"mesh_count"`
	TotalVertices  int `json:"total_vertices"`
	TotalTriangles int `json:"total_triangles"`

	Strategies []StrategyNote `json:"strategies,omitempty"`
}

// StrategyNote records one recovery strategy's contribution.
type StrategyNote struct {
	Name       string `json:"name"`
	Skipped    bool   `json:"skipped,omitempty"`
	Candidates int    `json:"candidates"`
	Vertices   int    `json:"vertices"`
	Fault      string `json:"fault,omitempty"`
}

// EncodeManifest serialises a manifest for SectionManifest, stamping the
// current schema version.
func EncodeManifest(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("smf: nil manifest")
	}
	out := *m
	out.ManifestVersion = ManifestVersion
	return json.Marshal(&out)
}

// ParseManifest decodes a SectionManifest payload.
func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorruptFile, err)
	}
	if m.ManifestVersion == 0 {
		return nil, fmt.Errorf("%w: manifest missing version", ErrCorruptFile)
	}
	if m.ManifestVersion > ManifestVersion {
		return nil, ErrUnsupportedVersion
	}
	return &m, nil
}
