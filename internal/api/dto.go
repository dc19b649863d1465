package api

import (
	"github.com/samcharles93/salvor/internal/assemble"
	"github.com/samcharles93/salvor/internal/store"
	"github.com/samcharles93/salvor/pkg/smf"
)

// ResponseError is the body of the JSON error envelope.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// RecoverOptions are per-upload assembly overrides, posted as a JSON
// "options" field next to the file part. Absent fields keep the server
// defaults.
type RecoverOptions struct {
	Recenter     *bool    `json:"recenter,omitempty"`
	Normalize    *bool    `json:"normalize,omitempty"`
	TargetExtent *float64 `json:"target_extent,omitempty"`
}

func (o *RecoverOptions) apply(tr assemble.Transform) assemble.Transform {
	if o.Recenter != nil {
		tr.Recenter = *o.Recenter
	}
	if o.Normalize != nil {
		tr.Normalize = *o.Normalize
	}
	if o.TargetExtent != nil {
		tr.TargetExtent = float32(*o.TargetExtent)
	}
	return tr
}

// RecoveryResource is the JSON shape of one stored recovery. List
// responses carry the manifest summary; the detail endpoint adds Meshes.
type RecoveryResource struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
	SizeBytes int64  `json:"size_bytes"`

	SourceFile   string `json:"source_file,omitempty"`
	SourceSHA256 string `json:"source_sha256,omitempty"`
	SourceBytes  int64  `json:"source_bytes,omitempty"`
	Variant      string `json:"variant,omitempty"`

	MeshCount      int `json:"mesh_count,omitempty"`
	TotalVertices  int `json:"total_vertices,omitempty"`
	TotalTriangles int `json:"total_triangles,omitempty"`

	Strategies []StrategyResource `json:"strategies,omitempty"`
	Meshes     []MeshResource     `json:"meshes,omitempty"`
}

// StrategyResource reports one recovery strategy's contribution.
type StrategyResource struct {
	Name       string `json:"name"`
	Skipped    bool   `json:"skipped,omitempty"`
	Candidates int    `json:"candidates"`
	Vertices   int    `json:"vertices"`
	Fault      string `json:"fault,omitempty"`
}

// MeshResource describes one salvaged mesh with its display colour and
// bounding box.
type MeshResource struct {
	Name          string          `json:"name"`
	VertexCount   int             `json:"vertex_count"`
	TriangleCount int             `json:"triangle_count"`
	Color         string          `json:"color"`
	Bounds        *BoundsResource `json:"bounds,omitempty"`
}

type BoundsResource struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

type RecoveryList struct {
	Object string             `json:"object"`
	Data   []RecoveryResource `json:"data"`
}

type DeleteRecoveryResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type HealthResp struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func recoveryResource(entry store.Entry, m *smf.Manifest) RecoveryResource {
	r := RecoveryResource{
		ID:        entry.ID,
		Object:    "recovery",
		CreatedAt: entry.ModTime.Unix(),
		SizeBytes: entry.Size,
	}
	if m == nil {
		return r
	}
	if !m.CreatedAt.IsZero() {
		r.CreatedAt = m.CreatedAt.Unix()
	}
	r.SourceFile = m.SourceFile
	r.SourceSHA256 = m.SourceSHA256
	r.SourceBytes = m.SourceBytes
	r.Variant = m.Variant
	r.MeshCount = m.MeshCount
	r.TotalVertices = m.TotalVertices
	r.TotalTriangles = m.TotalTriangles
	for _, note := range m.Strategies {
		r.Strategies = append(r.Strategies, StrategyResource{
			Name:       note.Name,
			Skipped:    note.Skipped,
			Candidates: note.Candidates,
			Vertices:   note.Vertices,
			Fault:      note.Fault,
		})
	}
	return r
}

func recoveryDetail(entry store.Entry, a *smf.Archive) RecoveryResource {
	r := recoveryResource(entry, &a.Manifest)
	// Totals come from the meshes; a freshly built manifest has not been
	// through the packer yet.
	r.MeshCount = len(a.Meshes)
	r.TotalVertices = 0
	r.TotalTriangles = 0
	r.Meshes = make([]MeshResource, len(a.Meshes))
	for i := range a.Meshes {
		m := &a.Meshes[i]
		r.TotalVertices += m.VertexCount()
		r.TotalTriangles += m.TriangleCount()
		mr := MeshResource{
			Name:          m.Name,
			VertexCount:   m.VertexCount(),
			TriangleCount: m.TriangleCount(),
			Color:         assemble.ColorHex(i),
		}
		if b, ok := assemble.BoundsOf(m.Positions); ok {
			mr.Bounds = &BoundsResource{Min: b.Min, Max: b.Max}
		}
		r.Meshes[i] = mr
	}
	return r
}
