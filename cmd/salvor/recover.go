package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/salvor/internal/assemble"
	"github.com/samcharles93/salvor/internal/bufview"
	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/internal/version"
	"github.com/samcharles93/salvor/pkg/objfile"
	"github.com/samcharles93/salvor/pkg/smf"
	"github.com/samcharles93/salvor/pkg/stl"
)

func recoverCmd() *cli.Command {
	return &cli.Command{
		Name:      "recover",
		Usage:     "Salvage mesh geometry from a scene file",
		ArgsUsage: "<file>",
		Flags: append(append(append(outputFlags(), transformFlags()...),
			engineFlags()...), loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			input := cmd.Args().First()
			if input == "" {
				return cli.Exit("error: input file required", 2)
			}

			cfg := LoadConfig()
			applyRecoverConfig(cmd, cfg)
			log := newLogger()

			data, release, src, err := readSource(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", input, err), 1)
			}
			defer func() { _ = release() }()

			res, err := salvage.Recover(data, salvage.Options{
				Tunables: engineTunables(),
				Logger:   log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			archive := assemble.BuildArchive(res, groupTransform(), assemble.Provenance{
				Tool:         "salvor " + version.String(),
				SourceFile:   src.name,
				SourceSHA256: src.sha256,
				SourceBytes:  src.bytes,
			})
			out, err := writeArchive(archive, outputFormat, input, cfg.OutDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Printf("File: %s (%d bytes, variant=%s)\n", input, src.bytes, res.Header.Variant)
			fmt.Println("Strategies:")
			for _, rep := range res.Strategies {
				if rep.Skipped {
					fmt.Printf("  %-8s skipped\n", rep.Name)
					continue
				}
				line := fmt.Sprintf("  %-8s %d candidates, %d vertices", rep.Name, rep.Candidates, rep.Vertices)
				if rep.Fault != "" {
					line += " (faulted: " + rep.Fault + ")"
				}
				fmt.Println(line)
			}
			fmt.Println("Meshes:")
			for i := range archive.Meshes {
				m := &archive.Meshes[i]
				fmt.Printf("  %-16s %8d vertices %8d triangles\n", m.Name, m.VertexCount(), m.TriangleCount())
			}
			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
}

// sourceInfo captures provenance facts about an input file.
type sourceInfo struct {
	name   string
	sha256 string
	bytes  int64
}

// readSource maps the input read-only and hashes it for the manifest.
func readSource(path string) ([]byte, func() error, sourceInfo, error) {
	data, release, err := bufview.MapFile(path)
	if err != nil {
		return nil, nil, sourceInfo{}, err
	}
	sum := sha256.Sum256(data)
	return data, release, sourceInfo{
		name:   filepath.Base(path),
		sha256: hex.EncodeToString(sum[:]),
		bytes:  int64(len(data)),
	}, nil
}

// writeArchive exports the archive in the requested format, resolving the
// destination from the input path when --out is not set.
func writeArchive(a *smf.Archive, format, inPath, cfgOutDir string) (string, error) {
	ext, ok := formatExt(format)
	if !ok {
		return "", fmt.Errorf("unsupported output format %q (want smf, stl, obj or json)", format)
	}
	out, _, err := resolveOutPath(inPath, outPath, cfgOutDir, ext)
	if err != nil {
		return "", err
	}

	switch format {
	case "smf":
		err = smf.WriteFile(out, a)
	case "stl":
		positions, indices := mergeMeshes(a)
		err = stl.WriteFile(out, positions, indices)
	case "obj":
		positions, indices := mergeMeshes(a)
		name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
		err = objfile.WriteFile(out, name, positions, indices)
	case "json":
		err = writeReport(out, a)
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// mergeMeshes flattens archive meshes into one vertex/index buffer for the
// single-mesh export formats. Viewer transforms were applied when the archive
// was built, so the group here is identity.
func mergeMeshes(a *smf.Archive) ([]float32, []uint32) {
	cands := make([]salvage.Candidate, 0, len(a.Meshes))
	for i := range a.Meshes {
		m := &a.Meshes[i]
		cands = append(cands, salvage.Candidate{Name: m.Name, Positions: m.Positions, Indices: m.Indices})
	}
	return assemble.Build(cands, assemble.Transform{}).Merge()
}

type meshReport struct {
	Name      string        `json:"name"`
	Vertices  int           `json:"vertices"`
	Triangles int           `json:"triangles"`
	Color     string        `json:"color"`
	Bounds    *boundsReport `json:"bounds,omitempty"`
}

type boundsReport struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// writeReport dumps the manifest plus a mesh summary as indented JSON. The
// packer stamps the manifest totals at write time; mirror that here since no
// pack step runs for this format.
func writeReport(path string, a *smf.Archive) error {
	report := struct {
		Manifest smf.Manifest `json:"manifest"`
		Meshes   []meshReport `json:"meshes"`
	}{Manifest: a.Manifest}

	verts, tris := 0, 0
	for i := range a.Meshes {
		m := &a.Meshes[i]
		verts += m.VertexCount()
		tris += m.TriangleCount()
		mr := meshReport{
			Name:      m.Name,
			Vertices:  m.VertexCount(),
			Triangles: m.TriangleCount(),
			Color:     assemble.ColorHex(i),
		}
		if b, ok := assemble.BoundsOf(m.Positions); ok {
			mr.Bounds = &boundsReport{Min: b.Min, Max: b.Max}
		}
		report.Meshes = append(report.Meshes, mr)
	}
	report.Manifest.MeshCount = len(a.Meshes)
	report.Manifest.TotalVertices = verts
	report.Manifest.TotalTriangles = tris

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
