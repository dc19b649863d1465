package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/salvor/pkg/smf"
)

func main() {
	var (
		showManifest = flag.Bool("manifest", false, "dump the manifest JSON")
		showMeshes   = flag.Int("meshes", 20, "number of meshes to list (0 to skip, -1 for all)")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: smf_inspect [--manifest] [--meshes N] <path.smf>")
		os.Exit(2)
	}

	path := flag.Arg(0)
	f, err := smf.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	fmt.Printf("File: %s\n", path)
	fmt.Printf("SMF v%d.%d | sections=%d | size=%d | flags=%s\n",
		f.Header.Major, f.Header.Minor, f.Header.SectionCount, f.Header.FileSize,
		formatFlags(f.Header.Flags))

	fmt.Println()
	fmt.Println("Sections:")
	for i := range f.Sections {
		s := &f.Sections[i]
		fmt.Printf("  %-10s v%-2d off=%-8d size=%d\n",
			sectionName(smf.SectionType(s.Type)), s.Version, s.Offset, s.Size)
	}

	var manifest *smf.Manifest
	if sec := f.Section(smf.SectionManifest); sec != nil {
		manifest, err = smf.ParseManifest(f.SectionData(sec))
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
	if manifest != nil {
		fmt.Println()
		fmt.Println("Manifest:")
		printField("tool", manifest.Tool)
		if !manifest.CreatedAt.IsZero() {
			printField("created_at", manifest.CreatedAt.UTC().Format(time.RFC3339))
		}
		printField("source_file", manifest.SourceFile)
		printField("source_sha256", manifest.SourceSHA256)
		if manifest.SourceBytes > 0 {
			printField("source_bytes", fmt.Sprintf("%d", manifest.SourceBytes))
		}
		printField("variant", manifest.Variant)
		printField("mesh_count", fmt.Sprintf("%d", manifest.MeshCount))
		printField("total_vertices", fmt.Sprintf("%d", manifest.TotalVertices))
		printField("total_triangles", fmt.Sprintf("%d", manifest.TotalTriangles))
		for _, s := range manifest.Strategies {
			state := fmt.Sprintf("%d candidates, %d vertices", s.Candidates, s.Vertices)
			if s.Skipped {
				state = "skipped"
			}
			if s.Fault != "" {
				state += " (faulted: " + s.Fault + ")"
			}
			printField("strategy."+s.Name, state)
		}
	}

	n := *showMeshes
	if n != 0 {
		if err := printMeshes(f, n); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	if *showManifest && manifest != nil {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		fmt.Println()
		fmt.Println(string(data))
	}
}

func printField(key, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %-18s %s\n", key+":", value)
}

func printMeshes(f *smf.File, n int) error {
	sec := f.Section(smf.SectionMeshIndex)
	if sec == nil {
		return fmt.Errorf("%w: missing mesh index section", smf.ErrCorruptFile)
	}
	mi, err := smf.ParseMeshIndexSection(f.SectionData(sec))
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Meshes:")
	count := mi.Count()
	if n < 0 || n > count {
		n = count
	}
	for i := 0; i < n; i++ {
		name, err := mi.Name(i)
		if err != nil {
			return err
		}
		entry, err := mi.Entry(i)
		if err != nil {
			return err
		}
		fmt.Printf("  %-20s %8d vertices %8d triangles pos=%d+%d idx=%d+%d\n",
			name, entry.VertexCount, entry.TriangleCount,
			entry.PosOff, entry.PosSize, entry.IdxOff, entry.IdxSize)
	}
	if n < count {
		fmt.Printf("  ... (%d more)\n", count-n)
	}
	return nil
}

func formatFlags(flags uint64) string {
	if flags == 0 {
		return "none"
	}
	var names []string
	if flags&smf.FlagRecentred != 0 {
		names = append(names, "recentred")
		flags &^= smf.FlagRecentred
	}
	if flags != 0 {
		names = append(names, fmt.Sprintf("0x%x", flags))
	}
	return strings.Join(names, ",")
}

func sectionName(t smf.SectionType) string {
	switch t {
	case smf.SectionManifest:
		return "manifest"
	case smf.SectionMeshIndex:
		return "meshindex"
	case smf.SectionPositions:
		return "positions"
	case smf.SectionIndices:
		return "indices"
	}
	return fmt.Sprintf("0x%04x", uint32(t))
}
