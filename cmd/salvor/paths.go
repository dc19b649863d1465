package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envSalvorOutDir = "SALVOR_OUT_DIR"

// resolveOutPath picks where an exported file lands. An explicit --out wins;
// otherwise the input's stem plus the format extension goes into
// $SALVOR_OUT_DIR, the config out_dir, or the working directory, in that
// order. The parent directory is created either way.
func resolveOutPath(inPath, outFlag, cfgDir, ext string) (string, bool, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		out := filepath.Clean(outFlag)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return "", false, err
		}
		return out, false, nil
	}

	base := filepath.Base(filepath.Clean(inPath))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", true, fmt.Errorf("invalid input path: %q", inPath)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}

	outDir := strings.TrimSpace(os.Getenv(envSalvorOutDir))
	if outDir == "" {
		outDir = strings.TrimSpace(cfgDir)
	}
	if outDir == "" {
		outDir = "."
	}

	out := filepath.Join(outDir, stem+ext)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", true, err
	}
	return out, true, nil
}

// formatExt maps an output format name to its file extension.
func formatExt(format string) (string, bool) {
	switch format {
	case "smf":
		return ".smf", true
	case "stl":
		return ".stl", true
	case "obj":
		return ".obj", true
	case "json":
		return ".json", true
	}
	return "", false
}
