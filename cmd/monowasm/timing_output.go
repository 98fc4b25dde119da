package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"monowasm/internal/buildpipeline"
)

// printStageTimings writes the per-stage summary of a build, failed or not.
func printStageTimings(out io.Writer, res buildpipeline.BuildResult) error {
	if out == nil || len(res.Report.Phases) == 0 {
		return nil
	}
	_, err := fmt.Fprint(out, res.Report.String())
	return err
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
