// Package testutil provides golden file helpers. Run tests with -update to
// rewrite the golden files from the current output.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var update = flag.Bool("update", false, "update golden files")

// CompareGolden compares actual with the golden file at goldenPath
func CompareGolden(t *testing.T, goldenPath string, actual string) {
	t.Helper()

	if *update {
		writeGolden(t, goldenPath, actual)
		return
	}

	expected := readGolden(t, goldenPath)
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("golden file %s mismatch (-want +got):\n%s", goldenPath, diff)
	}
}

// CompareGoldenBytes is CompareGolden for byte output
func CompareGoldenBytes(t *testing.T, goldenPath string, actual []byte) {
	t.Helper()
	CompareGolden(t, goldenPath, string(actual))
}

// readGolden reads a golden file, normalising Windows line endings from checkouts
func readGolden(t *testing.T, goldenPath string) string {
	t.Helper()

	content, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("Failed to read golden file %s (run with -update to create it): %v", goldenPath, err)
	}
	return strings.ReplaceAll(string(content), "\r\n", "\n")
}

func writeGolden(t *testing.T, goldenPath string, actual string) {
	t.Helper()

	dir := filepath.Dir(goldenPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(goldenPath, []byte(actual), 0o644); err != nil {
		t.Fatalf("Failed to update golden file %s: %v", goldenPath, err)
	}
	t.Logf("Updated golden file: %s", goldenPath)
}
