// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"maps"
	"path/filepath"
	"slices"
	"testing"
)

// MinimalProject returns the files of the smallest project the engine
// accepts: a project file with no modules and an empty inventory.
func MinimalProject() map[string]string {
	return map[string]string{
		"bolt-project.yaml": "name: site\nmodules: []\n",
		"inventory.yaml":    "targets: []\n",
	}
}

// ProjectArchive returns files as a gzip-compressed tar, entries sorted by
// name.
func ProjectArchive(t testing.TB, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range slices.Sorted(maps.Keys(files)) {
		content := files[name]
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write tar entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// MustWriteProjectArchive writes ProjectArchive(files) to a temporary
// site.tar.gz and returns its path. A nil files map means MinimalProject.
func MustWriteProjectArchive(t testing.TB, files map[string]string) string {
	t.Helper()

	if files == nil {
		files = MinimalProject()
	}
	path := filepath.Join(t.TempDir(), "site.tar.gz")
	MustWriteFile(t, path, string(ProjectArchive(t, files)))
	return path
}
