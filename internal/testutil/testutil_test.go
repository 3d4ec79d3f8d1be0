// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func TestMustSetenvRestores(t *testing.T) {
	const key = "BOLTSTEP_TESTUTIL_PROBE"
	t.Cleanup(MustUnsetenv(t, key))

	cleanup := MustSetenv(t, key, "set")
	if got := os.Getenv(key); got != "set" {
		t.Fatalf("Getenv() = %q, want set", got)
	}
	cleanup()
	if _, ok := os.LookupEnv(key); ok {
		t.Error("variable should be unset after cleanup")
	}
}

func TestSetHomeDir(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(SetHomeDir(t, dir))

	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	if got := os.Getenv(key); got != dir {
		t.Errorf("%s = %q, want %q", key, got, dir)
	}
}

func TestMustWriteFileCreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "file.txt")
	MustWriteFile(t, path, "content")
	if got := MustReadFile(t, path); got != "content" {
		t.Errorf("MustReadFile() = %q", got)
	}
}

func TestProjectArchive(t *testing.T) {
	t.Parallel()

	path := MustWriteProjectArchive(t, nil)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("tar Next() error = %v", err)
		}
		names = append(names, hdr.Name)
	}
	if want := []string{"bolt-project.yaml", "inventory.yaml"}; !slices.Equal(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}
