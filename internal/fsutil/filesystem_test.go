package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteFileReplacesAtomically(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "region.dataset.gz")

	if err := fsys.WriteFile(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.WriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestOSFileSystem_MkdirAllAndRemoveAll(t *testing.T) {
	fsys := OSFileSystem{}
	root := filepath.Join(t.TempDir(), "dump_raw", "r1")

	if err := fsys.MkdirAll(root, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if !fsys.Exists(root) {
		t.Fatal("expected directory to exist")
	}
	if err := fsys.RemoveAll(filepath.Dir(root)); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if fsys.Exists(root) {
		t.Error("expected directory to be removed")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/in/r1/slope.bil", []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/in/r1/slope.bil")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 3 || data[2] != 3 {
		t.Errorf("unexpected content %v", data)
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("abc")
	if err := mfs.WriteFile("/a", src, 0644); err != nil {
		t.Fatal(err)
	}
	src[0] = 'x'

	got, _ := mfs.ReadFile("/a")
	if string(got) != "abc" {
		t.Errorf("stored data changed through caller slice: %q", got)
	}
	got[1] = 'y'
	again, _ := mfs.ReadFile("/a")
	if string(again) != "abc" {
		t.Errorf("stored data changed through returned slice: %q", again)
	}
}

func TestMemoryFileSystem_ReadNonExistent(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_, err := mfs.ReadFile("/missing.bil")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, p := range []string{
		"/in/r2/slope.bil",
		"/in/r1/slope.bil",
		"/in/r1/slope.hdr",
		"/in/.hidden/x",
		"/in/notes.txt",
	} {
		if err := mfs.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := mfs.MkdirAll("/in/empty", 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := mfs.ReadDir("/in")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []struct {
		name  string
		isDir bool
	}{
		{".hidden", true},
		{"empty", true},
		{"notes.txt", false},
		{"r1", true},
		{"r2", true},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Name() != w.name || entries[i].IsDir() != w.isDir {
			t.Errorf("entry %d = (%s, dir=%v), want (%s, dir=%v)", i, entries[i].Name(), entries[i].IsDir(), w.name, w.isDir)
		}
	}

	sub, err := mfs.ReadDir("/in/r1")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(sub) != 2 || sub[0].Name() != "slope.bil" || sub[1].Name() != "slope.hdr" {
		t.Errorf("unexpected r1 listing: %v", sub)
	}
}

func TestMemoryFileSystem_ReadDirMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if _, err := mfs.ReadDir("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_StatImpliedDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/out/r1.dataset.gz", []byte("abcd"), 0600); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/out")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected implied directory")
	}

	info, err = mfs.Stat("/out/r1.dataset.gz")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 || info.Mode() != os.FileMode(0600) || info.IsDir() {
		t.Errorf("unexpected file info: size=%d mode=%v dir=%v", info.Size(), info.Mode(), info.IsDir())
	}
}

func TestMemoryFileSystem_RemoveAndRemoveAll(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/dump/r1.region.gz", []byte("a"), 0644)
	_ = mfs.WriteFile("/dump/r2.region.gz", []byte("b"), 0644)
	_ = mfs.WriteFile("/dumpster/keep", []byte("c"), 0644)

	if err := mfs.Remove("/dump/r1.region.gz"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if mfs.Exists("/dump/r1.region.gz") {
		t.Error("expected file removed")
	}
	if err := mfs.Remove("/dump/r1.region.gz"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist on second remove, got %v", err)
	}

	if err := mfs.RemoveAll("/dump"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if mfs.Exists("/dump") {
		t.Error("expected /dump removed")
	}
	if !mfs.Exists("/dumpster/keep") {
		t.Error("RemoveAll removed a sibling with a shared prefix")
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/out/./r1/../r1.csv", []byte("x"), 0644)
	if !mfs.Exists("/out/r1.csv") {
		t.Error("expected cleaned path to exist")
	}
}

func TestMemoryFileSystem_WriteOverDirectory(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/out/r1", 0755)
	if err := mfs.WriteFile("/out/r1", []byte("x"), 0644); err == nil {
		t.Error("expected error writing a file over a directory")
	}
}

func TestChildPath(t *testing.T) {
	tests := []struct {
		dir, p, want string
		ok           bool
	}{
		{"/in", "/in/r1/a.bil", "r1/a.bil", true},
		{"/in", "/in", "", false},
		{"/in", "/input/a", "", false},
		{"/", "/a", "a", true},
		{".", "a/b", "a/b", true},
		{".", "/abs", "", false},
	}
	for _, tt := range tests {
		got, ok := childPath(tt.dir, tt.p)
		if got != tt.want || ok != tt.ok {
			t.Errorf("childPath(%q, %q) = (%q, %v), want (%q, %v)", tt.dir, tt.p, got, ok, tt.want, tt.ok)
		}
	}
}
