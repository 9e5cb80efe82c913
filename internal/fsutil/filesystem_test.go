package fsutil

import (
	"errors"
	"io/fs"
	"testing"
)

func TestMemoryFileSystem_WriteReadStat(t *testing.T) {
	m := NewMemoryFileSystem()

	if err := m.WriteFile("/scans/a.bin", []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := m.ReadFile("/scans/a.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadFile = %q, want hello", data)
	}

	info, err := m.Stat("/scans/a.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size = %d, want 5", info.Size())
	}

	if _, err := m.ReadFile("/scans/missing.bin"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile missing error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_CreateStreams(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("/out/mesh.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("4 2\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("0 0 0 0 0 1\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := m.ReadFile("/out/mesh.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "4 2\n0 0 0 0 0 1\n" {
		t.Errorf("content = %q", data)
	}
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	m := NewMemoryFileSystem()
	_ = m.MkdirAll("/session/images", 0755)
	_ = m.WriteFile("/session/images/s1.jpg", []byte("x"), 0644)
	_ = m.WriteFile("/session/images/s2.jpg", []byte("y"), 0644)
	_ = m.WriteFile("/session/mesh.txt", []byte("z"), 0644)

	if err := m.RemoveAll("/session/images"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if m.Exists("/session/images/s1.jpg") || m.Exists("/session/images/s2.jpg") {
		t.Error("image files survived RemoveAll")
	}
	if !m.Exists("/session/mesh.txt") {
		t.Error("sibling file deleted by RemoveAll")
	}
}

func TestMemoryFileSystem_MkdirAllParents(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !m.Exists(dir) {
			t.Errorf("directory %s missing", dir)
		}
	}
}
