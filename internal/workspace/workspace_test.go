package workspace

import (
	"strings"
	"testing"
)

func testDir(t *testing.T) *TaskDir {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	dir, err := m.ForTask("task-1")
	if err != nil {
		t.Fatalf("ForTask failed: %v", err)
	}
	return dir
}

func TestPathConfinement(t *testing.T) {
	dir := testDir(t)

	testCases := []struct {
		name        string
		path        string
		expectError bool
	}{
		{name: "Plain relative path", path: "notes.txt"},
		{name: "Nested relative path", path: "sub/dir/notes.txt"},
		{name: "Dot segments that stay inside", path: "sub/../notes.txt"},
		{name: "Parent escape", path: "../outside.txt", expectError: true},
		{name: "Deep parent escape", path: "a/../../../etc/passwd", expectError: true},
		{name: "Empty path", path: "  ", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := dir.WriteFile(tc.path, "x")
			if tc.expectError && err == nil {
				t.Errorf("Expected %q to be rejected, but it was written", tc.path)
			}
			if !tc.expectError && err != nil {
				t.Errorf("Did not expect an error for %q, but got: %v", tc.path, err)
			}
		})
	}
}

func TestReadWriteAppendDelete(t *testing.T) {
	dir := testDir(t)

	if err := dir.WriteFile("log.txt", "one\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := dir.AppendFile("log.txt", "two\n"); err != nil {
		t.Fatalf("AppendFile failed: %v", err)
	}
	content, err := dir.ReadFile("log.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if content != "one\ntwo\n" {
		t.Errorf("ReadFile = %q, want %q", content, "one\ntwo\n")
	}

	if err := dir.DeleteFile("log.txt"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := dir.ReadFile("log.txt"); err == nil {
		t.Error("Expected a read after delete to fail, but it did not")
	}
}

func TestListDirectory(t *testing.T) {
	dir := testDir(t)

	if err := dir.WriteFile("b.txt", "x"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := dir.WriteFile("a.txt", "x"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := dir.CreateDirectory("sub"); err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}

	entries, err := dir.ListDirectory(".")
	if err != nil {
		t.Fatalf("ListDirectory failed: %v", err)
	}
	want := []string{"a.txt", "b.txt", "sub/"}
	if len(entries) != len(want) {
		t.Fatalf("ListDirectory = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i], want[i])
		}
	}
}

func TestSaveStream(t *testing.T) {
	dir := testDir(t)

	path, n, err := dir.SaveStream("dl/data.bin", strings.NewReader("stream bytes"))
	if err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}
	if n != int64(len("stream bytes")) {
		t.Errorf("SaveStream wrote %d bytes, want %d", n, len("stream bytes"))
	}
	if !strings.HasPrefix(path, dir.Path()) {
		t.Errorf("Saved path %q is outside the sandbox %q", path, dir.Path())
	}
}

func TestForTaskSanitizesID(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	dir, err := m.ForTask("../../escape")
	if err != nil {
		t.Fatalf("ForTask failed: %v", err)
	}
	if strings.Contains(dir.Path(), "..") {
		t.Errorf("Task directory %q was not sanitized", dir.Path())
	}
	if _, err := m.ForTask("  "); err == nil {
		t.Error("Expected an empty task id to be rejected, but it was not")
	}
}
