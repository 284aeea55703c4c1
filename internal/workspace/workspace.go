// Package workspace gives each parent task an exclusive directory for
// filesystem-flavored local actions. Operations are allow-listed and every
// path is confined to the task's directory.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Manager owns the workspace root under which per-task directories live.
type Manager struct {
	root string
}

func NewManager(root string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		root = "workspaces"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("could not create workspace root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// ForTask returns the exclusive directory for one parent task, creating it
// on first use.
func (m *Manager) ForTask(parentTaskID string) (*TaskDir, error) {
	if strings.TrimSpace(parentTaskID) == "" {
		return nil, fmt.Errorf("parent task id is empty")
	}
	dir := filepath.Join(m.root, filepath.Base(parentTaskID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create task workspace: %w", err)
	}
	return &TaskDir{dir: dir}, nil
}

// TaskDir is one parent task's sandbox.
type TaskDir struct {
	dir string
}

// Path returns the sandbox directory.
func (d *TaskDir) Path() string { return d.dir }

// resolve confines a relative path to the sandbox.
func (d *TaskDir) resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is empty")
	}
	joined := filepath.Join(d.dir, filepath.FromSlash(rel))
	clean := filepath.Clean(joined)
	if clean != d.dir && !strings.HasPrefix(clean, d.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the task workspace", rel)
	}
	return clean, nil
}

func (d *TaskDir) CreateFile(rel string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create parent directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	return f.Close()
}

func (d *TaskDir) WriteFile(rel, content string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}
	return nil
}

func (d *TaskDir) AppendFile(rel, content string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open file for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("could not append to file: %w", err)
	}
	return nil
}

func (d *TaskDir) ReadFile(rel string) (string, error) {
	path, err := d.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(data), nil
}

func (d *TaskDir) DeleteFile(rel string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

func (d *TaskDir) CreateDirectory(rel string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}
	return nil
}

func (d *TaskDir) ListDirectory(rel string) ([]string, error) {
	path, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("could not list directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveStream writes a download stream to a file inside the sandbox and
// returns the absolute path plus bytes written.
func (d *TaskDir) SaveStream(rel string, r io.Reader) (string, int64, error) {
	path, err := d.resolve(rel)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("could not create parent directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return "", 0, fmt.Errorf("could not write download: %w", err)
	}
	return path, n, nil
}
