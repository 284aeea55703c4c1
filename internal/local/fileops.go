package local

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"stagehand/internal/plan"
)

// fileOperation delegates an allow-listed operation to the parent task's
// workspace directory. The operation and params travel through verbatim;
// any workspace error maps to a failed step.
func (r *Runner) fileOperation(parentTaskID string, input map[string]any) (*Result, error) {
	if r.workspaces == nil {
		return nil, fmt.Errorf("file_operation: no workspace manager configured")
	}
	op, err := getString(input, "operation")
	if err != nil {
		return nil, fmt.Errorf("file_operation: %w", err)
	}
	if _, ok := plan.FileOperationParams(op); !ok {
		return nil, fmt.Errorf("file_operation: operation '%s' is not allowed", op)
	}
	params, ok := input["params"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("file_operation: 'params' must be an object")
	}

	dir, err := r.workspaces.ForTask(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("file_operation: %w", err)
	}

	relPath, err := getString(params, "path")
	if err != nil {
		return nil, fmt.Errorf("file_operation: %w", err)
	}

	switch op {
	case "create_file":
		if err := dir.CreateFile(relPath); err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath}}, nil
	case "write_file", "append_file":
		content, err := getString(params, "content")
		if err != nil {
			return nil, fmt.Errorf("file_operation: %w", err)
		}
		if op == "write_file" {
			err = dir.WriteFile(relPath, content)
		} else {
			err = dir.AppendFile(relPath, content)
		}
		if err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath, "bytes": len(content)}}, nil
	case "read_file":
		content, err := dir.ReadFile(relPath)
		if err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath, "content": content}}, nil
	case "delete_file":
		if err := dir.DeleteFile(relPath); err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath, "deleted": true}}, nil
	case "create_directory":
		if err := dir.CreateDirectory(relPath); err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath}}, nil
	case "list_directory":
		entries, err := dir.ListDirectory(relPath)
		if err != nil {
			return nil, err
		}
		return &Result{Data: map[string]any{"path": relPath, "entries": entries}}, nil
	default:
		return nil, fmt.Errorf("file_operation: operation '%s' is not allowed", op)
	}
}

// download fetches a URL into the task workspace.
func (r *Runner) download(ctx context.Context, parentTaskID string, input map[string]any) (*Result, error) {
	if r.workspaces == nil {
		return nil, fmt.Errorf("download_file: no workspace manager configured")
	}
	rawURL, err := getString(input, "url")
	if err != nil {
		return nil, fmt.Errorf("download_file: %w", err)
	}
	filename, _ := input["filename"].(string)
	if strings.TrimSpace(filename) == "" {
		// Name from the URL path only, never the query or fragment.
		if u, perr := url.Parse(rawURL); perr == nil {
			filename = path.Base(u.Path)
		}
		if filename == "" || filename == "." || filename == "/" {
			filename = "download"
		}
	}

	dir, err := r.workspaces.ForTask(parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("download_file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download_file: bad url: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download_file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download_file: http status %d for %s", resp.StatusCode, rawURL)
	}

	saved, n, err := dir.SaveStream(filename, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download_file: %w", err)
	}
	return &Result{Data: map[string]any{"path": saved, "bytes": n, "url": rawURL}}, nil
}
