package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djav1985/v-axion-ai/core"
)

// pathGuard enforces the filesystem allowlist. The single entry "all"
// disables the guard; otherwise a path is allowed when it equals or
// sits under one of the listed prefixes.
type pathGuard struct {
	allowed []string
}

func newPathGuard(allowed []string) *pathGuard {
	return &pathGuard{allowed: allowed}
}

func (g *pathGuard) check(path string) error {
	for _, entry := range g.allowed {
		if strings.EqualFold(entry, "all") {
			return nil
		}
	}
	norm, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("file access not allowed: %s", path)
	}
	for _, prefix := range g.allowed {
		base, err := filepath.Abs(prefix)
		if err != nil {
			continue
		}
		if norm == base || strings.HasPrefix(norm, base+string(os.PathSeparator)) {
			return nil
		}
	}
	return fmt.Errorf("file access not allowed: %s", path)
}

type pathArgs struct {
	Path string `json:"path"`
}

type pathContentArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// registerFileTools adds the file I/O catalog guarded by the allowlist.
func registerFileTools(r *Registry, allowed []string) error {
	guard := newPathGuard(allowed)
	pathSchema := ObjectSchema(map[string]interface{}{
		"path": StringProperty("Target file path"),
	}, "path")
	pathContentSchema := ObjectSchema(map[string]interface{}{
		"path":    StringProperty("Target file path"),
		"content": StringProperty("Text content"),
	}, "path", "content")

	catalog := []core.Tool{
		NewTool("file.read", "Read a text file.", pathSchema,
			func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
				var in pathArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return fail("bad arguments: %v", err), nil
				}
				if err := guard.check(in.Path); err != nil {
					return fail("%v", err), nil
				}
				data, err := os.ReadFile(in.Path)
				if err != nil {
					return fail("read %s: %v", in.Path, err), nil
				}
				return ok(map[string]any{"path": in.Path, "content": string(data)}), nil
			}),
		NewTool("file.write", "Write or overwrite a text file.", pathContentSchema,
			func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
				var in pathContentArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return fail("bad arguments: %v", err), nil
				}
				if err := guard.check(in.Path); err != nil {
					return fail("%v", err), nil
				}
				if err := os.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
					return fail("write %s: %v", in.Path, err), nil
				}
				return ok(map[string]any{"path": in.Path, "status": "written"}), nil
			}),
		NewTool("file.append", "Append text to a file.", pathContentSchema,
			func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
				var in pathContentArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return fail("bad arguments: %v", err), nil
				}
				if err := guard.check(in.Path); err != nil {
					return fail("%v", err), nil
				}
				f, err := os.OpenFile(in.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fail("append %s: %v", in.Path, err), nil
				}
				defer f.Close()
				if _, err := f.WriteString(in.Content); err != nil {
					return fail("append %s: %v", in.Path, err), nil
				}
				return ok(map[string]any{"path": in.Path, "status": "appended"}), nil
			}),
		NewTool("file.delete", "Delete a file.", pathSchema,
			func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
				var in pathArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return fail("bad arguments: %v", err), nil
				}
				if err := guard.check(in.Path); err != nil {
					return fail("%v", err), nil
				}
				if err := os.Remove(in.Path); err != nil {
					return fail("delete %s: %v", in.Path, err), nil
				}
				return ok(map[string]any{"path": in.Path, "status": "deleted"}), nil
			}),
		NewTool("fs.stat", "Inspect metadata for a file or directory.", pathSchema,
			func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
				var in pathArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return fail("bad arguments: %v", err), nil
				}
				if err := guard.check(in.Path); err != nil {
					return fail("%v", err), nil
				}
				return ok(statPayload(in.Path)), nil
			}),
	}

	for _, t := range catalog {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func statPayload(path string) map[string]any {
	payload := map[string]any{"path": path}
	info, err := os.Lstat(path)
	if err != nil {
		payload["exists"] = false
		return payload
	}
	payload["exists"] = true
	payload["is_symlink"] = info.Mode()&os.ModeSymlink != 0
	if info.IsDir() {
		payload["type"] = "dir"
	} else {
		payload["type"] = "file"
	}
	payload["size"] = info.Size()
	payload["modified"] = info.ModTime().UTC().Format(time.RFC3339)
	payload["permissions"] = uint32(info.Mode().Perm())
	return payload
}
