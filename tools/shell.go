package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/djav1985/v-axion-ai/core"
)

const shellTimeout = 60 * time.Second

// cmdGuard enforces the shell allowlist. The single entry "all"
// disables the guard; otherwise the command's program must match an
// allowed name, an allowed absolute path, or sit under an allowed
// directory.
type cmdGuard struct {
	allowed []string
}

func (g *cmdGuard) check(command string) error {
	for _, entry := range g.allowed {
		if strings.EqualFold(entry, "all") {
			return nil
		}
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("shell command not allowed: <empty>")
	}
	prog := fields[0]

	var resolved string
	if strings.ContainsRune(prog, filepath.Separator) {
		resolved, _ = filepath.Abs(prog)
	} else if located, err := exec.LookPath(prog); err == nil {
		resolved, _ = filepath.Abs(located)
	}

	for _, entry := range g.allowed {
		if strings.ContainsRune(entry, filepath.Separator) {
			target, err := filepath.Abs(entry)
			if err != nil || resolved == "" {
				continue
			}
			if resolved == target || strings.HasPrefix(resolved, target+string(filepath.Separator)) {
				return nil
			}
		} else if prog == entry {
			return nil
		}
	}
	return fmt.Errorf("shell command not allowed: %s", prog)
}

type shellArgs struct {
	Command string `json:"command"`
}

// registerShellTool adds shell.run guarded by the command allowlist.
// The subprocess gets its own deadline so a hung command cannot wedge
// the invoking actor forever.
func registerShellTool(r *Registry, allowed []string) error {
	guard := &cmdGuard{allowed: allowed}
	schema := ObjectSchema(map[string]interface{}{
		"command": StringProperty("Shell command executed with sh -c"),
	}, "command")

	return r.Register(NewTool("shell.run", "Execute a shell command.", schema,
		func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
			var in shellArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fail("bad arguments: %v", err), nil
			}
			if strings.TrimSpace(in.Command) == "" {
				return fail("command must be non-empty"), nil
			}
			if err := guard.check(in.Command); err != nil {
				return fail("%v", err), nil
			}

			runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			code := 0
			if err != nil {
				if exitErr, okExit := err.(*exec.ExitError); okExit {
					code = exitErr.ExitCode()
				} else {
					return fail("run %q: %v", in.Command, err), nil
				}
			}
			return ok(map[string]any{
				"command":    in.Command,
				"returncode": code,
				"stdout":     stdout.String(),
				"stderr":     stderr.String(),
			}), nil
		}))
}
