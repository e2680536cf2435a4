package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command runs an external converter such as markitdown. The converter is
// called with the path of a temporary copy of the file and must print
// markdown on stdout.
type Command struct {
	name string
	args []string
	path string // resolved executable, empty when not installed
}

// NewCommand looks name up on PATH. A command that is not installed is still
// returned; Available reports false for it.
func NewCommand(name string, args ...string) *Command {
	c := &Command{name: name, args: args}
	if name != "" {
		if p, err := exec.LookPath(name); err == nil {
			c.path = p
		}
	}
	return c
}

// ParseCommand splits a command line such as "markitdown --keep-data-uris".
func ParseCommand(line string) *Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return NewCommand("")
	}
	return NewCommand(fields[0], fields[1:]...)
}

// Name returns the command name.
func (c *Command) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Available reports whether the command was found on PATH.
func (c *Command) Available() bool {
	return c != nil && c.path != ""
}

// Convert writes raw to a temporary file named after filename and returns the
// command's stdout.
func (c *Command) Convert(ctx context.Context, filename string, raw []byte) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("%w: %s is not installed", ErrUnavailable, c.Name())
	}

	dir, err := os.MkdirTemp("", "polyllm-extract-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, append(append([]string{}, c.args...), tmp)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", failed(filename, fmt.Errorf("%s: %s", c.name, msg))
	}
	return strings.TrimSpace(stdout.String()), nil
}
