// Package ffmpeg holds the small amount of process plumbing shared by every
// component that drives the ffmpeg executable.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is used when no executable path is configured.
const DefaultBinary = "ffmpeg"

// Runner runs a command to completion and returns its combined output. It is
// swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs the command with os/exec. ffmpeg's listing modes always exit with a
// non-zero status, so an *exec.ExitError is not reported as long as some output
// was produced.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && buf.Len() > 0 {
		err = nil
	}
	if err != nil {
		return buf.Bytes(), fmt.Errorf("failed to run %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Run runs the command with os/exec and reports any non-zero exit status.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return buf.Bytes(), fmt.Errorf("failed to run %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Binary returns path, or DefaultBinary when path is empty.
func Binary(path string) string {
	if path == "" {
		return DefaultBinary
	}
	return path
}

// Lookup resolves the executable and reports a readable error when it is missing.
func Lookup(path string) (string, error) {
	resolved, err := exec.LookPath(Binary(path))
	if err != nil {
		return "", fmt.Errorf("ffmpeg executable not found: %w", err)
	}
	return resolved, nil
}

// StripPrefix removes the "[avfoundation @ 0x7f...] " context prefix ffmpeg puts
// in front of log lines.
func StripPrefix(line string) string {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "[") {
		return line
	}
	i := strings.Index(line, "] ")
	if i < 0 || !strings.Contains(line[:i], " @ ") {
		return line
	}
	return line[i+2:]
}

// Lines splits output into lines with the context prefix stripped.
func Lines(out []byte) []string {
	raw := strings.Split(string(out), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, StripPrefix(l))
	}
	return lines
}
