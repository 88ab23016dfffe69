package gpu

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner resolves and runs vendor tools.
// Tests replace it with a scripted implementation.
type CommandRunner interface {
	// LookPath reports where file is on PATH.
	LookPath(file string) (string, error)

	// Run executes name with args and returns its stdout. env is appended to
	// the current process environment.
	Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// execRunner runs real processes via os/exec.
type execRunner struct{}

// NewExecRunner returns the CommandRunner backed by os/exec.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (execRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	setCommandLine(cmd, name, args)
	cmd.Env = append(os.Environ(), env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return output, fmt.Errorf("%w: %s", err, msg)
		}
		return output, err
	}
	return output, nil
}
