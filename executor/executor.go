// Package executor runs commands either on the local machine or on a
// remote machine reached through a persistent, multiplexed SSH control
// socket, optionally prefixing sudo when the target user is not root.
//
// It is the generalized form of the `command` helper in the teacher
// library's zfs.go: the same Run/stdin/stdout wiring and stderr capture,
// but parameterized over a Target instead of always running locally.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	sshBinary  = "ssh"
	sudoBinary = "sudo"
)

// Target describes where a command should run: the local machine when
// Host is empty, or a remote machine reached through an already-open SSH
// control socket otherwise.
type Target struct {
	Host          string // empty means local
	User          string
	ControlSocket string // SSH -S path, required when Host is set
	IsRoot        bool   // true when the acting user is already root
}

// IsLocal reports whether the target is the machine the orchestrator runs on.
func (t Target) IsLocal() bool {
	return t.Host == ""
}

func (t Target) String() string {
	if t.IsLocal() {
		return "local"
	}
	return fmt.Sprintf("%s@%s", t.User, t.Host)
}

// CommandError is returned when a spawned command exits non-zero.
type CommandError struct {
	Err    error
	Argv   []string
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %q => %s", e.Err, strings.Join(e.Argv, " "), strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Executor spawns argv, either locally or against a remote Target.
type Executor interface {
	// Run executes argv to completion and returns its stdout split into
	// whitespace-delimited fields per line, the way `zfs -H` output is
	// parsed throughout this project.
	Run(ctx context.Context, target Target, needsRoot bool, argv []string) ([][]string, error)

	// RunStreamed executes argv to completion, reading its stdin from in
	// (if non-nil) and writing its stdout to out (if non-nil).
	RunStreamed(ctx context.Context, target Target, needsRoot bool, argv []string, in io.Reader, out io.Writer) error

	// Start begins argv without waiting for it to finish, returning a
	// Process whose Stdin/Stdout pipes are ready for use in a larger
	// pipeline, i.e. connecting this process's stdout directly to the
	// next stage's stdin.
	Start(ctx context.Context, target Target, needsRoot bool, argv []string) (*Process, error)
}

// ProcessExecutor is the real Executor, backed by os/exec.
type ProcessExecutor struct{}

// New returns the real, OS-backed Executor.
func New() *ProcessExecutor {
	return &ProcessExecutor{}
}

func (e *ProcessExecutor) buildArgv(target Target, needsRoot bool, argv []string) (string, []string) {
	needsSudo := needsRoot && !target.IsRoot

	if target.IsLocal() {
		if needsSudo {
			return sudoBinary, append([]string{argv[0]}, argv[1:]...)
		}
		return argv[0], argv[1:]
	}

	remote := argv
	if needsSudo {
		remote = append([]string{sudoBinary}, argv...)
	}

	sshArgs := []string{"-S", target.ControlSocket, fmt.Sprintf("%s@%s", target.User, target.Host), quoteArgv(remote)}
	return sshBinary, sshArgs
}

// command builds a Cmd whose whole process group, not just its leader, is
// terminated on ctx cancellation: procAttributes() puts the process in its
// own group, and cmd.Cancel replaces exec.CommandContext's default
// leader-only kill with killGroup so mbuffer/pv/the compressor/ssh all go
// down with it (spec §5). WaitDelay gives a cancelled command a grace
// period to exit before Wait gives up on it.
func (e *ProcessExecutor) command(ctx context.Context, target Target, needsRoot bool, argv []string) *exec.Cmd {
	bin, args := e.buildArgv(target, needsRoot, argv)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.SysProcAttr = procAttributes()
	cmd.Cancel = func() error {
		return killGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second
	return cmd
}

func (e *ProcessExecutor) Run(ctx context.Context, target Target, needsRoot bool, argv []string) ([][]string, error) {
	cmd := e.command(ctx, target, needsRoot, argv)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, &CommandError{Err: err, Argv: argv, Stderr: stderr.String()}
	}

	return splitLines(stdout.String()), nil
}

func (e *ProcessExecutor) RunStreamed(ctx context.Context, target Target, needsRoot bool, argv []string, in io.Reader, out io.Writer) error {
	cmd := e.command(ctx, target, needsRoot, argv)
	cmd.Stdin = in

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if out != nil {
		cmd.Stdout = out
	}

	err := cmd.Run()
	if err != nil {
		return &CommandError{Err: err, Argv: argv, Stderr: stderr.String()}
	}
	return nil
}

// Process is a started-but-not-yet-waited command, exposing pipe ends that
// can be wired into a larger pipeline DAG.
type Process struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	stderr *bytes.Buffer
	argv   []string
}

// Wait blocks until the process exits, returning a *CommandError on
// non-zero exit.
func (p *Process) Wait() error {
	err := p.cmd.Wait()
	if err != nil {
		return &CommandError{Err: err, Argv: p.argv, Stderr: p.stderr.String()}
	}
	return nil
}

// Kill terminates the process's entire process group.
func (p *Process) Kill() error {
	return killGroup(p.cmd, syscall.SIGTERM)
}

func (e *ProcessExecutor) Start(ctx context.Context, target Target, needsRoot bool, argv []string) (*Process, error) {
	cmd := e.command(ctx, target, needsRoot, argv)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("executor: error opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("executor: error opening stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Err: err, Argv: argv, Stderr: stderr.String()}
	}

	return &Process{cmd: cmd, Stdin: stdin, Stdout: stdout, stderr: stderr, argv: argv}, nil
}

func splitLines(output string) [][]string {
	lines := strings.Split(output, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	result := make([][]string, len(lines))
	for i, l := range lines {
		result[i] = strings.Fields(l)
	}
	return result
}
