// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// ErrNotFound is returned when a program cannot be found on PATH.
var ErrNotFound = exec.ErrNotFound

// Stdio holds the interpreter's own standard streams. Stages inherit them
// for every stream their wiring leaves unset.
type Stdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// OSStdio returns the process's standard streams.
func OSStdio() Stdio {
	return Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Process is a launched stage.
type Process struct {
	Args []string
	Pid  int

	cmd *exec.Cmd
}

// wait blocks until the process exits and returns its status.
func (p *Process) wait() int {
	return exitCode(p.cmd.Wait())
}

func (p *Process) String() string {
	return fmt.Sprintf("%d (%s)", p.Pid, strings.Join(p.Args, " "))
}

// Launcher starts one stage at a time.
type Launcher struct {
	stdio    Stdio
	dir      string
	lookPath func(string) (string, error)
}

// NewLauncher returns a Launcher whose stages inherit stdio. Programs run in
// dir, or the current directory when dir is empty.
func NewLauncher(stdio Stdio, dir string) *Launcher {
	return &Launcher{stdio: stdio, dir: dir, lookPath: exec.LookPath}
}

// Launch starts args[0] with its standard streams taken from w, falling back
// to the launcher's stdio, and returns without waiting for it.
//
// A missing program is reported as "<name>: command not found" on the
// stage's stderr and ErrNotFound is returned. Other failures are reported on
// the same stream and returned as-is.
func (l *Launcher) Launch(args []string, w *Wiring) (*Process, error) {
	if len(args) == 0 {
		return nil, os.ErrInvalid
	}

	stdin, stdout, stderr := l.stdio.Stdin, l.stdio.Stdout, l.stdio.Stderr
	if w != nil {
		if w.Stdin != nil && w.Stdin.Read != nil {
			stdin = w.Stdin.Read
		}
		if w.Stdout != nil && w.Stdout.Write != nil {
			stdout = w.Stdout.Write
		}
		if w.Stderr != nil && w.Stderr.Write != nil {
			stderr = w.Stderr.Write
		}
	}

	name := args[0]
	path, err := l.lookPath(name)
	if err != nil && !errors.Is(err, exec.ErrDot) {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			report(stderr, "%s: command not found\n", name)
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		report(stderr, "lsh: %s: %v\n", name, unwrapPath(err))
		return nil, err
	}

	cmd := &exec.Cmd{
		Path:   path,
		Args:   args,
		Dir:    l.dir,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}
	if err := cmd.Start(); err != nil {
		report(stderr, "lsh: %s: %v\n", name, unwrapPath(err))
		return nil, err
	}

	return &Process{Args: args, Pid: cmd.Process.Pid, cmd: cmd}, nil
}

func report(f *os.File, format string, args ...any) {
	if f == nil {
		f = os.Stderr
	}
	fmt.Fprintf(f, format, args...)
}

// unwrapPath strips the operation and path from fs and exec errors, leaving
// the underlying cause for messages that already name the target.
func unwrapPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var ee *exec.Error
	if errors.As(err, &ee) {
		return ee.Err
	}
	return err
}

// exitCode extracts a shell-style status from the error returned by Wait.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
