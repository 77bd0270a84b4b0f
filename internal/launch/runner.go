// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcelocantos/lsh/internal/pipeline"
)

// Launched records one stage that was started.
type Launched struct {
	Stage int
	Args  []string
	Pid   int
	Wait  bool
}

// Report describes what Run did with one pipeline.
type Report struct {
	Launched []Launched
	Exits    []Exit // synchronous stages, in launch order
	Failed   int    // stages that could not be wired or launched

	lastFailed bool
}

// Status returns the status of the last synchronous stage: its exit code, or
// 1 if it could not be launched.
func (r *Report) Status() int {
	if r.lastFailed {
		return 1
	}
	if len(r.Exits) == 0 {
		return 0
	}
	return r.Exits[len(r.Exits)-1].Code
}

// Pids returns the pid of every launched stage.
func (r *Report) Pids() []int {
	pids := make([]int, 0, len(r.Launched))
	for _, l := range r.Launched {
		pids = append(pids, l.Pid)
	}
	return pids
}

// BackgroundPids returns the pids that were not waited on.
func (r *Report) BackgroundPids() []int {
	var pids []int
	for _, l := range r.Launched {
		if !l.Wait {
			pids = append(pids, l.Pid)
		}
	}
	return pids
}

// WaitedPids returns the pids that were waited on, in wait order.
func (r *Report) WaitedPids() []int {
	pids := make([]int, 0, len(r.Exits))
	for _, e := range r.Exits {
		pids = append(pids, e.Pid)
	}
	return pids
}

// ExitCodes returns the exit codes of the waited stages.
func (r *Report) ExitCodes() []int {
	codes := make([]int, 0, len(r.Exits))
	for _, e := range r.Exits {
		codes = append(codes, e.Code)
	}
	return codes
}

// Runner turns a parsed pipeline into running processes.
type Runner struct {
	stdio      Stdio
	dir        string
	appendMode bool
	perm       os.FileMode
	reaper     *Reaper
	log        *log.Logger
	newPipe    func() (*Pair, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdio sets the streams stages inherit.
func WithStdio(s Stdio) Option {
	return func(r *Runner) { r.stdio = s }
}

// WithDir runs stages in dir and resolves relative redirect targets there.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithAppend makes > and 2> append instead of truncating.
func WithAppend(appendMode bool) Option {
	return func(r *Runner) { r.appendMode = appendMode }
}

// WithFileMode sets the permissions of files created by redirection.
func WithFileMode(perm os.FileMode) Option {
	return func(r *Runner) { r.perm = perm }
}

// WithReaper shares a reaper between runners.
func WithReaper(reaper *Reaper) Option {
	return func(r *Runner) { r.reaper = reaper }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.log = logger }
}

// NewRunner returns a Runner using the process's stdio, truncating
// redirection and 0644 for created files unless overridden.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		stdio:   OSStdio(),
		perm:    0644,
		newPipe: NewPipe,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = log.New(io.Discard, "", 0)
	}
	if r.reaper == nil {
		r.reaper = NewReaper(r.log)
	}
	return r
}

// Reaper returns the reaper collecting this runner's processes.
func (r *Runner) Reaper() *Reaper {
	return r.reaper
}

// Run launches every stage of p left to right and then waits for the
// synchronous ones in launch order.
//
// Before each launch the stage's descriptors are allocated: its outgoing
// pipe, opened redirect files and duplicated descriptors. After the launch
// the parent closes all of them except the read end of the outgoing pipe,
// which becomes the next stage's stdin and is closed once that stage is
// launched. A stage whose wiring fails is reported and skipped; the rest of
// the line still runs.
func (r *Runner) Run(ctx context.Context, p *pipeline.Pipeline) (*Report, error) {
	rep := &Report{}
	launcher := NewLauncher(r.stdio, r.dir)

	var queue WaitQueue
	var carry *Pair
	defer func() { carry.Close() }()

	for i := range p.Stages {
		st := &p.Stages[i]
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		w, next, err := r.wire(st, carry)
		carry = next
		if err != nil {
			w.Close()
			fmt.Fprintf(r.stderr(), "lsh: %v\n", err)
			r.fail(rep, st)
			continue
		}

		proc, err := launcher.Launch(st.Args, w)
		w.Close()
		if err != nil {
			r.log.Printf("launch %s: %v", strings.Join(st.Args, " "), err)
			r.fail(rep, st)
			continue
		}

		r.log.Printf("launched %s wait=%t", proc, st.Wait())
		rep.Launched = append(rep.Launched, Launched{Stage: i, Args: st.Args, Pid: proc.Pid, Wait: st.Wait()})
		done := r.reaper.Watch(proc)
		if st.Wait() {
			queue.Push(proc.Pid, done)
			rep.lastFailed = false
		}
	}

	rep.Exits = queue.Drain(ctx)
	return rep, ctx.Err()
}

func (r *Runner) fail(rep *Report, st *pipeline.Stage) {
	rep.Failed++
	if st.Wait() {
		rep.lastFailed = true
	}
}

// wire allocates the descriptors for one stage. carry is the read end of the
// previous stage's pipe, or nil. The returned wiring owns carry from here on;
// next is the read end this stage hands to the following one. On error the
// pipe to the next stage still exists, so that stage reads end-of-file.
func (r *Runner) wire(st *pipeline.Stage, carry *Pair) (w *Wiring, next *Pair, err error) {
	w = &Wiring{Stdin: carry}
	if st.PipeIn && carry == nil {
		// The producer's pipe was never made; read end-of-file rather than
		// the interpreter's own input.
		empty, err := OpenInput(os.DevNull)
		if err != nil {
			return w, nil, err
		}
		w.Stdin = empty
	}

	if st.PipeOut {
		pipe, err := r.newPipe()
		if err != nil {
			return w, nil, err
		}
		next = &Pair{Read: pipe.Read}
		w.Stdout = &Pair{Write: pipe.Write}
	}

	if st.Stdin != nil {
		in, err := OpenInput(r.resolve(st.Stdin.Path))
		if err != nil {
			return w, next, targetError(st.Stdin, err)
		}
		replace(&w.Stdin, in)
	}
	if st.Stdout != nil {
		out, err := r.openSink(st.Stdout)
		if err != nil {
			return w, next, targetError(st.Stdout, err)
		}
		replace(&w.Stdout, out)
	}
	if st.Stderr != nil {
		out, err := r.openSink(st.Stderr)
		if err != nil {
			return w, next, targetError(st.Stderr, err)
		}
		replace(&w.Stderr, out)
	}
	return w, next, nil
}

// openSink opens the target of > or 2>. Descriptors 1 and 2 name the
// runner's own stdout and stderr, which need not be the process's.
func (r *Runner) openSink(t *pipeline.Redirect) (*Pair, error) {
	switch {
	case t.FD == 1:
		return DupDescriptor(int(r.stdout().Fd()))
	case t.FD == 2:
		return DupDescriptor(int(r.stderr().Fd()))
	case t.FD > 0:
		return DupDescriptor(t.FD)
	}
	return OpenOutput(r.resolve(t.Path), r.appendMode, r.perm)
}

func (r *Runner) resolve(path string) string {
	if r.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.dir, path)
}

func (r *Runner) stdout() *os.File {
	if r.stdio.Stdout != nil {
		return r.stdio.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() *os.File {
	if r.stdio.Stderr != nil {
		return r.stdio.Stderr
	}
	return os.Stderr
}

func targetError(t *pipeline.Redirect, err error) error {
	return fmt.Errorf("%s: %w", t, unwrapPath(err))
}
