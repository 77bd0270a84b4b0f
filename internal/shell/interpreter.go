// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package shell is the interactive loop: it reads lines, runs built-ins,
// hands everything else to the pipeline parser and runner, and journals the
// result.
package shell

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/marcelocantos/lsh/internal/audit"
	"github.com/marcelocantos/lsh/internal/launch"
	"github.com/marcelocantos/lsh/internal/pipeline"
)

// DefaultPrompt is shown before each line unless configured otherwise.
const DefaultPrompt = "lsh$ "

// StatusSyntaxError is the status of a line that does not parse.
const StatusSyntaxError = 2

// Journal records executed lines.
type Journal interface {
	Log(rec audit.Record) error
}

// Interpreter runs lines one at a time.
type Interpreter struct {
	reader   LineReader
	runner   *launch.Runner
	builtins *Registry
	journal  Journal
	state    *State
	limits   pipeline.Limits
	prompt   string
	dir      string

	stdout      io.Writer
	stderr      io.Writer
	promptColor *color.Color
	errColor    *color.Color
	log         *log.Logger

	last atomic.Int64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithReader sets where lines come from. Without one, Run reads nothing.
func WithReader(r LineReader) Option {
	return func(in *Interpreter) { in.reader = r }
}

// WithJournal records every executed line in j.
func WithJournal(j Journal) Option {
	return func(in *Interpreter) { in.journal = j }
}

// WithLimits sets the parser limits.
func WithLimits(lim pipeline.Limits) Option {
	return func(in *Interpreter) { in.limits = lim }
}

// WithPrompt sets the prompt text.
func WithPrompt(prompt string) Option {
	return func(in *Interpreter) { in.prompt = prompt }
}

// WithColor turns colouring of the prompt and error messages on or off.
func WithColor(enabled bool) Option {
	return func(in *Interpreter) {
		if !enabled {
			in.promptColor.DisableColor()
			in.errColor.DisableColor()
		}
	}
}

// WithOutput sets where the interpreter writes its own messages.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(in *Interpreter) {
		in.stdout = stdout
		in.stderr = stderr
	}
}

// WithDir sets the working directory recorded in the journal.
func WithDir(dir string) Option {
	return func(in *Interpreter) { in.dir = dir }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(in *Interpreter) { in.log = logger }
}

// WithBuiltins replaces the default built-ins.
func WithBuiltins(reg *Registry) Option {
	return func(in *Interpreter) { in.builtins = reg }
}

// NewInterpreter returns an interpreter that launches stages with runner.
func NewInterpreter(runner *launch.Runner, opts ...Option) *Interpreter {
	in := &Interpreter{
		runner:      runner,
		builtins:    NewRegistry(),
		state:       NewState(),
		limits:      pipeline.DefaultLimits(),
		prompt:      DefaultPrompt,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		promptColor: color.New(color.FgGreen),
		errColor:    color.New(color.FgRed),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = log.New(io.Discard, "", 0)
	}
	if in.dir == "" {
		in.dir, _ = os.Getwd()
	}
	return in
}

// State returns the run state shared with signal handling.
func (in *Interpreter) State() *State {
	return in.state
}

// Status returns the status of the most recent line.
func (in *Interpreter) Status() int {
	return int(in.last.Load())
}

func (in *Interpreter) setStatus(status int) {
	in.last.Store(int64(status))
}

// Stop ends the loop after the current line and closes the reader so a
// pending read returns.
func (in *Interpreter) Stop() {
	in.state.Stop()
	if in.reader != nil {
		if err := in.reader.Close(); err != nil {
			in.log.Printf("close reader: %v", err)
		}
	}
}

// Run reads and executes lines until exit, end of input or Stop, and returns
// the status of the last line.
func (in *Interpreter) Run(ctx context.Context) int {
	if in.reader == nil {
		return in.Status()
	}
	for in.state.Running() && ctx.Err() == nil {
		line, status := in.reader.ReadLine(in.promptColor.Sprint(in.prompt))
		if !in.state.Running() {
			break
		}
		switch status {
		case ReadOK:
			in.Execute(ctx, line)
		case ReadInterrupted:
			fmt.Fprintln(in.stdout)
		case ReadEOF:
			in.Execute(ctx, exitBuiltin{}.Name())
		case ReadTooLong:
			in.log.Printf("line too long, discarded")
		}
	}
	return in.Status()
}

// Execute runs one line: a built-in if the whole line names one, otherwise a
// pipeline. Errors are reported on the interpreter's stderr; the returned
// status is also kept for Status.
func (in *Interpreter) Execute(ctx context.Context, line string) int {
	line = strings.TrimSpace(line)
	if line == "" {
		return in.Status()
	}
	if b, ok := in.builtins.Lookup(line); ok {
		in.setStatus(b.Run(ctx, in))
		return in.Status()
	}

	start := time.Now()
	rec := audit.Record{Line: line, Cwd: in.dir}

	p, err := pipeline.Parse(line, in.limits)
	if err != nil {
		in.errColor.Fprintf(in.stderr, "lsh: %v\n", err)
		in.setStatus(StatusSyntaxError)
		rec.Err = err
		in.record(rec, start)
		return in.Status()
	}
	if len(p.Stages) == 0 {
		return in.Status()
	}

	rep, err := in.runner.Run(ctx, p)
	in.setStatus(rep.Status())
	rec.Commands = p.Commands()
	rec.Operators = p.Operators()
	rec.Pids = rep.Pids()
	rec.BackgroundPids = rep.BackgroundPids()
	rec.ExitCodes = rep.ExitCodes()
	rec.Err = err
	in.record(rec, start)
	return in.Status()
}

func (in *Interpreter) record(rec audit.Record, start time.Time) {
	if in.journal == nil {
		return
	}
	rec.Duration = time.Since(start)
	if err := in.journal.Log(rec); err != nil {
		in.log.Printf("audit: %v", err)
	}
}
