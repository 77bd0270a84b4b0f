// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/readline"
)

// ReadStatus is the outcome of asking for one line of input.
type ReadStatus int

const (
	ReadOK          ReadStatus = iota // a non-empty line
	ReadNoInput                       // blank line
	ReadTooLong                       // line exceeds the configured length
	ReadEOF                           // input closed
	ReadInterrupted                   // ^C while editing
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadNoInput:
		return "no input"
	case ReadTooLong:
		return "too long"
	case ReadEOF:
		return "eof"
	case ReadInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// LineReader supplies the interpreter with lines.
type LineReader interface {
	// ReadLine shows prompt and returns the trimmed line. The line is only
	// meaningful when the status is ReadOK.
	ReadLine(prompt string) (string, ReadStatus)
	Close() error
}

// ReadlineReader reads lines from a terminal, or any stream, with line
// editing. History is off.
type ReadlineReader struct {
	rl  *readline.Instance
	max int
}

// NewReadlineReader returns a reader on stdin that rejects lines of max bytes
// or more (the newline counts).
func NewReadlineReader(stdin io.Reader, stdout, stderr io.Writer, max int) (*ReadlineReader, error) {
	cfg := &readline.Config{
		Stdin:                  readline.NewCancelableStdin(stdin),
		Stdout:                 stdout,
		Stderr:                 stderr,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		FuncIsTerminal: func() bool {
			f, ok := stdin.(*os.File)
			return ok && readline.IsTerminal(int(f.Fd()))
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &ReadlineReader{rl: rl, max: max}, nil
}

func (r *ReadlineReader) ReadLine(prompt string) (string, ReadStatus) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	return classify(line, err, r.max)
}

func (r *ReadlineReader) Close() error {
	return r.rl.Close()
}

func classify(line string, err error, max int) (string, ReadStatus) {
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", ReadInterrupted
	case err != nil:
		return "", ReadEOF
	case max > 0 && len(line)+1 >= max:
		return "", ReadTooLong
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ReadNoInput
	}
	return line, ReadOK
}
