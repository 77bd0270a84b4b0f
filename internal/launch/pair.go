// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pair is a descriptor pair. A pipe has both ends; a redirected file uses a
// single end and leaves the other nil.
type Pair struct {
	Read  *os.File
	Write *os.File
}

// NewPipe allocates a pipe. Both ends are close-on-exec, so a child only
// receives an end when it is wired to one of its standard streams.
func NewPipe() (*Pair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &Pair{Read: r, Write: w}, nil
}

// OpenInput opens path read-only as the read end of a pair.
func OpenInput(path string) (*Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Pair{Read: f}, nil
}

// OpenOutput opens path for writing, creating it with perm if absent. The file
// is truncated unless appendMode is set.
func OpenOutput(path string, appendMode bool, perm os.FileMode) (*Pair, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	return &Pair{Write: f}, nil
}

// DupDescriptor wraps a private close-on-exec copy of an already-open
// descriptor as the write end of a pair. Closing the pair leaves fd open.
func DupDescriptor(fd int) (*Pair, error) {
	nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 3)
	if err != nil {
		return nil, err
	}
	return &Pair{Write: os.NewFile(uintptr(nfd), fmt.Sprintf("fd%d", fd))}, nil
}

// Close closes whichever ends are present. It is safe to call more than once.
func (p *Pair) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Read != nil {
		errs = append(errs, p.Read.Close())
		p.Read = nil
	}
	if p.Write != nil {
		errs = append(errs, p.Write.Close())
		p.Write = nil
	}
	return errors.Join(errs...)
}

// Wiring is the set of pairs one stage's standard streams are connected to.
// A nil pair means the stream is inherited from the interpreter.
type Wiring struct {
	Stdin  *Pair
	Stdout *Pair
	Stderr *Pair
}

// Close releases the parent's copies of every descriptor in the wiring.
func (w *Wiring) Close() error {
	if w == nil {
		return nil
	}
	return errors.Join(w.Stdin.Close(), w.Stdout.Close(), w.Stderr.Close())
}

// replace closes the pair at *slot, if any, and installs p.
func replace(slot **Pair, p *Pair) {
	if *slot != nil {
		(*slot).Close()
	}
	*slot = p
}
