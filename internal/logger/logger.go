// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package logger builds the diagnostic logger shared by the interpreter,
// the runner and the reaper.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Prefix starts every diagnostic line.
const Prefix = "lsh: "

// New returns a logger writing to w when verbose is set and discarding
// everything otherwise.
func New(w io.Writer, verbose bool) *log.Logger {
	if !verbose || w == nil {
		w = io.Discard
	}
	return log.New(w, Prefix, log.Ltime|log.Lshortfile)
}

// Open returns a logger for path, or for fallback when path is empty. The
// returned closer releases the log file and is never nil.
func Open(fs afero.Fs, path string, verbose bool, fallback io.Writer) (*log.Logger, io.Closer, error) {
	if !verbose || path == "" {
		return New(fallback, verbose), io.NopCloser(nil), nil
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return New(f, true), f, nil
}
