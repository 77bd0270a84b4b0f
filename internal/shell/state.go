// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package shell

import "sync/atomic"

// State is the interpreter's run flag. It is set by the loop and cleared by
// exit, end of input or SIGHUP.
type State struct {
	running atomic.Bool
}

// NewState returns a running state.
func NewState() *State {
	s := &State{}
	s.running.Store(true)
	return s
}

// Stop clears the run flag. The loop finishes the line in progress first.
func (s *State) Stop() {
	s.running.Store(false)
}

// Running reports whether the loop should read another line.
func (s *State) Running() bool {
	return s.running.Load()
}
