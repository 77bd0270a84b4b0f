// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"log"
	"sync"
)

// Exit is the final status of a launched process.
type Exit struct {
	Pid  int
	Args []string
	Code int
}

// Reaper collects every launched process once it exits, so neither waited
// nor backgrounded children linger in the process table. Watch and Wait may
// be called concurrently from any number of goroutines.
type Reaper struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	log     *log.Logger
}

// NewReaper returns a Reaper that logs each collected process to logger.
func NewReaper(logger *log.Logger) *Reaper {
	r := &Reaper{log: logger}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Watch starts collecting p. The returned channel yields p's exit status
// exactly once and is then closed.
func (r *Reaper) Watch(p *Process) <-chan Exit {
	done := make(chan Exit, 1)
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	go func() {
		code := p.wait()
		if r.log != nil {
			r.log.Printf("reaped %s: status %d", p, code)
		}
		done <- Exit{Pid: p.Pid, Args: p.Args, Code: code}
		close(done)

		r.mu.Lock()
		r.pending--
		if r.pending == 0 {
			r.idle.Broadcast()
		}
		r.mu.Unlock()
	}()
	return done
}

// Pending returns the number of watched processes still running.
func (r *Reaper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Wait blocks until no watched process is running. Processes watched while
// Wait blocks are waited for too.
func (r *Reaper) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.pending > 0 {
		r.idle.Wait()
	}
}
