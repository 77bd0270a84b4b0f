// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package launch

import "context"

type queued struct {
	pid  int
	done <-chan Exit
}

// WaitQueue holds the synchronous processes of one line in launch order.
type WaitQueue struct {
	items []queued
}

// Push appends a process and the channel its exit status arrives on.
func (q *WaitQueue) Push(pid int, done <-chan Exit) {
	q.items = append(q.items, queued{pid: pid, done: done})
}

// Len returns the number of queued processes.
func (q *WaitQueue) Len() int {
	return len(q.items)
}

// Pids returns the queued process ids in launch order.
func (q *WaitQueue) Pids() []int {
	pids := make([]int, len(q.items))
	for i, it := range q.items {
		pids[i] = it.pid
	}
	return pids
}

// Drain waits for each queued process in the order it was pushed, blocking on
// that specific process even if a later one finishes first. If ctx ends, the
// remaining processes are left to the reaper and Drain returns what it has.
// The queue is empty afterwards.
func (q *WaitQueue) Drain(ctx context.Context) []Exit {
	items := q.items
	q.items = nil

	exits := make([]Exit, 0, len(items))
	for _, it := range items {
		select {
		case e := <-it.done:
			exits = append(exits, e)
		case <-ctx.Done():
			return exits
		}
	}
	return exits
}
