// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marcelocantos/lsh/internal/pipeline"
)

// Builtin is a command the interpreter runs itself. A built-in is matched
// against the whole trimmed line, never against a pipeline stage.
type Builtin interface {
	// Name is the exact line that invokes the built-in.
	Name() string

	// Description returns a human-readable summary for help output.
	Description() string

	// Run executes the built-in and returns its status.
	Run(ctx context.Context, in *Interpreter) int
}

// Registry maps built-in names to implementations.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Builtin
}

// NewRegistry returns a registry holding exit, help and wait.
func NewRegistry() *Registry {
	r := &Registry{builtins: make(map[string]Builtin)}
	r.Register(exitBuiltin{})
	r.Register(helpBuiltin{})
	r.Register(waitBuiltin{})
	return r
}

// Register adds a built-in, replacing any with the same name.
func (r *Registry) Register(b Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[b.Name()] = b
}

// Lookup returns the built-in invoked by line.
func (r *Registry) Lookup(line string) (Builtin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builtins[line]
	return b, ok
}

// All returns all registered built-ins sorted by name.
func (r *Registry) All() []Builtin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Builtin, 0, len(r.builtins))
	for _, b := range r.builtins {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name() < all[j].Name()
	})
	return all
}

type exitBuiltin struct{}

func (exitBuiltin) Name() string        { return "exit" }
func (exitBuiltin) Description() string { return "leave the shell" }

func (exitBuiltin) Run(_ context.Context, in *Interpreter) int {
	fmt.Fprintln(in.stdout, "exit")
	in.state.Stop()
	return in.Status()
}

type helpBuiltin struct{}

func (helpBuiltin) Name() string        { return "help" }
func (helpBuiltin) Description() string { return "show this help" }

func (helpBuiltin) Run(_ context.Context, in *Interpreter) int {
	PrintHelp(in.stdout, in.builtins)
	return 0
}

type waitBuiltin struct{}

func (waitBuiltin) Name() string        { return "wait" }
func (waitBuiltin) Description() string { return "wait for background processes" }

func (waitBuiltin) Run(ctx context.Context, in *Interpreter) int {
	reaper := in.runner.Reaper()
	in.log.Printf("waiting for %d processes", reaper.Pending())

	done := make(chan struct{})
	go func() {
		reaper.Wait()
		close(done)
	}()
	select {
	case <-done:
		return 0
	case <-ctx.Done():
		return 130
	}
}

// PrintHelp writes the operator summary and the built-ins of reg.
func PrintHelp(w io.Writer, reg *Registry) {
	fmt.Fprintln(w, "lsh - line-oriented shell")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintf(w, "  cmd [args...] [%s in] [%s out] [%s err] [%s cmd ...] [%s]\n",
		pipeline.OpRedirectIn, pipeline.OpRedirectOut, pipeline.OpRedirectErr, pipeline.OpPipe, pipeline.OpBackground)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "operators:")
	fmt.Fprintf(w, "  %-5s pipe (stdout → next stdin)\n", pipeline.OpPipe)
	fmt.Fprintf(w, "  %-5s redirect stdin from file\n", pipeline.OpRedirectIn)
	fmt.Fprintf(w, "  %-5s redirect stdout to file\n", pipeline.OpRedirectOut)
	fmt.Fprintf(w, "  %-5s redirect stderr to file\n", pipeline.OpRedirectErr)
	fmt.Fprintf(w, "  %-5s run in background\n", pipeline.OpBackground)
	fmt.Fprintf(w, "  %-5s stdout to open descriptor N, in background\n", ">N&")
	fmt.Fprintf(w, "  %-5s stderr to open descriptor N, in background\n", "2>N&")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "built-ins:")
	for _, b := range reg.All() {
		fmt.Fprintf(w, "  %-5s %s\n", b.Name(), b.Description())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "words are split on spaces and tabs; there is no quoting.")
}
