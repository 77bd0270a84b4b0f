// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver exposes the shell to MCP clients over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcelocantos/lsh/internal/launch"
	"github.com/marcelocantos/lsh/internal/pipeline"
	"github.com/marcelocantos/lsh/internal/shell"
)

// ToolRunLine is the name of the tool that runs one line.
const ToolRunLine = "run_line"

// Options configures the lines the server runs.
type Options struct {
	Version  string
	Limits   pipeline.Limits
	Append   bool
	FileMode os.FileMode
	Dir      string
	Journal  shell.Journal
	Logger   *log.Logger
}

// Server runs lines on behalf of an MCP client. Each call gets fresh
// captured output streams; background processes from every call share one
// reaper.
type Server struct {
	opts   Options
	mcp    *server.MCPServer
	reaper *launch.Reaper
}

// New returns a server with the run_line tool registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0644
	}
	s := &Server{
		opts:   opts,
		mcp:    server.NewMCPServer("lsh", opts.Version, server.WithToolCapabilities(false)),
		reaper: launch.NewReaper(opts.Logger),
	}

	tool := mcp.NewTool(ToolRunLine,
		mcp.WithDescription("Run one lsh line (commands joined by |, <, >, 2>, &) and return its exit status and output. "+
			"Words are split on whitespace; there is no quoting, globbing or variable expansion."),
		mcp.WithString("line",
			mcp.Required(),
			mcp.Description("The line to run, e.g. \"ls -l | grep foo > out.txt\""),
		),
	)
	s.mcp.AddTool(tool, s.handleRunLine)
	return s
}

// Serve answers requests on stdin/stdout until the client goes away.
func (s *Server) Serve() error {
	defer s.reaper.Wait()
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleRunLine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.RunLine(ctx, line)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.Status != 0 {
		return mcp.NewToolResultError(out.String()), nil
	}
	return mcp.NewToolResultText(out.String()), nil
}

// Output is what one line produced.
type Output struct {
	Status int
	Stdout string
	Stderr string
}

func (o *Output) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %d\n", o.Status)
	if o.Stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s", o.Stdout)
		if !strings.HasSuffix(o.Stdout, "\n") {
			b.WriteByte('\n')
		}
	}
	if o.Stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s", o.Stderr)
		if !strings.HasSuffix(o.Stderr, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// RunLine runs line with its output captured. Output written by background
// stages after the line returns is not included.
func (s *Server) RunLine(ctx context.Context, line string) (*Output, error) {
	stdin, err := os.Open(os.DevNull)
	if err != nil {
		return nil, err
	}
	defer stdin.Close()

	stdout, err := capture("stdout")
	if err != nil {
		return nil, err
	}
	defer stdout.Close()
	stderr, err := capture("stderr")
	if err != nil {
		return nil, err
	}
	defer stderr.Close()

	runner := launch.NewRunner(
		launch.WithStdio(launch.Stdio{Stdin: stdin, Stdout: stdout, Stderr: stderr}),
		launch.WithDir(s.opts.Dir),
		launch.WithAppend(s.opts.Append),
		launch.WithFileMode(s.opts.FileMode),
		launch.WithReaper(s.reaper),
		launch.WithLogger(s.opts.Logger),
	)
	opts := []shell.Option{
		shell.WithOutput(stdout, stderr),
		shell.WithColor(false),
		shell.WithLimits(s.opts.Limits),
		shell.WithLogger(s.opts.Logger),
	}
	if s.opts.Dir != "" {
		opts = append(opts, shell.WithDir(s.opts.Dir))
	}
	if s.opts.Journal != nil {
		opts = append(opts, shell.WithJournal(s.opts.Journal))
	}
	in := shell.NewInterpreter(runner, opts...)

	status := in.Execute(ctx, line)
	o := &Output{Status: status}
	if o.Stdout, err = readBack(stdout); err != nil {
		return nil, err
	}
	if o.Stderr, err = readBack(stderr); err != nil {
		return nil, err
	}
	return o, nil
}

// capture returns an unlinked temporary file for a child to write to.
func capture(name string) (*os.File, error) {
	f, err := os.CreateTemp("", "lsh-"+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", name, err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture %s: %w", name, err)
	}
	return f, nil
}

func readBack(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	return string(data), err
}
