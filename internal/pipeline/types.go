package pipeline

import "fmt"

// Operator is a control operator between two segments of a line.
type Operator int

const (
	OpNone        Operator = iota // end of line
	OpPipe                        // |: stdout → next stdin
	OpRedirectIn                  // <: stdin from file
	OpRedirectOut                 // >: stdout to file (or >N& to descriptor N)
	OpRedirectErr                 // 2>: stderr to file (or 2>N& to descriptor N)
	OpBackground                  // &: do not wait
)

// String returns the lexeme of the operator as typed on the line.
func (o Operator) String() string {
	switch o {
	case OpNone:
		return "newline"
	case OpPipe:
		return "|"
	case OpRedirectIn:
		return "<"
	case OpRedirectOut:
		return ">"
	case OpRedirectErr:
		return "2>"
	case OpBackground:
		return "&"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Line is an input line split at its control operators.
//
// Segments are views into the original line and are not trimmed. There is
// exactly one operator per segment: Operators[i] follows Segments[i], and the
// last operator is always OpNone.
type Line struct {
	Segments  []string
	Operators []Operator
}

// Redirect names where a standard stream is wired to. When FD is positive the
// stream goes to that already-open descriptor and Path is empty.
type Redirect struct {
	Path string
	FD   int
}

func (r *Redirect) String() string {
	if r.FD > 0 {
		return fmt.Sprintf("%d", r.FD)
	}
	return r.Path
}

// Stage is one runnable command of a line together with its wiring plan.
type Stage struct {
	Args []string

	Stdin  *Redirect // < path
	Stdout *Redirect // > path, >N&
	Stderr *Redirect // 2> path, 2>N&

	PipeIn     bool // stdin is the previous stage's pipe
	PipeOut    bool // stdout feeds the next stage's pipe
	Background bool // followed by &
}

// Wait reports whether the interpreter blocks on this stage. Stages feeding a
// pipe and backgrounded stages are not waited on.
func (s *Stage) Wait() bool {
	return !s.PipeOut && !s.Background
}

// Pipeline is a parsed line ready to launch.
type Pipeline struct {
	Line   *Line
	Stages []Stage
}

// Operators returns the operator lexemes of the line, without the trailing
// OpNone.
func (p *Pipeline) Operators() []string {
	if p.Line == nil {
		return nil
	}
	ops := make([]string, 0, len(p.Line.Operators))
	for _, op := range p.Line.Operators {
		if op == OpNone {
			continue
		}
		ops = append(ops, op.String())
	}
	return ops
}

// Commands returns the program name of every stage.
func (p *Pipeline) Commands() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Args[0])
	}
	return names
}
