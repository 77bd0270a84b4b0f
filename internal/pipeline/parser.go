package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Default limits, matching the fixed tables of the classic implementation.
const (
	DefaultMaxSegments = 64
	DefaultMaxArgs     = 64
)

// Limits caps the size of a parsed line. Zero means unlimited.
type Limits struct {
	MaxSegments int
	MaxArgs     int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxSegments: DefaultMaxSegments, MaxArgs: DefaultMaxArgs}
}

// Parse splits a trimmed line at its operators and builds the pipeline.
func Parse(line string, lim Limits) (*Pipeline, error) {
	l, err := Split(line, lim.MaxSegments)
	if err != nil {
		return nil, err
	}
	return Build(l, lim.MaxArgs)
}

// Tokenize splits one command segment into words separated by runs of space,
// tab or newline. There is no quoting: a word never contains whitespace.
func Tokenize(segment string) []string {
	return strings.FieldsFunc(segment, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
}

func operatorOf(c byte) Operator {
	switch c {
	case '&':
		return OpBackground
	case '|':
		return OpPipe
	case '<':
		return OpRedirectIn
	case '>':
		return OpRedirectOut
	default:
		return OpNone
	}
}

// Split scans line left to right and cuts it at every operator byte.
//
// A '>' immediately preceded by '2' is the stderr redirection and the '2' is
// dropped from the segment before it. Every operator byte closes one segment,
// so back-to-back operators produce empty segments and the number of segments
// always equals the number of operators.
func Split(line string, maxSegments int) (*Line, error) {
	l := &Line{}
	start := 0
	for i := 0; i < len(line); i++ {
		op := operatorOf(line[i])
		if op == OpNone {
			continue
		}
		end := i
		if op == OpRedirectOut && i > 0 && line[i-1] == '2' {
			op = OpRedirectErr
			end = i - 1
		}
		l.Segments = append(l.Segments, line[start:end])
		l.Operators = append(l.Operators, op)
		start = i + 1

		if maxSegments > 0 && len(l.Segments) >= maxSegments {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManySegments, maxSegments)
		}
	}
	l.Segments = append(l.Segments, line[start:])
	l.Operators = append(l.Operators, OpNone)
	return l, nil
}

// Build walks the segments and operators of l together and produces one
// stage per runnable command. Redirection targets consume the segment that
// follows their operator.
func Build(l *Line, maxArgs int) (*Pipeline, error) {
	p := &Pipeline{Line: l}
	segs, ops := l.Segments, l.Operators
	pipeIn := false

	for i := 0; i < len(segs); i++ {
		start := i
		st := Stage{Args: Tokenize(segs[i]), PipeIn: pipeIn}
		if maxArgs > 0 && len(st.Args) > maxArgs {
			return nil, &SyntaxError{Segment: i, Op: ops[i], Err: fmt.Errorf("%w: limit is %d", ErrTooManyArgs, maxArgs)}
		}

	resolve:
		for {
			switch op := ops[i]; op {
			case OpPipe:
				st.PipeOut = true
				break resolve
			case OpBackground:
				st.Background = true
				break resolve
			case OpRedirectIn:
				target, err := redirectTarget(l, i)
				if err != nil {
					return nil, err
				}
				i++
				st.Stdin = &Redirect{Path: target}
			case OpRedirectOut, OpRedirectErr:
				target, err := redirectTarget(l, i)
				if err != nil {
					return nil, err
				}
				i++
				r := &Redirect{Path: target}
				// >N& writes to descriptor N; the & stays in place and
				// backgrounds the stage on the next pass.
				if fd, ok := descriptor(target); ok && ops[i] == OpBackground {
					r = &Redirect{FD: fd}
				}
				if op == OpRedirectOut {
					st.Stdout = r
				} else {
					st.Stderr = r
				}
			default:
				break resolve
			}
		}

		if len(st.Args) == 0 {
			bare := st.Stdin == nil && st.Stdout == nil && st.Stderr == nil
			if bare && !pipeIn && i == len(segs)-1 {
				// Trailing "cmd &" or an empty line.
				break
			}
			errOp := ops[start]
			if start > 0 && (pipeIn || bare) {
				errOp = ops[start-1]
			}
			return nil, &SyntaxError{Segment: start, Op: errOp, Err: ErrMissingCommand}
		}

		p.Stages = append(p.Stages, st)
		pipeIn = st.PipeOut
	}
	return p, nil
}

// redirectTarget returns the single word following the redirection at i.
func redirectTarget(l *Line, i int) (string, error) {
	op := l.Operators[i]
	if i+1 >= len(l.Segments) {
		return "", &SyntaxError{Segment: i, Op: op, Err: ErrMissingTarget}
	}
	words := Tokenize(l.Segments[i+1])
	switch len(words) {
	case 0:
		return "", &SyntaxError{Segment: i + 1, Op: op, Err: ErrMissingTarget}
	case 1:
		return words[0], nil
	default:
		return "", &SyntaxError{Segment: i + 1, Op: op, Err: fmt.Errorf("%w: %q", ErrAmbiguousTarget, strings.Join(words, " "))}
	}
}

// descriptor reports whether target is a positive base-10 descriptor number.
func descriptor(target string) (int, bool) {
	n, err := strconv.ParseUint(target, 10, 31)
	if err != nil || n == 0 {
		return 0, false
	}
	return int(n), true
}
