package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/lsh/internal/pipeline"
)

// testStdio gives each test its own files for the streams stages inherit.
type testStdio struct {
	dir    string
	stdout *os.File
	stderr *os.File
}

func newTestStdio(t *testing.T) *testStdio {
	t.Helper()
	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	t.Cleanup(func() {
		stdout.Close()
		stderr.Close()
	})
	return &testStdio{dir: dir, stdout: stdout, stderr: stderr}
}

func (s *testStdio) stdio(t *testing.T) Stdio {
	t.Helper()
	devnull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { devnull.Close() })
	return Stdio{Stdin: devnull, Stdout: s.stdout, Stderr: s.stderr}
}

func (s *testStdio) path(name string) string {
	return filepath.Join(s.dir, name)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func run(t *testing.T, r *Runner, line string) *Report {
	t.Helper()
	p, err := pipeline.Parse(line, pipeline.DefaultLimits())
	require.NoError(t, err)
	rep, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	return rep
}

func TestRunSingleCommand(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "echo  hello   world")
	require.Len(t, rep.Launched, 1)
	assert.Equal(t, []string{"echo", "hello", "world"}, rep.Launched[0].Args)
	assert.Equal(t, rep.Pids(), rep.WaitedPids())
	assert.Equal(t, 0, rep.Status())
	assert.Equal(t, "hello world\n", readFile(t, s.path("stdout")))
}

func TestRunPipe(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "echo hello pipe | tr a-z A-Z")
	require.Len(t, rep.Launched, 2)
	assert.False(t, rep.Launched[0].Wait)
	assert.True(t, rep.Launched[1].Wait)
	assert.Equal(t, []int{rep.Launched[1].Pid}, rep.WaitedPids())
	assert.Equal(t, "HELLO PIPE\n", readFile(t, s.path("stdout")))
	r.Reaper().Wait()
}

func TestRunScenario(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)), WithDir(s.dir))
	require.NoError(t, os.WriteFile(s.path("a-foo"), nil, 0644))
	require.NoError(t, os.WriteFile(s.path("b-bar"), nil, 0644))
	require.NoError(t, os.WriteFile(s.path("c-foo"), nil, 0644))

	rep := run(t, r, "ls | grep foo > out.txt")
	require.Len(t, rep.Launched, 2)
	assert.Equal(t, []int{rep.Launched[1].Pid}, rep.WaitedPids())
	assert.Equal(t, "a-foo\nc-foo\n", readFile(t, s.path("out.txt")))
	assert.Empty(t, readFile(t, s.path("stdout")))
	r.Reaper().Wait()
}

func TestRunRedirectOut(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))
	out := s.path("out.txt")

	run(t, r, "echo first > "+out)
	run(t, r, "echo second > "+out)
	assert.Equal(t, "second\n", readFile(t, out))
	assert.Empty(t, readFile(t, s.path("stdout")))
}

func TestRunRedirectAppend(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)), WithAppend(true))
	out := s.path("out.txt")

	run(t, r, "echo first > "+out)
	run(t, r, "echo second > "+out)
	assert.Equal(t, "first\nsecond\n", readFile(t, out))
}

func TestRunRedirectFileMode(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)), WithFileMode(0600))
	out := s.path("private")

	run(t, r, "echo x > "+out)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRunRedirectIn(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))
	in := s.path("in.txt")
	require.NoError(t, os.WriteFile(in, []byte("line one\nline two\n"), 0644))

	run(t, r, "cat < "+in)
	assert.Equal(t, "line one\nline two\n", readFile(t, s.path("stdout")))
}

func TestRunRedirectErr(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))
	errPath := s.path("err.txt")

	// ls lists / on stdout and complains about the missing path on stderr.
	rep := run(t, r, "ls / /definitely/not/here 2> "+errPath)
	assert.NotEqual(t, 0, rep.Status())
	assert.Contains(t, readFile(t, errPath), "/definitely/not/here")

	stdout := readFile(t, s.path("stdout"))
	assert.NotEmpty(t, stdout)
	assert.NotContains(t, stdout, "/definitely/not/here")
	assert.Empty(t, readFile(t, s.path("stderr")))
}

func TestRunBackground(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	start := time.Now()
	rep := run(t, r, "sleep 1 &")
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	require.Len(t, rep.Launched, 1)
	assert.Empty(t, rep.Exits)
	assert.Equal(t, rep.Pids(), rep.BackgroundPids())
	assert.Equal(t, 1, r.Reaper().Pending())

	r.Reaper().Wait()
	assert.Equal(t, 0, r.Reaper().Pending())
}

func TestRunBackgroundThenForeground(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "sleep 1 & echo now")
	require.Len(t, rep.Launched, 2)
	assert.Equal(t, []int{rep.Launched[1].Pid}, rep.WaitedPids())
	assert.Equal(t, "now\n", readFile(t, s.path("stdout")))
	r.Reaper().Wait()
}

func TestRunDescriptorOverload(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	target, err := os.Create(s.path("fd-target"))
	require.NoError(t, err)
	defer target.Close()

	rep := run(t, r, fmt.Sprintf("echo via descriptor >%d&", target.Fd()))
	require.Len(t, rep.Launched, 1)
	assert.False(t, rep.Launched[0].Wait)
	assert.Empty(t, rep.Exits)

	r.Reaper().Wait()
	assert.Equal(t, "via descriptor\n", readFile(t, s.path("fd-target")))

	// The caller's descriptor is still open.
	_, err = target.WriteString("still open\n")
	require.NoError(t, err)
}

func TestRunDescriptorOverloadStandardStreams(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	// 1 and 2 are the runner's streams, not whatever the process has there.
	run(t, r, "echo to stdout >1&")
	run(t, r, "ls /definitely/not/here 2>1&")
	run(t, r, "echo to stderr >2&")
	r.Reaper().Wait()

	stdout := readFile(t, s.path("stdout"))
	assert.Contains(t, stdout, "to stdout\n")
	assert.Contains(t, stdout, "/definitely/not/here")
	assert.Equal(t, "to stderr\n", readFile(t, s.path("stderr")))
}

func TestRunBadDescriptor(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "echo x >987&")
	assert.Empty(t, rep.Launched)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, readFile(t, s.path("stderr")), "lsh: 987: bad file descriptor")
}

func TestRunCommandNotFound(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "no-such-program-lsh-test arg")
	assert.Empty(t, rep.Launched)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Status())
	assert.Equal(t, "no-such-program-lsh-test: command not found\n", readFile(t, s.path("stderr")))

	// The runner is still usable.
	rep = run(t, r, "true")
	assert.Equal(t, 0, rep.Status())
}

func TestRunCommandNotFoundRedirectedStderr(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))
	errPath := s.path("err.txt")

	run(t, r, "no-such-program-lsh-test 2> "+errPath)
	assert.Equal(t, "no-such-program-lsh-test: command not found\n", readFile(t, errPath))
	assert.Empty(t, readFile(t, s.path("stderr")))
}

func TestRunMissingInputFile(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "cat < /definitely/not/here")
	assert.Empty(t, rep.Launched)
	assert.Equal(t, 1, rep.Status())
	assert.Equal(t, "lsh: /definitely/not/here: no such file or directory\n", readFile(t, s.path("stderr")))
}

func TestRunFailedProducerGivesEOF(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	rep := run(t, r, "no-such-program-lsh-test | wc -l")
	require.Len(t, rep.Launched, 1)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Status())
	assert.Equal(t, "0", strings.TrimSpace(readFile(t, s.path("stdout"))))
}

func TestRunPipeFailureGivesEOF(t *testing.T) {
	s := newTestStdio(t)
	in := s.path("terminal")
	require.NoError(t, os.WriteFile(in, []byte("not for cat\n"), 0644))
	stdin, err := os.Open(in)
	require.NoError(t, err)
	defer stdin.Close()

	stdio := s.stdio(t)
	stdio.Stdin = stdin
	r := NewRunner(WithStdio(stdio))
	r.newPipe = func() (*Pair, error) { return nil, errors.New("pipe: too many open files") }

	rep := run(t, r, "echo x | cat")
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Launched, 1)
	assert.Equal(t, []string{"cat"}, rep.Launched[0].Args)
	assert.Empty(t, readFile(t, s.path("stdout")))
	assert.Contains(t, readFile(t, s.path("stderr")), "lsh: pipe: too many open files")
}

func TestReaperConcurrentWatchAndWait(t *testing.T) {
	s := newTestStdio(t)
	stdio := s.stdio(t)
	reaper := NewReaper(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := NewRunner(WithStdio(stdio), WithReaper(reaper))
			for j := 0; j < 3; j++ {
				p, err := pipeline.Parse("sleep 0.05 &", pipeline.DefaultLimits())
				if !assert.NoError(t, err) {
					return
				}
				_, err = r.Run(context.Background(), p)
				assert.NoError(t, err)
				reaper.Wait()
			}
		}()
	}
	wg.Wait()
	reaper.Wait()
	assert.Equal(t, 0, reaper.Pending())
}

func TestRunExitStatus(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	assert.Equal(t, 1, run(t, r, "false").Status())
	assert.Equal(t, 0, run(t, r, "true").Status())
	assert.Equal(t, []int{0}, run(t, r, "false | true").ExitCodes())
}

func TestRunClosesParentDescriptors(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))
	out := s.path("out.txt")

	// Warm up so lazily created runtime descriptors are already open.
	run(t, r, "echo warm | cat > "+out)
	r.Reaper().Wait()

	before := openDescriptors(t)
	run(t, r, "echo a b | tr a-z A-Z | cat > "+out)
	r.Reaper().Wait()
	after := openDescriptors(t)

	assert.Equal(t, before, after)
	assert.Equal(t, "A B\n", readFile(t, out))
}

func TestRunCancelledContext(t *testing.T) {
	s := newTestStdio(t)
	r := NewRunner(WithStdio(s.stdio(t)))

	p, err := pipeline.Parse("echo never", pipeline.DefaultLimits())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := r.Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rep.Launched)
}

func openDescriptors(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd")
	}
	return len(entries)
}
