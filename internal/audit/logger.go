package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Logger appends hash-chained entries to a JSON-lines journal.
type Logger struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	tip  chain
}

// NewLogger prepares the journal at path, continuing the chain of any
// entries already there.
func NewLogger(fs afero.Fs, path string) (*Logger, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	l := &Logger{fs: fs, path: path, tip: newChain()}
	l.resume()
	return l, nil
}

func (l *Logger) resume() {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return
	}
	lines := records(data)
	if len(lines) == 0 {
		return
	}
	var last Entry
	if json.Unmarshal(lines[len(lines)-1], &last) == nil {
		l.tip = chain{seq: last.Seq, hash: last.Hash}
	}
}

// Log appends an entry describing rec.
func (l *Logger) Log(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fromRecord(rec)
	next := l.tip
	next.link(&entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}

	l.tip = chain{seq: entry.Seq, hash: entry.Hash}
	return nil
}

func fromRecord(rec Record) Entry {
	e := Entry{
		Time:           time.Now().UTC(),
		Line:           rec.Line,
		Commands:       rec.Commands,
		Operators:      rec.Operators,
		Pids:           rec.Pids,
		BackgroundPids: rec.BackgroundPids,
		ExitCodes:      rec.ExitCodes,
		Duration:       float64(rec.Duration.Microseconds()) / 1000,
		Cwd:            rec.Cwd,
	}
	if rec.Err != nil {
		e.Error = rec.Err.Error()
	}
	return e
}
