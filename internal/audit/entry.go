package audit

import "time"

// Entry represents a single audit log record: one executed line.
type Entry struct {
	Seq            uint64    `json:"seq"`
	Time           time.Time `json:"ts"`
	PrevHash       string    `json:"prev_hash"`
	Line           string    `json:"line"`                      // line as typed, trimmed
	Commands       []string  `json:"commands"`                  // program name of each stage
	Operators      []string  `json:"operators,omitempty"`       // operator lexemes in line order
	Pids           []int     `json:"pids,omitempty"`            // every launched process
	BackgroundPids []int     `json:"background_pids,omitempty"` // launched but not waited on
	ExitCodes      []int     `json:"exit_codes,omitempty"`      // waited stages, launch order
	Error          string    `json:"error,omitempty"`           // syntax or launch error
	Duration       float64   `json:"duration_ms"`               // execution time in milliseconds
	Cwd            string    `json:"cwd"`                       // working directory
	Hash           string    `json:"hash"`                      // SHA-256 of this entry (with hash field empty)
}

// Record is what the interpreter knows about a line once it has run.
type Record struct {
	Line           string
	Commands       []string
	Operators      []string
	Pids           []int
	BackgroundPids []int
	ExitCodes      []int
	Err            error
	Duration       time.Duration
	Cwd            string
}
