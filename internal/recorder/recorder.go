// Package recorder writes a rotating JSONL trace of dispatched tool calls.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const tracePrefix = "trace_"

// Call is one line of the trace.
type Call struct {
	Timestamp  time.Time `json:"ts"`
	CallID     string    `json:"call_id"`
	Tool       string    `json:"tool"`
	PageID     string    `json:"page_id,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// Recorder appends calls to the current trace file. Record is a no-op until
// Start is called.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	dir     string
	keep    int
}

// New creates dir if needed. keep is how many trace files survive rotation.
func New(dir string, keep int) (*Recorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("trace directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = 1
	}
	return &Recorder{dir: dir, keep: keep}, nil
}

// Start rotates old traces and opens trace_<runID>_<ms>.jsonl.
func (r *Recorder) Start(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.encoder = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	name := fmt.Sprintf("%s%s_%d.jsonl", tracePrefix, runID, time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return err
	}
	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Record writes c. Encoding errors are dropped.
func (r *Recorder) Record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	_ = r.encoder.Encode(c)
}

// rotate deletes all but the newest keep-1 traces, making room for the next.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	type trace struct {
		name    string
		modTime time.Time
	}
	var traces []trace
	for _, e := range entries {
		if e.IsDir() || !isTraceFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, trace{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].modTime.After(traces[j].modTime)
	})

	for i := r.keep - 1; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(r.dir, traces[i].name))
	}
	return nil
}

func isTraceFile(name string) bool {
	return strings.HasPrefix(name, tracePrefix) && filepath.Ext(name) == ".jsonl"
}

// Close finishes the current trace.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.encoder = nil
	return err
}
