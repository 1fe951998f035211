// Package recorder is an optional debugging aid: it appends one line per
// observe() call to a rotating set of JSONL trace files. It never affects
// the core's determinism — it is off by default. New reports a failure to
// create the trace directory; after that, start and write failures never
// fail an observation.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	MaxRotatedFiles = 3
	TraceDir        = "data/traces"
)

// Event is one recorded observation.
type Event struct {
	Timestamp      time.Time `json:"ts"`
	SessionID      string    `json:"session_id"`
	Representation string    `json:"representation,omitempty"`
	Kind           string    `json:"kind"` // "full" or "delta"
	Added          int       `json:"added,omitempty"`
	Removed        int       `json:"removed,omitempty"`
	Changed        int       `json:"changed,omitempty"`
	Moved          int       `json:"moved,omitempty"`
	NoiseFiltered  int       `json:"noise_filtered,omitempty"`
	CauseHint      string    `json:"cause_hint,omitempty"`
}

// Recorder manages rotating observation-trace logs for one process.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
}

// New creates a recorder instance, ensuring the trace directory exists.
func New(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = TraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{basePath: basePath}, nil
}

// Start begins a new trace file for sessionID, rotating old files so only
// the last MaxRotatedFiles are kept.
func (r *Recorder) Start(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	filename := fmt.Sprintf("observe_%s_%d.jsonl", sessionID, time.Now().UnixMilli())
	path := filepath.Join(r.basePath, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Log appends one observation event to the current trace file. Errors are
// swallowed: a tracing failure must never fail an observation.
func (r *Recorder) Log(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	evt.Timestamp = time.Now()
	_ = r.encoder.Encode(evt)
}

// rotate keeps only the newest MaxRotatedFiles trace files.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []struct {
		Name string
		Time time.Time
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, struct {
			Name string
			Time time.Time
		}{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].Time.After(traces[j].Time)
	})

	if len(traces) >= MaxRotatedFiles {
		keep := MaxRotatedFiles - 1
		if keep < 0 {
			keep = 0
		}
		for i := keep; i < len(traces); i++ {
			path := filepath.Join(r.basePath, traces[i].Name)
			_ = os.Remove(path)
		}
	}
	return nil
}

// Close finishes the current trace file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}
