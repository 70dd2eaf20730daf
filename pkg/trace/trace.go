// Package trace writes per-run JSON bundles recording what each stage
// saw, produced, and how it ended.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zen-systems/stageflow/pkg/pipeline"
	"github.com/zen-systems/stageflow/pkg/schema"
)

// RunRecord captures run-level metadata, written as run.json.
type RunRecord struct {
	ID        string    `json:"id"`
	Pipeline  string    `json:"pipeline"`
	StartedAt time.Time `json:"started_at"`
	InputHash string    `json:"input_hash"`
}

// StageRecord captures one stage invocation, written as stages/<name>.json.
type StageRecord struct {
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	Raw            map[string]string `json:"raw,omitempty"`
	Values         map[string]any    `json:"values,omitempty"`
	Error          string            `json:"error,omitempty"`
	DispatchedAt   time.Time         `json:"dispatched_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	DurationMillis int64             `json:"duration_ms"`
}

// ResultRecord captures how the run ended, written as result.json.
type ResultRecord struct {
	FinishedAt     time.Time       `json:"finished_at"`
	DurationMillis int64           `json:"duration_ms"`
	Record         json.RawMessage `json:"record,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Recorder implements pipeline.Recorder by writing one directory per run
// under a base directory. Safe for concurrent runs; events within one
// run arrive from that run's goroutine only.
type Recorder struct {
	baseDir string

	mu   sync.Mutex
	runs map[string]string
}

// NewRecorder creates a recorder rooted at baseDir.
func NewRecorder(baseDir string) (*Recorder, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Recorder{baseDir: baseDir, runs: make(map[string]string)}, nil
}

// RunStarted creates the run directory and writes run.json.
func (r *Recorder) RunStarted(info pipeline.RunInfo, inputs map[string]string) {
	runDir := filepath.Join(r.baseDir, info.ID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return
	}

	r.mu.Lock()
	r.runs[info.ID] = runDir
	r.mu.Unlock()

	record := RunRecord{
		ID:        info.ID,
		Pipeline:  info.Pipeline,
		StartedAt: info.StartedAt,
		InputHash: hashInputs(inputs),
	}
	_ = writeJSON(filepath.Join(runDir, "run.json"), record)
}

// StageCompleted writes the stage's invocation record.
func (r *Recorder) StageCompleted(info pipeline.RunInfo, outcome *pipeline.Outcome) {
	runDir := r.runDir(info.ID)
	if runDir == "" {
		return
	}

	record := StageRecord{
		Name:           outcome.Stage,
		Status:         string(outcome.Status),
		Inputs:         outcome.Inputs,
		Raw:            outcome.Raw,
		Values:         outcome.Values,
		DispatchedAt:   outcome.DispatchedAt,
		CompletedAt:    outcome.CompletedAt,
		DurationMillis: outcome.CompletedAt.Sub(outcome.DispatchedAt).Milliseconds(),
	}
	if outcome.Err != nil {
		record.Error = outcome.Err.Error()
	}
	_ = writeJSON(filepath.Join(runDir, "stages", outcome.Stage+".json"), record)
}

// RunFinished writes result.json and forgets the run.
func (r *Recorder) RunFinished(info pipeline.RunInfo, record *schema.Record, err error) {
	runDir := r.runDir(info.ID)
	if runDir == "" {
		return
	}

	finished := time.Now().UTC()
	result := ResultRecord{
		FinishedAt:     finished,
		DurationMillis: finished.Sub(info.StartedAt).Milliseconds(),
	}
	if record != nil {
		if data, marshalErr := json.Marshal(record); marshalErr == nil {
			result.Record = data
		}
	}
	if err != nil {
		result.Error = err.Error()
	}
	_ = writeJSON(filepath.Join(runDir, "result.json"), result)

	r.mu.Lock()
	delete(r.runs, info.ID)
	r.mu.Unlock()
}

func (r *Recorder) runDir(runID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID]
}

func hashInputs(inputs map[string]string) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
