package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/stageflow/pkg/schema"
)

// Status is the completion state of one stage invocation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome is the discriminated result of one stage invocation within a
// run: succeeded with raw and normalized values, or failed with the
// captured error. Outcomes live for the duration of one run.
type Outcome struct {
	Stage        string
	Status       Status
	Inputs       map[string]string
	Raw          map[string]string
	Values       map[string]any
	Err          error
	DispatchedAt time.Time
	CompletedAt  time.Time
}

// RunInfo identifies one pipeline run.
type RunInfo struct {
	ID        string
	Pipeline  string
	StartedAt time.Time
}

// Recorder observes run progress. Implementations must be safe for use
// from a single run goroutine; outcomes are reported between layers, so
// a recorder never sees a partially-resolved layer.
type Recorder interface {
	RunStarted(info RunInfo, inputs map[string]string)
	StageCompleted(info RunInfo, outcome *Outcome)
	RunFinished(info RunInfo, record *schema.Record, err error)
}

// Executor runs pipeline graphs against an injected backend. Executors
// are stateless across runs and safe for concurrent use; each run owns
// its own invocation records and the only shared object is the read-only
// graph.
type Executor struct {
	backend  Backend
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for stage dispatch and outcome events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the recorder notified of run progress.
func WithRecorder(recorder Recorder) Option {
	return func(e *Executor) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// NewExecutor creates an executor over the given backend.
func NewExecutor(backend Backend, opts ...Option) *Executor {
	e := &Executor{
		backend:  backend,
		logger:   slog.New(slog.DiscardHandler),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run is the blocking form of RunContext.
func (e *Executor) Run(graph *Graph, inputs map[string]string) (*schema.Record, error) {
	return e.RunContext(context.Background(), graph, inputs)
}

// RunContext executes one graph for one external input and assembles the
// final record. Stages within a layer are dispatched concurrently; every
// outcome in a layer is collected before the next layer starts. Stage
// failures are absorbed by substituting declared fallbacks; the run
// itself fails only on cancellation, on a failed stage whose value a
// downstream stage requires with no fallback to offer, or on a final
// record that violates its schema.
func (e *Executor) RunContext(ctx context.Context, graph *Graph, inputs map[string]string) (rec *schema.Record, err error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	def := graph.Definition()

	for _, name := range def.Inputs {
		if _, ok := inputs[name]; !ok {
			return nil, fmt.Errorf("pipeline %s: missing external input %q", def.Name, name)
		}
	}

	info := RunInfo{ID: uuid.NewString(), Pipeline: def.Name, StartedAt: time.Now().UTC()}
	e.recorder.RunStarted(info, inputs)
	defer func() { e.recorder.RunFinished(info, rec, err) }()

	logger := e.logger.With("pipeline", def.Name, "run_id", info.ID)
	logger.Debug("run started", "stages", len(def.Stages), "layers", len(graph.Layers()))

	// resolved holds the string form each stage consumes; assembled holds
	// the normalized values the final record is built from.
	resolved := make(map[string]string, len(inputs))
	assembled := make(map[string]any)
	for name, value := range inputs {
		resolved[name] = value
		assembled[name] = value
	}

	for layerIdx, layer := range graph.Layers() {
		outcomes := make([]*Outcome, len(layer))

		g, layerCtx := errgroup.WithContext(ctx)
		for i, stage := range layer {
			snapshot := make(map[string]string, len(stage.Inputs))
			for _, name := range stage.Inputs {
				snapshot[name] = resolved[name]
			}

			g.Go(func() error {
				outcome := &Outcome{
					Stage:        stage.Name,
					Status:       StatusPending,
					Inputs:       snapshot,
					DispatchedAt: time.Now().UTC(),
				}
				outcomes[i] = outcome

				raw, invokeErr := stage.InvokeContext(layerCtx, e.backend, snapshot)
				outcome.CompletedAt = time.Now().UTC()
				if invokeErr != nil {
					outcome.Status = StatusFailed
					outcome.Err = invokeErr
					if ctxErr := layerCtx.Err(); ctxErr != nil {
						return ctxErr
					}
					return nil
				}
				outcome.Status = StatusSucceeded
				outcome.Raw = raw
				return nil
			})
		}

		if waitErr := g.Wait(); waitErr != nil {
			logger.Debug("run cancelled", "layer", layerIdx)
			return nil, fmt.Errorf("pipeline %s: run cancelled: %w", def.Name, waitErr)
		}

		for _, outcome := range outcomes {
			stage := graph.stageByName(outcome.Stage)

			if outcome.Status == StatusSucceeded {
				outcome.Values = make(map[string]any, len(stage.Outputs))
				for _, field := range stage.Outputs {
					value := field.Normalize(outcome.Raw[field.Name])
					outcome.Values[field.Name] = value
					assembled[field.Name] = value
					resolved[field.Name] = renderInput(value)
				}
				logger.Debug("stage succeeded", "stage", stage.Name, "layer", layerIdx)
				e.recorder.StageCompleted(info, outcome)
				continue
			}

			logger.Warn("stage failed", "stage", stage.Name, "layer", layerIdx, "error", outcome.Err)
			e.recorder.StageCompleted(info, outcome)

			for _, field := range stage.Outputs {
				if field.HasFallback() {
					fallback, fbErr := field.FallbackValue()
					if fbErr != nil {
						return nil, &GraphError{Pipeline: def.Name, Stage: stage.Name, Field: field.Name, Reason: fbErr.Error()}
					}
					assembled[field.Name] = fallback
					resolved[field.Name] = renderInput(fallback)
					continue
				}
				if graph.requiredDownstream(field.Name) {
					return nil, &BackendError{Stage: stage.Name, Field: field.Name, Err: outcome.Err}
				}
				// No fallback and no downstream consumer: leave the field
				// unset and let schema assembly decide.
			}
		}
	}

	values := make(map[string]any, len(def.Output.Fields))
	for _, field := range def.Output.Fields {
		if value, ok := assembled[field.Name]; ok {
			values[field.Name] = value
		}
	}

	record, verr := schema.NewRecord(def.Output, values)
	if verr != nil {
		return nil, verr
	}
	logger.Debug("run finished")
	return record, nil
}

// stageByName returns the named stage from the graph definition.
func (g *Graph) stageByName(name string) *Stage {
	for _, stage := range g.def.Stages {
		if stage.Name == name {
			return stage
		}
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(RunInfo, map[string]string)      {}
func (nopRecorder) StageCompleted(RunInfo, *Outcome)           {}
func (nopRecorder) RunFinished(RunInfo, *schema.Record, error) {}
