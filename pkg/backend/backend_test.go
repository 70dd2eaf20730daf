package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zen-systems/stageflow/pkg/adapter"
	"github.com/zen-systems/stageflow/pkg/pipeline"
)

func TestCallParsesAdapterResponse(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"Task: classify.": "category: technical\nconfidence: high",
	}, "")

	b := New(map[string]adapter.Adapter{"mock": mock})
	outputs, err := b.Call(context.Background(), classifyStage(), map[string]string{"document": "DSPy docs"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if outputs["category"] != "technical" || outputs["confidence"] != "high" {
		t.Fatalf("outputs = %v", outputs)
	}
}

func TestCallUnknownAdapter(t *testing.T) {
	b := New(map[string]adapter.Adapter{
		"mock":  adapter.NewMockAdapter(),
		"other": adapter.NewMockAdapter(),
	})

	stage := classifyStage()
	stage.Adapter = "missing"
	if _, err := b.Call(context.Background(), stage, map[string]string{"document": "x"}); err == nil {
		t.Fatalf("expected unknown adapter error")
	}
}

func TestCallSingleAdapterNeedsNoDefault(t *testing.T) {
	mock := adapter.NewMockAdapterWithResponses(map[string]string{
		"Task: classify.": "category: business\nconfidence: 0.7",
	}, "")

	b := New(map[string]adapter.Adapter{"mock": mock})
	if _, err := b.Call(context.Background(), classifyStage(), map[string]string{"document": "x"}); err != nil {
		t.Fatalf("call: %v", err)
	}
}

// flakyAdapter fails transiently a fixed number of times before
// delegating to the mock.
type flakyAdapter struct {
	*adapter.MockAdapter
	remaining int
	calls     int
}

func (a *flakyAdapter) Generate(ctx context.Context, model, prompt string) (*adapter.Response, error) {
	a.calls++
	if a.remaining > 0 {
		a.remaining--
		return nil, &adapter.Error{Adapter: "flaky", Status: 503}
	}
	return a.MockAdapter.Generate(ctx, model, prompt)
}

func TestCallRetriesTransientFailures(t *testing.T) {
	flaky := &flakyAdapter{
		MockAdapter: adapter.NewMockAdapterWithResponses(map[string]string{
			"Task: classify.": "category: technical\nconfidence: 0.9",
		}, ""),
		remaining: 1,
	}

	b := New(map[string]adapter.Adapter{"mock": flaky}, WithRetries(2))
	outputs, err := b.Call(context.Background(), classifyStage(), map[string]string{"document": "x"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if outputs["category"] != "technical" {
		t.Fatalf("outputs = %v", outputs)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", flaky.calls)
	}
}

func TestCallDoesNotRetryPermanentFailures(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.Err = &adapter.Error{Adapter: "mock", Status: 400}

	counting := &flakyAdapter{MockAdapter: mock}
	b := New(map[string]adapter.Adapter{"mock": counting}, WithRetries(3))

	_, err := b.Call(context.Background(), classifyStage(), map[string]string{"document": "x"})
	var aerr *adapter.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("expected adapter error, got %v", err)
	}
	if counting.calls != 1 {
		t.Fatalf("permanent failure was retried %d times", counting.calls)
	}
}

func TestCallCachesResponses(t *testing.T) {
	flaky := &flakyAdapter{
		MockAdapter: adapter.NewMockAdapterWithResponses(map[string]string{
			"Task: classify.": "category: technical\nconfidence: 0.9",
		}, ""),
	}

	b := New(map[string]adapter.Adapter{"mock": flaky}, WithCache(time.Minute))
	defer b.Close()

	inputs := map[string]string{"document": "same document"}
	if _, err := b.Call(context.Background(), classifyStage(), inputs); err != nil {
		t.Fatalf("first call: %v", err)
	}
	outputs, err := b.Call(context.Background(), classifyStage(), inputs)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if flaky.calls != 1 {
		t.Fatalf("expected a single adapter call, got %d", flaky.calls)
	}
	if outputs["category"] != "technical" {
		t.Fatalf("outputs = %v", outputs)
	}

	// Cached values are copies; mutating one must not poison the cache.
	outputs["category"] = "mutated"
	again, err := b.Call(context.Background(), classifyStage(), inputs)
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if again["category"] != "technical" {
		t.Fatalf("cache was mutated through a returned map")
	}
}

func TestBackendSatisfiesPipelineBackend(t *testing.T) {
	var _ pipeline.Backend = New(nil)
}
