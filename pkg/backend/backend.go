// Package backend adapts provider adapters to the named-mapping
// capability pipelines consume: given one stage's input mapping, return
// its output mapping. Retry and caching live here, on the collaborator
// side of the boundary; the pipeline executor never retries.
package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jellydator/ttlcache/v3"

	"github.com/zen-systems/stageflow/pkg/adapter"
	"github.com/zen-systems/stageflow/pkg/pipeline"
)

// LLMBackend satisfies pipeline.Backend over a set of provider adapters.
type LLMBackend struct {
	adapters       map[string]adapter.Adapter
	defaultAdapter string
	defaultModel   string
	maxRetries     uint64
	logger         *slog.Logger
	cache          *ttlcache.Cache[string, map[string]string]
}

// Option configures an LLMBackend.
type Option func(*LLMBackend)

// WithDefaults sets the adapter and model used by stages that declare no
// override.
func WithDefaults(adapterName, model string) Option {
	return func(b *LLMBackend) {
		b.defaultAdapter = adapterName
		b.defaultModel = model
	}
}

// WithRetries sets how many times a transient provider failure is
// retried with exponential backoff before the invocation fails.
func WithRetries(n int) Option {
	return func(b *LLMBackend) {
		if n >= 0 {
			b.maxRetries = uint64(n)
		}
	}
}

// WithLogger sets the logger for call-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *LLMBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCache memoizes responses keyed by adapter, model, and rendered
// prompt for the given TTL.
func WithCache(ttl time.Duration) Option {
	return func(b *LLMBackend) {
		b.cache = ttlcache.New(
			ttlcache.WithTTL[string, map[string]string](ttl),
		)
		go b.cache.Start()
	}
}

// New creates a backend over the given adapters.
func New(adapters map[string]adapter.Adapter, opts ...Option) *LLMBackend {
	b := &LLMBackend{
		adapters:   adapters,
		maxRetries: 2,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call renders the stage's prompt, invokes the selected adapter, and
// parses the completion back into the stage's declared output fields.
func (b *LLMBackend) Call(ctx context.Context, stage *pipeline.Stage, inputs map[string]string) (map[string]string, error) {
	adapterImpl, adapterName, err := b.pickAdapter(stage)
	if err != nil {
		return nil, err
	}
	model := b.pickModel(stage, adapterImpl)
	if model == "" {
		return nil, fmt.Errorf("no model available for stage %s on adapter %s", stage.Name, adapterName)
	}

	prompt := renderPrompt(stage, inputs)
	key := cacheKey(adapterName, model, prompt)
	if b.cache != nil {
		if item := b.cache.Get(key); item != nil {
			b.logger.Debug("cache hit", "stage", stage.Name, "adapter", adapterName)
			return copyMap(item.Value()), nil
		}
	}

	var resp *adapter.Response
	operation := func() error {
		r, callErr := adapterImpl.Generate(ctx, model, prompt)
		if callErr != nil {
			if adapter.IsTransient(callErr) {
				b.logger.Debug("retrying transient failure", "stage", stage.Name, "adapter", adapterName, "error", callErr)
				return callErr
			}
			return backoff.Permanent(callErr)
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	outputs, err := parseResponse(resp.Content, stage)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		b.cache.Set(key, copyMap(outputs), ttlcache.DefaultTTL)
	}
	b.logger.Debug("call completed", "stage", stage.Name, "adapter", adapterName, "model", model)
	return outputs, nil
}

func (b *LLMBackend) pickAdapter(stage *pipeline.Stage) (adapter.Adapter, string, error) {
	name := stage.Adapter
	if name == "" {
		name = b.defaultAdapter
	}
	if name == "" && len(b.adapters) == 1 {
		for single := range b.adapters {
			name = single
		}
	}
	impl, ok := b.adapters[name]
	if !ok {
		return nil, "", fmt.Errorf("adapter %q not found for stage %s", name, stage.Name)
	}
	return impl, name, nil
}

func (b *LLMBackend) pickModel(stage *pipeline.Stage, impl adapter.Adapter) string {
	if stage.Model != "" {
		return stage.Model
	}
	if b.defaultModel != "" {
		return b.defaultModel
	}
	if models := impl.Models(); len(models) > 0 {
		return models[0]
	}
	return ""
}

// Close stops the cache eviction loop, if one was started.
func (b *LLMBackend) Close() {
	if b.cache != nil {
		b.cache.Stop()
	}
}

func cacheKey(adapterName, model, prompt string) string {
	sum := sha256.Sum256([]byte(adapterName + "\x00" + model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
