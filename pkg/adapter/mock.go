package adapter

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string

	// Err, when set, is returned by every Generate call.
	Err error
	// Usage is attached to every successful response.
	Usage *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// responses. Keys are matched as substrings of the prompt, so callers can
// script a stage by any fragment of its rendered prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic completion for the prompt.
func (a *MockAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Err != nil {
		return nil, a.Err
	}
	if model == "" {
		model = "mock-1"
	}
	if response, ok := a.responses[prompt]; ok {
		return &Response{Content: response, Model: model, Usage: a.Usage}, nil
	}
	for key, response := range a.responses {
		if strings.Contains(prompt, key) {
			return &Response{Content: response, Model: model, Usage: a.Usage}, nil
		}
	}
	content := fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)
	return &Response{Content: content, Model: model, Usage: a.Usage}, nil
}
