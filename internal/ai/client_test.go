package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Gargee-Buva/Finora/internal/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
}

// scriptedCaller returns the next queued result for each model.
type scriptedCaller struct {
	results map[string][]error
	text    map[string]string
	calls   []string
}

func (s *scriptedCaller) call(_ context.Context, model string, _ []*genai.Content) (string, error) {
	s.calls = append(s.calls, model)
	queue := s.results[model]
	if len(queue) > 0 {
		err := queue[0]
		s.results[model] = queue[1:]
		if err != nil {
			return "", err
		}
	}
	return s.text[model], nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		wait      time.Duration
	}{
		{"rate limited", genai.APIError{Code: 429}, true, 0},
		{"unavailable", genai.APIError{Code: 503}, true, 0},
		{"pointer form", &genai.APIError{Code: 500}, true, 0},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 504}), true, 0},
		{"bad request", genai.APIError{Code: 400}, false, 0},
		{"not found", genai.APIError{Code: 404}, false, 0},
		{"plain error", errors.New("boom"), false, 0},
		{
			"retry info",
			genai.APIError{Code: 429, Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
			}},
			true, 17 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transient, wait := Classify(tt.err)
			assert.Equal(t, tt.transient, transient)
			assert.Equal(t, tt.wait, wait)
		})
	}
}

func TestGenerate_FirstModelSucceeds(t *testing.T) {
	caller := &scriptedCaller{text: map[string]string{"gemini-2.5-flash": "hello"}}
	client := NewWithCaller(caller.call, nil, testPolicy(), zerolog.Nop())

	got, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, []string{"gemini-2.5-flash"}, caller.calls)
}

func TestGenerate_RetriesThenFailsOver(t *testing.T) {
	unavailable := genai.APIError{Code: 503, Message: "overloaded"}
	caller := &scriptedCaller{
		results: map[string][]error{"a": {unavailable, unavailable, unavailable}},
		text:    map[string]string{"b": "from b"},
	}
	client := NewWithCaller(caller.call, []string{"models/a", "b"}, testPolicy(), zerolog.Nop())

	got, err := client.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from b", got)
	assert.Equal(t, []string{"a", "a", "a", "b"}, caller.calls)
}

func TestGenerate_PermanentErrorStops(t *testing.T) {
	caller := &scriptedCaller{
		results: map[string][]error{"a": {genai.APIError{Code: 403, Message: "denied"}}},
		text:    map[string]string{"b": "never"},
	}
	client := NewWithCaller(caller.call, []string{"a", "b"}, testPolicy(), zerolog.Nop())

	_, err := client.GenerateWithBlob(context.Background(), "scan", "image/png", []byte{1, 2})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, caller.calls)

	var apiErr genai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.Code)
}

func TestGenerate_AllModelsExhausted(t *testing.T) {
	limited := genai.APIError{Code: 429}
	caller := &scriptedCaller{results: map[string][]error{
		"a": {limited, limited, limited},
		"b": {limited, limited, limited},
	}}
	client := NewWithCaller(caller.call, []string{"a", "b"}, testPolicy(), zerolog.Nop())

	_, err := client.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Len(t, caller.calls, 6)
}

func TestGenerate_NoModels(t *testing.T) {
	client := NewWithCaller(nil, []string{" ", "models/"}, testPolicy(), zerolog.Nop())
	_, err := client.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoModels)
}
