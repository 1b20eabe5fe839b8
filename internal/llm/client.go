// Package llm provides streaming clients for the generation engines. Both
// engines produce a lazy, finite sequence of text fragments, delivered on a
// channel that is closed when the stream ends.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Engine name prefixes exposed to clients, matching the model tags served
// by ListModels.
const (
	LlamaCppTag     = "[Production] Llama.cpp"
	OllamaTagPrefix = "[Test] "
)

// Streamer produces a streamed completion for a prompt. The returned channel
// yields text fragments and is closed when the stream finishes; a mid-stream
// failure closes the channel after an error fragment.
type Streamer interface {
	Stream(ctx context.Context, prompt string) (<-chan string, error)
}

// Router dispatches a model tag to the engine that serves it.
type Router struct {
	ollama   *OllamaStreamer
	llamaCpp *LlamaCppStreamer
}

// NewRouter creates a router over both generation engines.
func NewRouter(ollamaURL, llamaCppURL string) *Router {
	return &Router{
		ollama:   NewOllamaStreamer(ollamaURL),
		llamaCpp: NewLlamaCppStreamer(llamaCppURL),
	}
}

// Stream routes the prompt to the engine selected by the model tag.
func (r *Router) Stream(ctx context.Context, model, prompt string) (<-chan string, error) {
	if strings.Contains(model, "[Production]") {
		return r.llamaCpp.Stream(ctx, prompt)
	}
	return r.ollama.Stream(ctx, strings.TrimPrefix(model, OllamaTagPrefix), prompt)
}

// ListModels probes both engines and returns the available model tags.
func (r *Router) ListModels(ctx context.Context) []string {
	var models []string
	if r.llamaCpp.Healthy(ctx) {
		models = append(models, LlamaCppTag)
	}
	for _, name := range r.ollama.ListModels(ctx) {
		models = append(models, OllamaTagPrefix+name)
	}
	return models
}

func probeURL(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

func marshalBody(v any) (*strings.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(string(data)), nil
}
