package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LlamaCppStreamer streams chat completions from a llama.cpp server via its
// OpenAI-compatible SSE endpoint.
type LlamaCppStreamer struct {
	baseURL    string
	httpClient *http.Client
}

type llamaCppChatRequest struct {
	Messages    []ollamaMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type llamaCppChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewLlamaCppStreamer creates a streamer for a llama.cpp server.
func NewLlamaCppStreamer(baseURL string) *LlamaCppStreamer {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &LlamaCppStreamer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Stream sends the prompt and forwards each SSE delta's content until the
// explicit [DONE] marker or stream closure.
func (s *LlamaCppStreamer) Stream(ctx context.Context, prompt string) (<-chan string, error) {
	body, err := marshalBody(llamaCppChatRequest{
		Messages: []ollamaMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: prompt},
		},
		Stream:      true,
		MaxTokens:   4096,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach llama.cpp: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llama.cpp API error (status %d)", resp.StatusCode)
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var chunk llamaCppChatChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			select {
			case ch <- content:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- fmt.Sprintf("Error: %v", err):
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Healthy reports whether the server answers its health endpoint.
func (s *LlamaCppStreamer) Healthy(ctx context.Context) bool {
	resp, err := probeURL(ctx, s.httpClient, s.baseURL+"/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
