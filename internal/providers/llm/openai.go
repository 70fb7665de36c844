package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/readr/internal/core"
)

// OpenAI implements both external capabilities over an OpenAI-compatible
// API: Complete via chat completions and Embed via the embeddings
// endpoint. Any compatible base URL works.
type OpenAI struct {
	baseProvider
	embeddingModel string
}

func NewOpenAI(baseURL, apiKey, model, embeddingModel string) *OpenAI {
	return &OpenAI{
		baseProvider:   newBaseProvider(baseURL, apiKey, model),
		embeddingModel: embeddingModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one role-scoped reasoning request. Prior turns are
// replayed as user/assistant pairs so agents keep conversational
// continuity. The caller's context deadline bounds the call.
func (o *OpenAI) Complete(ctx context.Context, instructions, contextBlock, query string, history []core.Turn) (string, error) {
	messages := []chatMessage{{Role: "system", Content: instructions}}

	for _, turn := range history {
		messages = append(messages,
			chatMessage{Role: "user", Content: turn.Query},
			chatMessage{Role: "assistant", Content: turn.Answer},
		)
	}

	var sb strings.Builder
	if contextBlock != "" {
		sb.WriteString(contextBlock)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	messages = append(messages, chatMessage{Role: "user", Content: sb.String()})

	resp, err := o.doRequest(ctx, "POST", "/v1/chat/completions", chatRequest{
		Model:    o.model,
		Messages: messages,
	}, o.authHeaders())
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat response")
	}

	return parsed.Choices[0].Message.Content, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.doRequest(ctx, "POST", "/v1/embeddings", embedRequest{
		Model: o.embeddingModel,
		Input: text,
	}, o.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	return parsed.Data[0].Embedding, nil
}

func (o *OpenAI) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}
}
