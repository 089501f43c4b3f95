package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
)

const defaultCompleteTimeout = 60 * time.Second

// Message roles understood by the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one ordered turn in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompleter generates one reply for an ordered conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// OpenAIChatCompleter calls an OpenAI-compatible chat completions endpoint.
type OpenAIChatCompleter struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIChatCompleter constructs a completer with safe defaults.
func NewOpenAIChatCompleter(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIChatCompleter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultCompleteTimeout}
	}
	return &OpenAIChatCompleter{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: httpClient,
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the ordered messages and returns the generated reply text.
func (c *OpenAIChatCompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if c == nil {
		return "", errors.New("chat completer is nil")
	}
	if len(messages) == 0 {
		return "", errors.New("no messages provided for completion")
	}
	if c.baseURL == "" {
		return "", errors.New("missing completions base url")
	}
	if c.model == "" {
		return "", errors.New("missing completions model")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build completion request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "call completions endpoint")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return "", errors.Errorf("completions endpoint status %d", httpResp.StatusCode)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "decode completion response")
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("completion output text is empty")
	}

	return text, nil
}
