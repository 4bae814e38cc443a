package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edinai/classhub/internal/hub"
	"github.com/edinai/classhub/internal/models"
)

// QAClient asks an OpenAI-compatible chat-completions endpoint to
// answer a question against a lecture's stored narration context.
type QAClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

func NewQAClient(baseURL, apiKey, model string, logger *zap.Logger) *QAClient {
	return &QAClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		logger:     logger,
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Answer implements hub.AnswerService. Transport and upstream errors
// map to hub.ErrUnavailable; the hub decides what the viewer sees.
func (c *QAClient) Answer(ctx context.Context, question, lectureContext, language, answerType string) (*models.QAAnswer, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("qa client not configured: %w", hub.ErrUnavailable)
	}

	system := fmt.Sprintf(
		"You are a teaching assistant answering questions about a lecture. "+
			"Answer in %s, using only the lecture content below.\n\n%s",
		normalizeLanguage(language), lectureContext,
	)
	if answerType != "" {
		system += fmt.Sprintf("\n\nAnswer style: %s.", answerType)
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call qa service: %w", hub.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("qa service returned non-2xx", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("qa service status %d: %w", resp.StatusCode, hub.ErrUnavailable)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", hub.ErrUnavailable)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion had no choices: %w", hub.ErrUnavailable)
	}

	return &models.QAAnswer{
		Answer:   completion.Choices[0].Message.Content,
		Language: normalizeLanguage(language),
	}, nil
}

func normalizeLanguage(language string) string {
	if language == "" {
		return "English"
	}
	return language
}
