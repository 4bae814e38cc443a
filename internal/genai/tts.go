package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const audioCacheTTL = 24 * time.Hour

// SpeechClient synthesizes speech for assistant text and returns a
// public audio URL. It fails soft by contract: a missing URL means the
// reply simply ships without audio.
//
// Identical text is synthesized once per TTL — the URL is cached in
// redis keyed by a content hash, so repeated pause prompts and
// repeated answers skip the round trip.
type SpeechClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      Cache
	logger     *zap.Logger
}

// NewSpeechClient builds a speech client. cache may be nil, which
// disables URL caching.
func NewSpeechClient(baseURL, apiKey string, cache Cache, logger *zap.Logger) *SpeechClient {
	return &SpeechClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		cache:      cache,
		logger:     logger,
	}
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
}

// Synthesize implements hub.SpeechService.
func (c *SpeechClient) Synthesize(ctx context.Context, text, language string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || c.baseURL == "" {
		return "", nil
	}
	language = normalizeLanguage(language)

	key := audioCacheKey(text, language)
	if c.cache != nil {
		if url, ok := c.cache.Get(ctx, key); ok {
			return url, nil
		}
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Language: language})
	if err != nil {
		return "", fmt.Errorf("marshal synthesize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call tts service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tts service status %d", resp.StatusCode)
	}

	var synthesized synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&synthesized); err != nil {
		return "", fmt.Errorf("decode synthesize response: %w", err)
	}
	if synthesized.AudioURL == "" {
		return "", nil
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, synthesized.AudioURL, audioCacheTTL)
	}
	return synthesized.AudioURL, nil
}

func audioCacheKey(text, language string) string {
	sum := sha256.Sum256([]byte(language + "\x00" + text))
	return "tts:audio:" + hex.EncodeToString(sum[:])
}
