package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// GenerativeClient calls the external generative text service for themed
// round prompts.
type GenerativeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGenerativeClient builds a client against the prompt service.
func NewGenerativeClient(baseURL, apiKey string) *GenerativeClient {
	return &GenerativeClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *GenerativeClient) RoundPrompt(ctx context.Context, req PromptRequest) (*RoundPrompt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/prompts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call prompt service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("prompt service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var prompt RoundPrompt
	if err := json.NewDecoder(resp.Body).Decode(&prompt); err != nil {
		return nil, fmt.Errorf("failed to decode prompt response: %w", err)
	}
	return &prompt, nil
}

// FallbackProvider tries the primary provider and degrades to the fallback
// when the primary fails or returns an unusable prompt. Round start never
// stalls on the generative service.
type FallbackProvider struct {
	primary  PromptProvider
	fallback PromptProvider
}

// NewFallbackProvider wraps primary with fallback.
func NewFallbackProvider(primary, fallback PromptProvider) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback}
}

func (p *FallbackProvider) RoundPrompt(ctx context.Context, req PromptRequest) (*RoundPrompt, error) {
	prompt, err := p.primary.RoundPrompt(ctx, req)
	if err == nil && prompt.Valid() {
		return prompt, nil
	}
	if err != nil {
		log.Warn().Err(err).Int("round", req.RoundNumber).Msg("prompt provider failed, using fallback deck")
	} else {
		log.Warn().Int("round", req.RoundNumber).Msg("prompt provider returned unusable prompt, using fallback deck")
	}
	return p.fallback.RoundPrompt(ctx, req)
}
