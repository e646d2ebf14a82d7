package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/hadithfeed/internal/postprocess"
)

const defaultOpenRouterModel = "google/gemini-2.0-flash-exp:free"

type OpenRouter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenRouter(apiKey, baseURL, model string) (*OpenRouter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = defaultOpenRouterModel
	}
	return &OpenRouter{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (s *OpenRouter) Name() string {
	return "openrouter"
}

func (s *OpenRouter) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	openrouterReq := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(req.TargetLang) + `

Respond with a JSON object: {"translation": "...", "confidence": "high|medium|low"}.`},
			{"role": "user", "content": userPrompt(req)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"max_tokens":      4096,
	}

	jsonData, err := json.Marshal(openrouterReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	httpReq.Header.Set("HTTP-Referer", "https://hadithfeed.local")
	httpReq.Header.Set("X-Title", "hadithfeed")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("API returned status %d: %v", resp.StatusCode, errResp)
	}

	var openrouterResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openrouterResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(openrouterResp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	content := postprocess.Clean(openrouterResp.Choices[0].Message.Content)
	var out struct {
		Translation string `json:"translation"`
		Confidence  string `json:"confidence"`
	}
	text, confidence := content, ConfidenceLow
	// Free models often ignore response_format; plain text is accepted as is.
	if err := json.Unmarshal([]byte(content), &out); err == nil && out.Translation != "" {
		text, confidence = postprocess.Clean(out.Translation), normalizeConfidence(out.Confidence)
	}
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	return &Result{
		Text:       text,
		Confidence: confidence,
		Backend:    s.Name(),
		Model:      s.model,
		Latency:    time.Since(start),
	}, nil
}
