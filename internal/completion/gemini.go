package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/valpere/hadithfeed/internal/postprocess"
)

type GeminiConfig struct {
	Model   string
	APIKeys []string
	// BaseURL overrides the API endpoint.
	BaseURL string
	Logger  *zap.Logger
}

// Gemini completes translations with structured JSON output and rotates to
// the next API key when the current one hits a rate limit.
type Gemini struct {
	model   string
	clients []*genai.Client
	logger  *zap.Logger

	mu      sync.Mutex
	current int
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gemini{model: cfg.Model, logger: logger}
	for _, key := range cfg.APIKeys {
		cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
		if cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		g.clients = append(g.clients, client)
	}
	return g, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

var translationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"translation": {Type: genai.TypeString, Description: "The complete translation"},
		"confidence": {
			Type:        genai.TypeString,
			Enum:        []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow},
			Description: "Confidence level: high, medium, or low",
		},
	},
	Required: []string{"translation", "confidence"},
}

// Complete tries each API key once, starting from the last one that worked.
// Only rate-limit errors move on to the next key.
func (g *Gemini) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(req.TargetLang), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    translationSchema,
	}

	g.mu.Lock()
	first := g.current
	g.mu.Unlock()

	var lastErr error
	for i := 0; i < len(g.clients); i++ {
		idx := (first + i) % len(g.clients)
		resp, err := g.clients[idx].Models.GenerateContent(ctx, g.model, genai.Text(userPrompt(req)), config)
		if err != nil {
			lastErr = err
			if !isRateLimit(err) {
				return nil, fmt.Errorf("GenAI generate failed: %w", err)
			}
			g.logger.Warn("rate limit hit, rotating API key",
				zap.Int("key", idx+1),
				zap.Int("keys", len(g.clients)),
				zap.Error(err))
			continue
		}

		g.mu.Lock()
		g.current = idx
		g.mu.Unlock()

		var out struct {
			Translation string `json:"translation"`
			Confidence  string `json:"confidence"`
		}
		raw := postprocess.Clean(resp.Text())
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("failed to decode structured output: %w", err)
		}
		text := strings.TrimSpace(out.Translation)
		if text == "" {
			return nil, ErrEmptyCompletion
		}

		confidence := normalizeConfidence(out.Confidence)
		if confidence != ConfidenceHigh {
			g.logger.Warn("completion below high confidence, manual review recommended",
				zap.String("collection", req.Collection),
				zap.Int("number", req.Number),
				zap.String("confidence", confidence))
		}
		return &Result{
			Text:       text,
			Confidence: confidence,
			Backend:    g.Name(),
			Model:      g.model,
			Latency:    time.Since(start),
		}, nil
	}
	return nil, fmt.Errorf("all %d API keys exhausted: %w", len(g.clients), lastErr)
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
}
