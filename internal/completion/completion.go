// Package completion synthesises a missing hadith translation from the
// original text and, when available, a reference translation in another
// language.
//
// Backends are chosen by the configured model name:
//
//	gemini-*           Google GenAI with structured JSON output
//	ollama:<model>     local Ollama server
//	openrouter:<model> OpenRouter chat completions
//	google-translate   Cloud Translation (no reference, confidence "machine")
//
// A failed completion is never fatal to a retrieval; callers treat any error
// as "translation unavailable".
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/store"
	"github.com/valpere/hadithfeed/internal/validator"
)

const DefaultTimeout = 60 * time.Second

// Confidence labels returned by the backends.
const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidenceMachine = "machine"
)

var (
	// ErrEmptyCompletion is returned when a backend answers with no text.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrUnknownModel is returned by New for a model name no backend serves.
	ErrUnknownModel = errors.New("unknown completion model")
)

type Request struct {
	SourceText    string
	ReferenceText string
	ReferenceLang hadith.Language
	TargetLang    hadith.Language
	Collection    string
	Number        int
}

type Result struct {
	Text       string
	Confidence string
	Backend    string
	Model      string
	Latency    time.Duration
}

// Completer produces one translation per call.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Result, error)
}

// Options configures New.
type Options struct {
	Model   string
	Timeout time.Duration

	GeminiAPIKeys     []string
	GeminiBaseURL     string
	OllamaURL         string
	OpenRouterAPIKey  string
	OpenRouterURL     string
	GoogleCredentials string

	// Memory, when set, caches successful completions.
	Memory *store.Store
	// Validate checks the output language with lingua-go.
	Validate bool

	Logger *zap.Logger
}

// New builds the backend named by opts.Model and wraps it with the
// configured decorators. The outermost layer is the cache, so a remembered
// translation is returned without spending a backend call.
func New(ctx context.Context, opts Options) (Completer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		c   Completer
		err error
	)
	model := strings.TrimSpace(opts.Model)
	switch {
	case strings.HasPrefix(model, "gemini"):
		c, err = NewGemini(ctx, GeminiConfig{
			Model:   model,
			APIKeys: opts.GeminiAPIKeys,
			BaseURL: opts.GeminiBaseURL,
			Logger:  logger,
		})
	case strings.HasPrefix(model, "ollama:"):
		c = NewOllama(opts.OllamaURL, strings.TrimPrefix(model, "ollama:"))
	case strings.HasPrefix(model, "openrouter:"):
		c, err = NewOpenRouter(opts.OpenRouterAPIKey, opts.OpenRouterURL, strings.TrimPrefix(model, "openrouter:"))
	case model == "google-translate":
		c = NewGoogleTranslate(opts.GoogleCredentials)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c = Bounded(c, timeout)
	if opts.Validate {
		c = Validated(c, validator.New())
	}
	if opts.Memory != nil {
		c = Cached(c, opts.Memory, logger)
	}
	return c, nil
}

// ParseKeys splits a comma-separated key list, dropping blanks.
func ParseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func languageName(lang hadith.Language) string {
	switch lang {
	case hadith.Arabic:
		return "Arabic"
	case hadith.English:
		return "English"
	case hadith.Urdu:
		return "Urdu"
	}
	return string(lang)
}

const instructions = `You are an expert Islamic scholar and translator specialising in hadith.
Translate the Arabic hadith text provided into %[1]s.

Requirements:
- This is a sacred religious text. Accuracy comes first.
- When a reference translation is provided, use it as the primary guide to meaning, context and tone. The Arabic remains the source text.
- Capture the intent and meaning rather than a word-for-word rendering.
- Use formal, respectful language. Refer to the Prophet Muhammad ﷺ as "Allah's Messenger" or "the Messenger of Allah".
- Preserve Islamic terminology. Use transliteration with macrons (ā, ī, ū) and ʿ/ʾ for Arabic names and terms.
- Translate the complete text, including narrator attributions and the chain of transmission.
- Do not translate modern grading notes unless they are part of the Arabic.

Report your confidence as "high", "medium" or "low". Use "high" only when you are certain of the accuracy.`

func systemPrompt(target hadith.Language) string {
	return fmt.Sprintf(instructions, languageName(target))
}

func userPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following Arabic hadith text to %s:\n\n", languageName(req.TargetLang))
	fmt.Fprintf(&sb, "Arabic: %s\n", req.SourceText)
	if req.ReferenceText != "" {
		fmt.Fprintf(&sb, "\n%s translation (for reference): %s\n", languageName(req.ReferenceLang), req.ReferenceText)
	}
	return sb.String()
}

func normalizeConfidence(label string) string {
	switch l := strings.ToLower(strings.TrimSpace(label)); l {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceMachine:
		return l
	}
	return ConfidenceLow
}
