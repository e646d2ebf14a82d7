package completion

import (
	"context"
	"fmt"
	"html"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleTranslate uses Cloud Translation. It translates the source text
// directly and ignores the reference translation.
type GoogleTranslate struct {
	credentials string
}

func NewGoogleTranslate(credentials string) *GoogleTranslate {
	return &GoogleTranslate{credentials: credentials}
}

func (s *GoogleTranslate) Name() string {
	return "google"
}

func (s *GoogleTranslate) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	target, err := language.Parse(string(req.TargetLang))
	if err != nil {
		return nil, fmt.Errorf("invalid target language: %w", err)
	}

	var opts []option.ClientOption
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	translations, err := client.Translate(ctx, []string{req.SourceText}, target, &translate.Options{
		Source: language.Arabic,
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) == 0 || translations[0].Text == "" {
		return nil, ErrEmptyCompletion
	}

	return &Result{
		Text:       html.UnescapeString(translations[0].Text),
		Confidence: ConfidenceMachine,
		Backend:    s.Name(),
		Model:      "nmt",
		Latency:    time.Since(start),
	}, nil
}
