package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/hadithfeed/internal/store"
)

type bounded struct {
	next    Completer
	timeout time.Duration
}

// Bounded limits every call of c to timeout.
func Bounded(c Completer, timeout time.Duration) Completer {
	return &bounded{next: c, timeout: timeout}
}

func (b *bounded) Name() string { return b.next.Name() }

func (b *bounded) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Complete(ctx, req)
}

// LanguageChecker reports whether text is written in lang.
type LanguageChecker interface {
	IsValid(text, lang string) (bool, error)
}

type validated struct {
	next    Completer
	checker LanguageChecker
}

// Validated rejects completions written in a language other than the
// requested one.
func Validated(c Completer, checker LanguageChecker) Completer {
	return &validated{next: c, checker: checker}
}

func (v *validated) Name() string { return v.next.Name() }

func (v *validated) Complete(ctx context.Context, req Request) (*Result, error) {
	res, err := v.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if ok, err := v.checker.IsValid(res.Text, string(req.TargetLang)); !ok {
		return nil, fmt.Errorf("%s completion rejected: %w", v.next.Name(), err)
	}
	return res, nil
}

// Memory is the part of the state store the cache needs.
type Memory interface {
	GetCachedTranslation(ctx context.Context, collection string, number int, sourceText, targetLang string) (*store.MemoryEntry, bool, error)
	SaveToMemory(ctx context.Context, collection string, number int, sourceText, targetLang, translatedText, backend, model, confidence string) error
}

type cached struct {
	next   Completer
	memory Memory
	logger *zap.Logger
}

// Cached returns remembered completions for the same hadith and source text
// and remembers new ones. Store errors are logged and never fail a call.
func Cached(c Completer, memory Memory, logger *zap.Logger) Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cached{next: c, memory: memory, logger: logger}
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Complete(ctx context.Context, req Request) (*Result, error) {
	lang := string(req.TargetLang)
	entry, found, err := c.memory.GetCachedTranslation(ctx, req.Collection, req.Number, req.SourceText, lang)
	if err != nil {
		c.logger.Warn("translation memory lookup failed", zap.Error(err))
	}
	if found {
		c.logger.Debug("translation memory hit",
			zap.String("collection", req.Collection),
			zap.Int("number", req.Number),
			zap.String("lang", lang))
		return &Result{
			Text:       entry.TranslatedText,
			Confidence: entry.Confidence,
			Backend:    entry.Backend,
			Model:      entry.Model,
		}, nil
	}

	res, err := c.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.memory.SaveToMemory(ctx, req.Collection, req.Number, req.SourceText, lang,
		res.Text, res.Backend, res.Model, res.Confidence); err != nil {
		c.logger.Warn("failed to save translation memory", zap.Error(err))
	}
	return res, nil
}
