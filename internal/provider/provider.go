// Package provider returns the next acceptable hadith of a collection.
//
// For every candidate number the origins are tried strictly in order. The
// first origin that answers supplies the original text, its own translation
// and the grade. Translation slots it leaves empty are filled from the local
// database and then, if enabled, by the completion adapter. When every
// origin fails the local database record is used as is. Records graded weak
// are skipped and the next number is tried until the attempt budget runs out.
package provider

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/valpere/hadithfeed/internal/completion"
	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/quality"
	"github.com/valpere/hadithfeed/internal/source"
)

const DefaultMaxAttempts = 10

// DefaultTargets are the translation slots a record is expected to carry.
var DefaultTargets = []hadith.Language{hadith.English, hadith.Urdu}

type Mode string

const (
	ModeOnline Mode = "online"
	ModeLocal  Mode = "local"
)

type Config struct {
	Mode Mode
	// FallbackToLocal allows the local full record when every remote origin
	// failed. It has no effect in ModeLocal.
	FallbackToLocal bool
	AIEnabled       bool
	MaxAttempts     int
	// Targets lists the translation slots to fill and to report as
	// Missing. Empty means DefaultTargets.
	Targets []hadith.Language
}

// Local is the read side of the content database.
type Local interface {
	LookupTranslation(ctx context.Context, collection string, number int, lang hadith.Language) (string, bool, error)
	LookupRecord(ctx context.Context, collection string, number int) (*hadith.Record, bool, error)
}

type Provider struct {
	cfg       Config
	sources   []source.Client
	targets   []hadith.Language
	local     Local
	completer completion.Completer
	logger    *zap.Logger
}

// New returns a Provider trying sources in the given order. local,
// completer and logger may be nil.
func New(cfg Config, sources []source.Client, local Local, completer completion.Completer, logger *zap.Logger) *Provider {
	if cfg.Mode == "" {
		cfg.Mode = ModeOnline
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Provider{
		cfg:       cfg,
		sources:   sources,
		local:     local,
		completer: completer,
		logger:    logger,
	}
	targets := cfg.Targets
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	seen := make(map[hadith.Language]bool)
	for _, lang := range targets {
		if !seen[lang] {
			seen[lang] = true
			p.targets = append(p.targets, lang)
		}
	}
	return p
}

// GetNext returns the first acceptable record at or after start. The
// record's Number is the accepted index, which the caller persists as its
// new cursor. maxAttempts ≤ 0 uses the configured budget.
//
// The only errors are a *DefinitiveFailure and the context's error. A ctx
// cancelled while a candidate is being assembled is reported as such, never
// as a missing index.
func (p *Provider) GetNext(ctx context.Context, collection string, start, maxAttempts int) (*hadith.Record, error) {
	if maxAttempts <= 0 {
		maxAttempts = p.cfg.MaxAttempts
	}

	n := start
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := p.candidate(ctx, collection, n)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b == nil {
			return nil, &DefinitiveFailure{Kind: NoSource, Collection: collection, Number: n, Attempts: attempt}
		}

		if quality.IsWeak(b.rec.Grade) {
			p.logger.Info("skipping weak hadith",
				zap.String("collection", collection),
				zap.Int("number", n),
				zap.String("grade", b.rec.Grade),
				zap.String("indicator", quality.Indicator(b.rec.Grade)),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts))
			n++
			continue
		}

		rec := b.freeze(p.targets)
		p.logger.Info("selected hadith",
			zap.String("collection", collection),
			zap.Int("number", rec.Number),
			zap.String("origin", string(rec.Provenance.Original)),
			zap.String("grade", rec.Grade),
			zap.Int("skipped", n-start))
		return rec, nil
	}

	return nil, &DefinitiveFailure{Kind: Exhausted, Collection: collection, Number: n - 1, Attempts: maxAttempts}
}

// Get returns the record at exactly number without applying the quality
// gate. Completion is still skipped for a record graded weak.
func (p *Provider) Get(ctx context.Context, collection string, number int) (*hadith.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := p.candidate(ctx, collection, number)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &DefinitiveFailure{Kind: NoSource, Collection: collection, Number: number, Attempts: 1}
	}
	return b.freeze(p.targets), nil
}

// candidate assembles the record for one number, or returns nil when no
// origin has any original text for it.
func (p *Provider) candidate(ctx context.Context, collection string, n int) *builder {
	if p.cfg.Mode == ModeLocal {
		return p.fromLocal(ctx, collection, n)
	}

	for _, src := range p.sources {
		res := src.Fetch(ctx, collection, n)
		if !res.OK() {
			p.logger.Warn("origin failed",
				zap.String("origin", string(res.Origin)),
				zap.String("collection", collection),
				zap.Int("number", n),
				zap.Stringer("status", res.Status),
				zap.Error(res.Err))
			continue
		}

		p.logger.Debug("origin answered",
			zap.String("origin", string(res.Origin)),
			zap.Int("number", n),
			zap.Duration("latency", res.Latency))
		b := newBuilder(collection, n)
		b.fromFragment(res.Origin, res.Fragment)
		for _, lang := range p.targets {
			if !b.has(lang) {
				p.fill(ctx, b, lang)
			}
		}
		return b
	}

	if !p.cfg.FallbackToLocal {
		return nil
	}
	p.logger.Info("falling back to local database", zap.String("collection", collection), zap.Int("number", n))
	return p.fromLocal(ctx, collection, n)
}

func (p *Provider) fromLocal(ctx context.Context, collection string, n int) *builder {
	if p.local == nil {
		return nil
	}
	rec, found, err := p.local.LookupRecord(ctx, collection, n)
	if err != nil {
		p.logger.Warn("local lookup failed", zap.String("collection", collection), zap.Int("number", n), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	b := newBuilder(collection, n)
	b.fromRecord(rec)
	return b
}

// fill tries the local database, then the completion adapter, for one
// missing translation slot. Failure leaves the slot empty.
func (p *Provider) fill(ctx context.Context, b *builder, lang hadith.Language) {
	collection, n := b.rec.Collection, b.rec.Number

	if p.local != nil {
		text, found, err := p.local.LookupTranslation(ctx, collection, n, lang)
		if err != nil {
			p.logger.Warn("local translation lookup failed",
				zap.String("lang", string(lang)), zap.Int("number", n), zap.Error(err))
		}
		if found {
			b.setTranslation(lang, text, hadith.TranslationSource{Origin: hadith.OriginLocal})
			return
		}
	}

	if !p.cfg.AIEnabled || p.completer == nil {
		return
	}
	if quality.IsWeak(b.rec.Grade) {
		p.logger.Info("skipping completion for weak hadith",
			zap.Int("number", n), zap.String("grade", b.rec.Grade))
		return
	}

	refText, refLang := b.reference(lang)
	res, err := p.completer.Complete(ctx, completion.Request{
		SourceText:    b.rec.OriginalText,
		ReferenceText: refText,
		ReferenceLang: refLang,
		TargetLang:    lang,
		Collection:    collection,
		Number:        n,
	})
	if err != nil {
		p.logger.Warn("completion failed, translation unavailable",
			zap.String("lang", string(lang)), zap.Int("number", n), zap.Error(err))
		return
	}
	b.setTranslation(lang, res.Text, hadith.TranslationSource{
		Origin:     hadith.OriginCompletion,
		Backend:    res.Backend,
		Model:      res.Model,
		Confidence: res.Confidence,
	})
}

// SourceInfo describes how the provider is wired.
type SourceInfo struct {
	Mode            Mode     `json:"mode"`
	Origins         []string `json:"origins"`
	LocalAvailable  bool     `json:"local_available"`
	FallbackEnabled bool     `json:"fallback_enabled"`
	AIEnabled       bool     `json:"ai_enabled"`
	Completer       string   `json:"completer,omitempty"`
	MaxAttempts     int      `json:"max_attempts"`
}

func (p *Provider) Info() SourceInfo {
	info := SourceInfo{
		Mode:            p.cfg.Mode,
		LocalAvailable:  p.local != nil,
		FallbackEnabled: p.cfg.FallbackToLocal,
		AIEnabled:       p.cfg.AIEnabled && p.completer != nil,
		MaxAttempts:     p.cfg.MaxAttempts,
	}
	if p.cfg.Mode == ModeOnline {
		for _, src := range p.sources {
			info.Origins = append(info.Origins, string(src.Origin()))
		}
	}
	if info.AIEnabled {
		info.Completer = p.completer.Name()
	}
	return info
}

type FailureKind int

const (
	Exhausted FailureKind = iota + 1
	NoSource
)

var (
	ErrExhausted = errors.New("no acceptable record found within attempt bound")
	ErrNoSource  = errors.New("no source has this index")
)

// DefinitiveFailure is the only failure GetNext reports. For NoSource the
// caller must not advance its cursor past Number.
type DefinitiveFailure struct {
	Kind       FailureKind
	Collection string
	// Number is the failing index for NoSource and the last rejected index
	// for Exhausted.
	Number   int
	Attempts int
}

func (f *DefinitiveFailure) Error() string {
	switch f.Kind {
	case NoSource:
		return fmt.Sprintf("%s:%d: %v", f.Collection, f.Number, ErrNoSource)
	case Exhausted:
		return fmt.Sprintf("%s: %v (%d attempts, last %d)", f.Collection, ErrExhausted, f.Attempts, f.Number)
	}
	return "definitive failure"
}

func (f *DefinitiveFailure) Unwrap() error {
	switch f.Kind {
	case NoSource:
		return ErrNoSource
	case Exhausted:
		return ErrExhausted
	}
	return nil
}
