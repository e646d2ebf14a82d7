package provider

import (
	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/source"
)

// builder accumulates one candidate record. It never leaves the provider;
// freeze hands out an independent copy.
type builder struct {
	rec hadith.Record
	// order remembers fill order so the earliest translation is the
	// preferred completion reference.
	order []hadith.Language
}

func newBuilder(collection string, number int) *builder {
	return &builder{rec: hadith.Record{
		Collection:   collection,
		Number:       number,
		Translations: make(map[hadith.Language]string),
		Provenance: hadith.Provenance{
			Translations: make(map[hadith.Language]hadith.TranslationSource),
		},
	}}
}

func (b *builder) fromFragment(origin hadith.Origin, f *source.Fragment) {
	b.rec.OriginalText = f.OriginalText
	b.rec.Provenance.Original = origin
	if f.Grade != "" {
		b.rec.Grade = f.Grade
		b.rec.GradedBy = f.GradedBy
		b.rec.Provenance.Grade = origin
	}
	if f.Translation != "" {
		b.setTranslation(f.Language, f.Translation, hadith.TranslationSource{Origin: origin})
	}
}

func (b *builder) fromRecord(r *hadith.Record) {
	c := r.Clone()
	c.Collection, c.Number = b.rec.Collection, b.rec.Number
	b.rec = *c
	b.order = append(b.order, c.Languages()...)
}

func (b *builder) has(lang hadith.Language) bool {
	_, ok := b.rec.Translation(lang)
	return ok
}

func (b *builder) setTranslation(lang hadith.Language, text string, src hadith.TranslationSource) {
	if text == "" {
		return
	}
	if !b.has(lang) {
		b.order = append(b.order, lang)
	}
	b.rec.Translations[lang] = text
	b.rec.Provenance.Translations[lang] = src
}

// reference returns the first filled translation other than target. When
// there is none the reference is empty and the completion works from the
// original text alone.
func (b *builder) reference(target hadith.Language) (string, hadith.Language) {
	for _, lang := range b.order {
		if lang == target {
			continue
		}
		if text, ok := b.rec.Translation(lang); ok {
			return text, lang
		}
	}
	return "", ""
}

// freeze records which targets stayed empty and returns a copy.
func (b *builder) freeze(targets []hadith.Language) *hadith.Record {
	b.rec.Missing = nil
	for _, lang := range targets {
		if !b.has(lang) {
			b.rec.Missing = append(b.rec.Missing, lang)
		}
	}
	return b.rec.Clone()
}
