// Package hadith holds the record types shared by the sources, the local
// store and the provider.
package hadith

import "sort"

// Language is an ISO 639-1 code naming a translation slot.
type Language string

const (
	Arabic  Language = "ar"
	English Language = "en"
	Urdu    Language = "ur"
)

// Origin names where a piece of content came from.
type Origin string

const (
	OriginSunnah     Origin = "sunnah"
	OriginAlHadees   Origin = "alhadees"
	OriginLocal      Origin = "local"
	OriginCompletion Origin = "completion"
)

// TranslationSource records which origin filled a translation slot.
// Backend, Model and Confidence are only set for OriginCompletion.
type TranslationSource struct {
	Origin     Origin `json:"origin"`
	Backend    string `json:"backend,omitempty"`
	Model      string `json:"model,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

type Provenance struct {
	Original     Origin                         `json:"original"`
	Grade        Origin                         `json:"grade,omitempty"`
	Translations map[Language]TranslationSource `json:"translations"`
}

// Record is one complete hadith as handed to the caller. A Record
// returned by the provider is never mutated afterwards.
type Record struct {
	Collection   string              `json:"collection"`
	Number       int                 `json:"number"`
	OriginalText string              `json:"original_text"`
	Translations map[Language]string `json:"translations"`
	Grade        string              `json:"grade,omitempty"`
	GradedBy     string              `json:"graded_by,omitempty"`
	Provenance   Provenance          `json:"provenance"`
	// Missing lists the target languages no source could fill.
	Missing []Language `json:"missing,omitempty"`
}

// Translation returns the text stored for lang and whether it is present.
func (r *Record) Translation(lang Language) (string, bool) {
	text, ok := r.Translations[lang]
	return text, ok && text != ""
}

// UsedCompletion reports whether any translation slot was synthesised by
// the completion adapter.
func (r *Record) UsedCompletion() bool {
	for _, src := range r.Provenance.Translations {
		if src.Origin == OriginCompletion {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Translations = make(map[Language]string, len(r.Translations))
	for k, v := range r.Translations {
		out.Translations[k] = v
	}
	out.Provenance.Translations = make(map[Language]TranslationSource, len(r.Provenance.Translations))
	for k, v := range r.Provenance.Translations {
		out.Provenance.Translations[k] = v
	}
	if r.Missing != nil {
		out.Missing = append([]Language(nil), r.Missing...)
	}
	return &out
}

// Languages returns the populated translation languages in sorted order.
func (r *Record) Languages() []Language {
	langs := make([]Language, 0, len(r.Translations))
	for lang, text := range r.Translations {
		if text != "" {
			langs = append(langs, lang)
		}
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
