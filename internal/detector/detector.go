// Package detector identifies the language of translation output.
package detector

import (
	lingua "github.com/pemistahl/lingua-go"
)

// Languages a hadith translation may plausibly come back in. Persian and
// Hindi are included so Urdu output is not confused with its neighbours.
var candidates = []lingua.Language{
	lingua.Arabic,
	lingua.English,
	lingua.Urdu,
	lingua.Persian,
	lingua.Hindi,
}

type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidates...).
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the ISO 639-1 code of the detected language in upper case.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}
