// Package validator checks that a completed translation is in the requested language.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/hadithfeed/internal/detector"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// Letters used by Urdu but not by Persian or Arabic, plus the Urdu full stop.
const urduOnlyLetters = "ٹڈڑںےۓھ۔"

// honorifics are dropped before detection; they are Arabic whatever the
// surrounding language.
var honorifics = strings.NewReplacer(
	"ﷺ", " ",
	"صلی اللہ علیہ وسلم", " ",
	"صلى الله عليه وسلم", " ",
	"رضی اللہ عنہ", " ",
	"رضي الله عنه", " ",
)

// Validator is backed by a lingua-go detector, which is expensive to build; reuse it.
type Validator struct {
	det *detector.Detector
}

func New() *Validator {
	return &Validator{det: detector.New()}
}

// IsValid returns true when text appears to be written in lang.
//
// Short texts and texts whose language cannot be determined pass. When the
// detected language differs from lang the returned error names both codes.
func (v *Validator) IsValid(text, lang string) (bool, error) {
	if lang == "" {
		return true, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("translation is empty")
	}

	sample := strings.Join(strings.Fields(honorifics.Replace(text)), " ")
	if len([]rune(sample)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.DetectISO(sample)
	if !ok {
		return true, nil
	}

	return accept(detected, lang, sample)
}

// accept decides on a detection result. Urdu and Persian share a script and
// are often confused, so Urdu detected as Persian passes when the text uses
// letters Persian lacks. Arabic output for another target is the source
// text echoed back.
func accept(detected, lang, text string) (bool, error) {
	detected, lang = strings.ToLower(detected), strings.ToLower(lang)
	switch {
	case detected == lang:
		return true, nil
	case lang == "ur" && detected == "fa" && strings.ContainsAny(text, urduOnlyLetters):
		return true, nil
	case detected == "ar":
		return false, fmt.Errorf("expected %s but got untranslated Arabic", lang)
	}
	return false, fmt.Errorf("expected %s but detected %s", lang, detected)
}
