package hadith

import "testing"

func TestRecord_Clone_IsDeep(t *testing.T) {
	r := &Record{
		Collection:   "mishkat",
		Number:       7,
		OriginalText: "إنما الأعمال بالنيات",
		Translations: map[Language]string{English: "Actions are by intentions"},
		Provenance: Provenance{
			Original:     OriginSunnah,
			Translations: map[Language]TranslationSource{English: {Origin: OriginSunnah}},
		},
		Missing: []Language{Urdu},
	}

	c := r.Clone()
	c.Translations[Urdu] = "changed"
	c.Provenance.Translations[Urdu] = TranslationSource{Origin: OriginLocal}
	c.Missing[0] = English

	if _, ok := r.Translations[Urdu]; ok {
		t.Error("clone shares the translations map")
	}
	if _, ok := r.Provenance.Translations[Urdu]; ok {
		t.Error("clone shares the provenance map")
	}
	if r.Missing[0] != Urdu {
		t.Error("clone shares the missing slice")
	}
}

func TestRecord_Clone_Nil(t *testing.T) {
	var r *Record
	if r.Clone() != nil {
		t.Error("expected nil clone of nil record")
	}
}

func TestRecord_Translation_EmptyIsAbsent(t *testing.T) {
	r := &Record{Translations: map[Language]string{English: "", Urdu: "متن"}}

	if _, ok := r.Translation(English); ok {
		t.Error("empty translation should be reported absent")
	}
	if text, ok := r.Translation(Urdu); !ok || text != "متن" {
		t.Errorf("unexpected urdu translation %q, %v", text, ok)
	}
}

func TestRecord_UsedCompletion(t *testing.T) {
	r := &Record{Provenance: Provenance{Translations: map[Language]TranslationSource{
		English: {Origin: OriginSunnah},
	}}}
	if r.UsedCompletion() {
		t.Error("expected no completion")
	}

	r.Provenance.Translations[Urdu] = TranslationSource{Origin: OriginCompletion, Confidence: "high"}
	if !r.UsedCompletion() {
		t.Error("expected completion to be reported")
	}
}

func TestRecord_Languages_Sorted(t *testing.T) {
	r := &Record{Translations: map[Language]string{Urdu: "u", English: "e", Arabic: ""}}

	got := r.Languages()
	if len(got) != 2 || got[0] != English || got[1] != Urdu {
		t.Errorf("unexpected languages %v", got)
	}
}
