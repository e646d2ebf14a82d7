package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/valpere/hadithfeed/internal/completion"
	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const collection = "mishkat"

type mockSource struct {
	origin hadith.Origin
	lang   hadith.Language

	mu      sync.Mutex
	results map[int]source.Result
	calls   []int
}

func newMockSource(origin hadith.Origin, lang hadith.Language) *mockSource {
	return &mockSource{origin: origin, lang: lang, results: make(map[int]source.Result)}
}

func (m *mockSource) Origin() hadith.Origin     { return m.origin }
func (m *mockSource) Language() hadith.Language { return m.lang }

func (m *mockSource) Fetch(ctx context.Context, collection string, number int) source.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, number)
	if res, ok := m.results[number]; ok {
		return res
	}
	return source.Result{Origin: m.origin, Status: source.StatusNotFound, Err: source.ErrNotFound}
}

func (m *mockSource) ok(number int, arabic, translation, grade string) {
	m.results[number] = source.Result{
		Origin: m.origin,
		Status: source.StatusOK,
		Fragment: &source.Fragment{
			Number:       number,
			OriginalText: arabic,
			Language:     m.lang,
			Translation:  translation,
			Grade:        grade,
		},
	}
}

func (m *mockSource) fail(number int, status source.Status) {
	m.results[number] = source.Result{Origin: m.origin, Status: status, Err: fmt.Errorf("%v", status)}
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type translationKey struct {
	number int
	lang   hadith.Language
}

type mockLocal struct {
	records      map[int]*hadith.Record
	translations map[translationKey]string
	recordCalls  int
	err          error
}

func newMockLocal() *mockLocal {
	return &mockLocal{
		records:      make(map[int]*hadith.Record),
		translations: make(map[translationKey]string),
	}
}

func (m *mockLocal) LookupTranslation(ctx context.Context, collection string, number int, lang hadith.Language) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	text, ok := m.translations[translationKey{number, lang}]
	return text, ok, nil
}

func (m *mockLocal) LookupRecord(ctx context.Context, collection string, number int) (*hadith.Record, bool, error) {
	m.recordCalls++
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if m.err != nil {
		return nil, false, m.err
	}
	rec, ok := m.records[number]
	return rec, ok, nil
}

func (m *mockLocal) record(number int, arabic, grade string, translations map[hadith.Language]string) {
	prov := hadith.Provenance{Original: hadith.OriginLocal, Translations: make(map[hadith.Language]hadith.TranslationSource)}
	for lang := range translations {
		prov.Translations[lang] = hadith.TranslationSource{Origin: hadith.OriginLocal}
	}
	if grade != "" {
		prov.Grade = hadith.OriginLocal
	}
	m.records[number] = &hadith.Record{
		Collection:   collection,
		Number:       number,
		OriginalText: arabic,
		Translations: translations,
		Grade:        grade,
		Provenance:   prov,
	}
}

type mockCompleter struct {
	text string
	err  error
	reqs []completion.Request
}

func (m *mockCompleter) Name() string { return "mock" }

func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &completion.Result{Text: m.text, Confidence: "high", Backend: "mock", Model: "m1"}, nil
}

type fixture struct {
	sunnah    *mockSource
	alhadees  *mockSource
	local     *mockLocal
	completer *mockCompleter
}

func newFixture() *fixture {
	return &fixture{
		sunnah:    newMockSource(hadith.OriginSunnah, hadith.English),
		alhadees:  newMockSource(hadith.OriginAlHadees, hadith.Urdu),
		local:     newMockLocal(),
		completer: &mockCompleter{text: "AI translation"},
	}
}

func (f *fixture) provider(cfg Config) *Provider {
	return New(cfg, []source.Client{f.sunnah, f.alhadees}, f.local, f.completer, nil)
}

var onlineAll = Config{Mode: ModeOnline, FallbackToLocal: true, AIEnabled: true}

func TestGetNext_PrimaryIsAuthoritative(t *testing.T) {
	f := newFixture()
	f.sunnah.ok(5, "نص عربي", "English text", "صحيح")
	f.local.translations[translationKey{5, hadith.Urdu}] = "اردو ترجمہ"
	f.local.translations[translationKey{5, hadith.English}] = "local english must not win"

	rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 5, 3)
	require.NoError(t, err)

	want := &hadith.Record{
		Collection:   collection,
		Number:       5,
		OriginalText: "نص عربي",
		Translations: map[hadith.Language]string{
			hadith.English: "English text",
			hadith.Urdu:    "اردو ترجمہ",
		},
		Grade: "صحيح",
		Provenance: hadith.Provenance{
			Original: hadith.OriginSunnah,
			Grade:    hadith.OriginSunnah,
			Translations: map[hadith.Language]hadith.TranslationSource{
				hadith.English: {Origin: hadith.OriginSunnah},
				hadith.Urdu:    {Origin: hadith.OriginLocal},
			},
		},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, f.alhadees.callCount(), "secondary origin must not be called")
	assert.Empty(t, f.completer.reqs, "completion must not be called when local has the slot")
}

func TestGetNext_SecondarySubstitutes(t *testing.T) {
	tests := []struct {
		name        string
		primary     source.Status
		cfg         Config
		localEN     string
		wantEN      string
		wantOrigin  hadith.Origin
		wantMissing []hadith.Language
	}{
		{
			name:       "filled by local",
			primary:    source.StatusTransient,
			cfg:        onlineAll,
			localEN:    "local english",
			wantEN:     "local english",
			wantOrigin: hadith.OriginLocal,
		},
		{
			name:       "filled by completion",
			primary:    source.StatusMalformed,
			cfg:        onlineAll,
			wantEN:     "AI translation",
			wantOrigin: hadith.OriginCompletion,
		},
		{
			name:        "left absent without ai",
			primary:     source.StatusNotFound,
			cfg:         Config{Mode: ModeOnline, FallbackToLocal: true},
			wantMissing: []hadith.Language{hadith.English},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.sunnah.fail(7, tt.primary)
			f.alhadees.ok(7, "نص", "اردو", "حسن")
			if tt.localEN != "" {
				f.local.translations[translationKey{7, hadith.English}] = tt.localEN
			}

			rec, err := f.provider(tt.cfg).GetNext(context.Background(), collection, 7, 1)
			require.NoError(t, err)

			assert.Equal(t, "نص", rec.OriginalText)
			assert.Equal(t, "حسن", rec.Grade)
			assert.Equal(t, hadith.OriginAlHadees, rec.Provenance.Original)
			assert.Equal(t, hadith.OriginAlHadees, rec.Provenance.Grade)
			assert.Equal(t, "اردو", rec.Translations[hadith.Urdu])
			assert.Equal(t, tt.wantMissing, rec.Missing)

			en, ok := rec.Translation(hadith.English)
			if tt.wantEN == "" {
				assert.False(t, ok, "english must never be fabricated")
				_, hasKey := rec.Translations[hadith.English]
				assert.False(t, hasKey, "absent slot must have no key")
				return
			}
			assert.Equal(t, tt.wantEN, en)
			assert.Equal(t, tt.wantOrigin, rec.Provenance.Translations[hadith.English].Origin)
		})
	}
}

func TestGetNext_CompletionUsesReference(t *testing.T) {
	f := newFixture()
	f.sunnah.fail(7, source.StatusTransient)
	f.alhadees.ok(7, "نص", "اردو", "")

	rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 7, 1)
	require.NoError(t, err)

	require.Len(t, f.completer.reqs, 1)
	want := completion.Request{
		SourceText:    "نص",
		ReferenceText: "اردو",
		ReferenceLang: hadith.Urdu,
		TargetLang:    hadith.English,
		Collection:    collection,
		Number:        7,
	}
	if diff := cmp.Diff(want, f.completer.reqs[0]); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rec.UsedCompletion())
	assert.Equal(t, hadith.TranslationSource{
		Origin: hadith.OriginCompletion, Backend: "mock", Model: "m1", Confidence: "high",
	}, rec.Provenance.Translations[hadith.English])
}

func TestGetNext_CompletionWithoutReference(t *testing.T) {
	f := newFixture()
	f.sunnah.ok(3, "نص", "", "")

	_, err := f.provider(onlineAll).GetNext(context.Background(), collection, 3, 1)
	require.NoError(t, err)

	// Both slots were completed; the first from the original text alone,
	// the second with the first as reference.
	require.Len(t, f.completer.reqs, 2)
	assert.Equal(t, hadith.English, f.completer.reqs[0].TargetLang)
	assert.Empty(t, f.completer.reqs[0].ReferenceText)
	assert.Equal(t, hadith.Urdu, f.completer.reqs[1].TargetLang)
	assert.Equal(t, "AI translation", f.completer.reqs[1].ReferenceText)
	assert.Equal(t, hadith.English, f.completer.reqs[1].ReferenceLang)
}

func TestGetNext_CompletionFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.completer.err = errors.New("service unavailable")
	f.sunnah.ok(1, "نص", "English", "صحيح")

	rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []hadith.Language{hadith.Urdu}, rec.Missing)
	assert.Equal(t, []hadith.Language{hadith.English}, rec.Languages())
}

func TestGetNext_LocalErrorIsNotFatal(t *testing.T) {
	f := newFixture()
	f.local.err = errors.New("database is locked")
	f.sunnah.ok(1, "نص", "English", "")

	rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "AI translation", rec.Translations[hadith.Urdu])
}

func TestGetNext_SkipsWeak(t *testing.T) {
	const start, weak = 10, 3

	setup := func() *fixture {
		f := newFixture()
		grades := []string{"ضعیف", "Da'if", "WEAK"}
		for i := 0; i < weak; i++ {
			f.sunnah.ok(start+i, "نص", "English", grades[i])
		}
		f.sunnah.ok(start+weak, "نص مقبول", "Accepted", "Sahih")
		return f
	}

	t.Run("budget covers the weak run", func(t *testing.T) {
		f := setup()
		rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, start, weak+1)
		require.NoError(t, err)
		assert.Equal(t, start+weak, rec.Number)
		assert.Equal(t, "Accepted", rec.Translations[hadith.English])
	})

	t.Run("budget exhausted", func(t *testing.T) {
		f := setup()
		_, err := f.provider(onlineAll).GetNext(context.Background(), collection, start, weak)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)

		var failure *DefinitiveFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, Exhausted, failure.Kind)
		assert.Equal(t, weak, failure.Attempts)
		assert.Equal(t, start+weak-1, failure.Number)
		assert.Equal(t, []int{10, 11, 12}, f.sunnah.calls)
	})

	t.Run("weak records are not completed", func(t *testing.T) {
		f := setup()
		_, err := f.provider(onlineAll).GetNext(context.Background(), collection, start, weak+1)
		require.NoError(t, err)
		// Only the accepted record needed its Urdu slot completed.
		require.Len(t, f.completer.reqs, 1)
		assert.Equal(t, start+weak, f.completer.reqs[0].Number)
	})
}

func TestGetNext_NoSource(t *testing.T) {
	f := newFixture()

	_, err := f.provider(onlineAll).GetNext(context.Background(), collection, 42, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.NotErrorIs(t, err, ErrExhausted)

	var failure *DefinitiveFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 42, failure.Number)
	assert.Equal(t, 1, failure.Attempts, "no source must not consume a weak retry")

	assert.Equal(t, []int{42}, f.sunnah.calls)
	assert.Equal(t, []int{42}, f.alhadees.calls)
	assert.Equal(t, 1, f.local.recordCalls)
}

func TestGetNext_NoSourceAfterWeak(t *testing.T) {
	f := newFixture()
	f.sunnah.ok(1, "نص", "English", "weak")

	_, err := f.provider(onlineAll).GetNext(context.Background(), collection, 1, 5)
	var failure *DefinitiveFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, NoSource, failure.Kind)
	assert.Equal(t, 2, failure.Number)
}

func TestGetNext_LocalFallback(t *testing.T) {
	newLocalOnlyFixture := func() *fixture {
		f := newFixture()
		f.sunnah.fail(9, source.StatusTransient)
		f.alhadees.fail(9, source.StatusTransient)
		f.local.record(9, "نص محلي", "صحيح", map[hadith.Language]string{hadith.Urdu: "اردو"})
		return f
	}

	t.Run("enabled", func(t *testing.T) {
		f := newLocalOnlyFixture()
		rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 9, 1)
		require.NoError(t, err)
		assert.Equal(t, hadith.OriginLocal, rec.Provenance.Original)
		assert.Equal(t, "نص محلي", rec.OriginalText)
		// The local record is authoritative: no merging, no completion.
		assert.Empty(t, f.completer.reqs)
		assert.Equal(t, []hadith.Language{hadith.English}, rec.Missing)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newLocalOnlyFixture()
		cfg := onlineAll
		cfg.FallbackToLocal = false
		_, err := f.provider(cfg).GetNext(context.Background(), collection, 9, 1)
		assert.ErrorIs(t, err, ErrNoSource)
		assert.Zero(t, f.local.recordCalls)
	})
}

func TestGetNext_LocalModeNeverTouchesNetwork(t *testing.T) {
	f := newFixture()
	f.local.record(1, "نص", "", map[hadith.Language]string{hadith.English: "English"})
	f.local.record(2, "نص", "ضعيف", map[hadith.Language]string{hadith.English: "English"})
	f.local.record(3, "نص", "صحيح", map[hadith.Language]string{hadith.English: "English", hadith.Urdu: "اردو"})

	p := f.provider(Config{Mode: ModeLocal, AIEnabled: true})
	for _, start := range []int{1, 2} {
		rec, err := p.GetNext(context.Background(), collection, start, 3)
		require.NoError(t, err)
		assert.Equal(t, hadith.OriginLocal, rec.Provenance.Original)
	}

	assert.Zero(t, f.sunnah.callCount())
	assert.Zero(t, f.alhadees.callCount())
	assert.Empty(t, f.completer.reqs)
}

func TestGetNext_EndToEnd(t *testing.T) {
	f := newFixture()
	f.sunnah.ok(100, "...", "translation_en", "Sahih")
	f.completer.text = "اردو از اے آئی"

	rec, err := f.provider(onlineAll).GetNext(context.Background(), collection, 100, 10)
	require.NoError(t, err)

	assert.Equal(t, 100, rec.Number)
	assert.Equal(t, "translation_en", rec.Translations[hadith.English])
	assert.Equal(t, "اردو از اے آئی", rec.Translations[hadith.Urdu])
	assert.Equal(t, "Sahih", rec.Grade)
	assert.Equal(t, hadith.OriginCompletion, rec.Provenance.Translations[hadith.Urdu].Origin)
	assert.Empty(t, rec.Missing)
	assert.Zero(t, f.alhadees.callCount())
	assert.Equal(t, 1, f.sunnah.callCount())
}

func TestGetNext_Cancelled(t *testing.T) {
	f := newFixture()
	f.sunnah.ok(1, "نص", "English", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.provider(onlineAll).GetNext(ctx, collection, 1, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.sunnah.callCount())
}

// abortingSource cancels the run while its fetch is in flight, the way an
// interrupt arrives during a slow request.
type abortingSource struct {
	*mockSource
	cancel context.CancelFunc
}

func (a *abortingSource) Fetch(ctx context.Context, collection string, number int) source.Result {
	a.cancel()
	a.mockSource.Fetch(ctx, collection, number)
	return source.Result{Origin: a.origin, Status: source.StatusTransient, Err: ctx.Err()}
}

func TestGetNext_CancelledDuringFetch(t *testing.T) {
	f := newFixture()
	f.local.record(1, "نص", "", map[hadith.Language]string{hadith.English: "English"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	aborting := &abortingSource{mockSource: f.sunnah, cancel: cancel}
	p := New(onlineAll, []source.Client{aborting, f.alhadees}, f.local, f.completer, nil)

	_, err := p.GetNext(ctx, collection, 1, 3)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoSource)
	assert.Equal(t, 1, f.sunnah.callCount())

	_, err = p.Get(ctx, collection, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetNext_DefaultBudget(t *testing.T) {
	f := newFixture()
	for i := 1; i <= DefaultMaxAttempts+1; i++ {
		f.sunnah.ok(i, "نص", "English", "weak")
	}

	_, err := f.provider(onlineAll).GetNext(context.Background(), collection, 1, 0)
	var failure *DefinitiveFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, DefaultMaxAttempts, failure.Attempts)
}

func TestGetNext_LocalModeReportsMissing(t *testing.T) {
	f := newFixture()
	f.local.record(1, "نص", "صحيح", map[hadith.Language]string{hadith.English: "English"})

	p := New(Config{Mode: ModeLocal}, nil, f.local, nil, nil)
	rec, err := p.GetNext(context.Background(), collection, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, map[hadith.Language]string{hadith.English: "English"}, rec.Translations)
	assert.Equal(t, []hadith.Language{hadith.Urdu}, rec.Missing)

	custom := New(Config{Mode: ModeLocal, Targets: []hadith.Language{hadith.English}}, nil, f.local, nil, nil)
	rec, err = custom.GetNext(context.Background(), collection, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, rec.Missing)
}

func TestGetNext_ReturnsIndependentRecord(t *testing.T) {
	f := newFixture()
	f.local.record(1, "نص", "", map[hadith.Language]string{hadith.English: "English", hadith.Urdu: "اردو"})

	rec, err := f.provider(Config{Mode: ModeLocal}).GetNext(context.Background(), collection, 1, 1)
	require.NoError(t, err)

	rec.Translations[hadith.English] = "changed"
	assert.Equal(t, "English", f.local.records[1].Translations[hadith.English])
}

func TestGet_BypassesGate(t *testing.T) {
	f := newFixture()
	f.alhadees.ok(4, "نص", "اردو", "Zaeef")
	f.sunnah.fail(4, source.StatusNotFound)

	rec, err := f.provider(onlineAll).Get(context.Background(), collection, 4)
	require.NoError(t, err)
	assert.Equal(t, "Zaeef", rec.Grade)
	assert.Empty(t, f.completer.reqs, "weak records are never completed")
	assert.Equal(t, []hadith.Language{hadith.English}, rec.Missing)

	_, err = f.provider(onlineAll).Get(context.Background(), collection, 5)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestInfo(t *testing.T) {
	f := newFixture()

	info := f.provider(onlineAll).Info()
	assert.Equal(t, SourceInfo{
		Mode:            ModeOnline,
		Origins:         []string{"sunnah", "alhadees"},
		LocalAvailable:  true,
		FallbackEnabled: true,
		AIEnabled:       true,
		Completer:       "mock",
		MaxAttempts:     DefaultMaxAttempts,
	}, info)

	local := New(Config{Mode: ModeLocal}, nil, f.local, nil, nil).Info()
	assert.Equal(t, ModeLocal, local.Mode)
	assert.Empty(t, local.Origins)
	assert.False(t, local.AIEnabled)
}

func TestDefinitiveFailure_Error(t *testing.T) {
	noSource := &DefinitiveFailure{Kind: NoSource, Collection: collection, Number: 3}
	assert.Equal(t, "mishkat:3: no source has this index", noSource.Error())

	exhausted := &DefinitiveFailure{Kind: Exhausted, Collection: collection, Number: 12, Attempts: 3}
	assert.Contains(t, exhausted.Error(), "no acceptable record found within attempt bound")

	wrapped := fmt.Errorf("run: %w", exhausted)
	assert.True(t, errors.Is(wrapped, ErrExhausted))
}
