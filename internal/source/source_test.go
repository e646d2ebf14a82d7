package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/valpere/hadithfeed/internal/hadith"
)

const sunnahPage = `<html><body>
<div class="hadithTextContainers">
  <div class="english_hadith_full">
    <div class="hadith_narrated">Narrated Abu Hurairah:</div>
    <div class="text_details">
      Allah's Messenger said: "Spread
      the greeting of peace."
    </div>
  </div>
  <div class="arabic_hadith_full">
    <span class="arabic_text_details">أَفْشُوا\n السَّلَامَ   بَيْنَكُمْ</span>
  </div>
  <table class="gradetable">
    <tr><td class="english_grade"><b>Grade</b>:</td><td class="english_grade">Sahih (Darussalam)</td>
        <td class="arabic_grade">حكم :</td><td class="arabic_grade"><b>صَحِيحٌ</b> (الألباني)</td></tr>
  </table>
</div>
<script>var x = "ignored";</script>
</body></html>`

const sunnahEmptyPage = `<html><body><div class="crumbs">Mishkat al-Masabih</div></body></html>`

const sunnahNoArabicPage = `<html><body>
<div class="english_hadith_full"><div class="text_details">English only</div></div>
</body></html>`

const alhadeesPage = `<html><body>
<div class="container">
  <h4 class="font-arabic2">إِنَّمَا الْأَعْمَالُ\r\n بِالنِّيَّاتِ</h4>
  <h4 class="font-urdu">اعمال کا دارومدار نیتوں پر ہے</h4>
  <div class="row">
    <div class="col-6"><h5>Status</h5></div>
    <div class="col-6 text-right"><h5>حکمِ حدیث</h5><span class="text-success">صحیح</span></div>
  </div>
  <div class="mb-5">
    <div class="row"><div class="col-6"><h5>Status Reference</h5></div></div>
    <div class="row">
      <div class="col-6">Agreed upon</div>
      <div class="col-6 text-right"><h3 class="font-arabic2">ترقیم 12 (متفق علیہ)</h3></div>
    </div>
  </div>
</div>
</body></html>`

const alhadeesWeakPage = `<html><body>
  <h4 class="font-arabic2">نص</h4>
  <h4 class="font-urdu">ترجمہ</h4>
  <div class="row">
    <div class="col-6"><h5>Status</h5></div>
    <div class="col-6 text-right"><span class="text-success">ضعیف</span></div>
  </div>
</body></html>`

// nfc normalises expectations the same way the parsers normalise page text;
// stacked harakat are reordered canonically.
func nfc(s string) string { return norm.NFC.String(s) }

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSunnahClient_Fetch_Success(t *testing.T) {
	var gotPath, gotUA string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(sunnahPage))
	})

	c := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1})
	res := c.Fetch(context.Background(), "mishkat", 1887)

	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "/mishkat:1887", gotPath)
	assert.Contains(t, gotUA, "Mozilla")
	assert.Equal(t, hadith.OriginSunnah, res.Origin)
	assert.Equal(t, 1887, res.Fragment.Number)
	assert.Equal(t, hadith.English, res.Fragment.Language)
	assert.Equal(t, `Allah's Messenger said: "Spread the greeting of peace."`, res.Fragment.Translation)
	assert.Equal(t, nfc("أَفْشُوا السَّلَامَ بَيْنَكُمْ"), res.Fragment.OriginalText)
	assert.Equal(t, nfc("صَحِيحٌ"), res.Fragment.Grade)
	assert.Equal(t, nfc("(الألباني)"), res.Fragment.GradedBy)
}

func TestSunnahClient_Fetch_NotFoundStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 99999)

	assert.False(t, res.OK())
	assert.Equal(t, StatusNotFound, res.Status)
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.Nil(t, res.Fragment)
}

func TestSunnahClient_Fetch_EmptyPageIsNotFound(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sunnahEmptyPage))
	})

	res := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 5)

	assert.Equal(t, StatusNotFound, res.Status)
}

func TestSunnahClient_Fetch_Malformed(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sunnahNoArabicPage))
	})

	res := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 5)

	assert.Equal(t, StatusMalformed, res.Status)
	assert.ErrorIs(t, res.Err, ErrMalformed)
}

func TestSunnahClient_Fetch_ServerError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 5)

	assert.Equal(t, StatusTransient, res.Status)
	assert.ErrorIs(t, res.Err, ErrTransient)
}

func TestSunnahClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := NewSunnahClient(Options{BaseURL: srv.URL, Delay: -1, Timeout: 50 * time.Millisecond})
	start := time.Now()
	res := c.Fetch(context.Background(), "mishkat", 5)

	assert.Equal(t, StatusTransient, res.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSunnahClient_Fetch_ConnectionRefused(t *testing.T) {
	c := NewSunnahClient(Options{BaseURL: "http://127.0.0.1:1", Delay: -1, Timeout: time.Second})

	res := c.Fetch(context.Background(), "mishkat", 5)

	assert.Equal(t, StatusTransient, res.Status)
}

func TestAlHadeesClient_Fetch_Success(t *testing.T) {
	var gotPath string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(alhadeesPage))
	})

	c := NewAlHadeesClient(Options{BaseURL: srv.URL + "/", Delay: -1})
	res := c.Fetch(context.Background(), "mishkat", 1)

	require.True(t, res.OK(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "/mishkat/1", gotPath)
	assert.Equal(t, hadith.OriginAlHadees, res.Origin)
	assert.Equal(t, hadith.Urdu, res.Fragment.Language)
	assert.Equal(t, nfc("إِنَّمَا الْأَعْمَالُ بِالنِّيَّاتِ"), res.Fragment.OriginalText)
	assert.Equal(t, nfc("اعمال کا دارومدار نیتوں پر ہے"), res.Fragment.Translation)
	assert.Equal(t, nfc("صحیح"), res.Fragment.Grade)
	assert.Equal(t, nfc("(متفق علیہ)"), res.Fragment.GradedBy)
}

func TestAlHadeesClient_Fetch_WeakGrade(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(alhadeesWeakPage))
	})

	res := NewAlHadeesClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 2)

	require.True(t, res.OK())
	assert.Equal(t, nfc("ضعیف"), res.Fragment.Grade)
	assert.Empty(t, res.Fragment.GradedBy)
}

func TestAlHadeesClient_Fetch_NotFound(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Not here</h1></body></html>`))
	})

	res := NewAlHadeesClient(Options{BaseURL: srv.URL, Delay: -1}).Fetch(context.Background(), "mishkat", 2)

	assert.Equal(t, StatusNotFound, res.Status)
}

func TestFetcher_ThrottlesSameOrigin(t *testing.T) {
	const delay = 150 * time.Millisecond

	var mu sync.Mutex
	var hits []time.Time
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.Write([]byte(sunnahPage))
	})

	c := NewSunnahClient(Options{BaseURL: srv.URL, Delay: delay})

	var wg sync.WaitGroup
	for i := 1; i <= 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Fetch(context.Background(), "mishkat", n)
		}(i)
	}
	wg.Wait()

	require.Len(t, hits, 2)
	gap := hits[1].Sub(hits[0])
	if gap < 0 {
		gap = -gap
	}
	assert.GreaterOrEqual(t, gap, delay*9/10, "second request dispatched before the politeness delay")
}

func TestFetcher_DifferentOriginsNotThrottledTogether(t *testing.T) {
	const delay = 500 * time.Millisecond

	sunnah := newServer(t, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(sunnahPage)) })
	alhadees := newServer(t, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(alhadeesPage)) })

	a := NewSunnahClient(Options{BaseURL: sunnah.URL, Delay: delay})
	b := NewAlHadeesClient(Options{BaseURL: alhadees.URL, Delay: delay})

	start := time.Now()
	require.True(t, a.Fetch(context.Background(), "mishkat", 1).OK())
	require.True(t, b.Fetch(context.Background(), "mishkat", 1).OK())

	assert.Less(t, time.Since(start), delay, "calls to different origins must not share a throttle")
}

func TestFetcher_ThrottleHonoursCancellation(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(sunnahPage)) })
	c := NewSunnahClient(Options{BaseURL: srv.URL, Delay: time.Hour})

	require.True(t, c.Fetch(context.Background(), "mishkat", 1).OK())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := c.Fetch(ctx, "mishkat", 2)

	assert.Equal(t, StatusTransient, res.Status)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  a \n b\t\tc ", want: "a b c"},
		{in: `a\nb\r\nc\td`, want: "a b c d"},
		{in: `back\slash`, want: "back slash"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanText(tt.in), "cleanText(%q)", tt.in)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "transient", StatusTransient.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
	assert.Equal(t, "malformed", StatusMalformed.String())
}
