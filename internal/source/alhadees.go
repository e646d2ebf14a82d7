package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/valpere/hadithfeed/internal/hadith"
)

const DefaultAlHadeesURL = "https://al-hadees.com"

var (
	alhadeesArabicSel = cascadia.MustCompile("h4.font-arabic2")
	alhadeesUrduSel   = cascadia.MustCompile("h4.font-urdu")
	alhadeesRowSel    = cascadia.MustCompile("div.row")
	alhadeesH5Sel     = cascadia.MustCompile("h5")
	alhadeesGradeSel  = cascadia.MustCompile("div.col-6.text-right span.text-success")
	alhadeesRefSel    = cascadia.MustCompile("div.text-right h3.font-arabic2")

	parenRe = regexp.MustCompile(`\([^)]+\)`)
)

// AlHadeesClient scrapes al-hadees.com for the Arabic text, the Urdu
// translation and the grade.
type AlHadeesClient struct {
	baseURL string
	fetcher *fetcher
}

func NewAlHadeesClient(opts Options) *AlHadeesClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultAlHadeesURL
	}
	return &AlHadeesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher(opts, map[string]string{
			"User-Agent":                userAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Referer":                   "https://www.google.com/",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "cross-site",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		}),
	}
}

func (c *AlHadeesClient) Origin() hadith.Origin { return hadith.OriginAlHadees }

func (c *AlHadeesClient) Language() hadith.Language { return hadith.Urdu }

func (c *AlHadeesClient) Fetch(ctx context.Context, collection string, number int) Result {
	start := time.Now()
	url := fmt.Sprintf("%s/%s/%d", c.baseURL, collection, number)

	body, err := c.fetcher.get(ctx, url)
	if err != nil {
		c.fetcher.logger.Warn("al-hadees.com fetch failed", zap.Int("number", number), zap.Error(err))
		return newResult(c.Origin(), start, nil, err)
	}

	frag, err := parseAlHadees(body)
	if err != nil {
		c.fetcher.logger.Warn("al-hadees.com parse failed", zap.Int("number", number), zap.Error(err))
		return newResult(c.Origin(), start, nil, err)
	}
	frag.Number = number
	frag.URL = url

	c.fetcher.logger.Info("fetched hadith from al-hadees.com",
		zap.Int("number", number),
		zap.String("grade", frag.Grade),
		zap.String("graded_by", frag.GradedBy))

	return newResult(c.Origin(), start, frag, nil)
}

func parseAlHadees(body []byte) (*Fragment, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	frag := &Fragment{
		Language:     hadith.Urdu,
		OriginalText: firstText(doc, alhadeesArabicSel),
		Translation:  firstText(doc, alhadeesUrduSel),
	}

	if frag.OriginalText == "" {
		if frag.Translation == "" {
			return nil, fmt.Errorf("%w: page has no hadith body", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: could not extract Arabic text", ErrMalformed)
	}

	frag.Grade = alhadeesGrade(doc)
	frag.GradedBy = alhadeesGradedBy(doc, frag.Grade)
	return frag, nil
}

func isStatusHeader(text string) bool {
	return strings.Contains(text, "Status") || strings.Contains(text, "حکمِ حدیث")
}

func isReferenceHeader(text string) bool {
	return strings.Contains(text, "Status Reference") || strings.Contains(text, "حوالہ حکم")
}

// alhadeesGrade finds the row headed "Status" and reads the Arabic grade from
// its right-hand column.
func alhadeesGrade(doc *html.Node) string {
	for _, row := range alhadeesRowSel.MatchAll(doc) {
		headed := false
		for _, h := range alhadeesH5Sel.MatchAll(row) {
			text := textOf(h)
			if isStatusHeader(text) && !isReferenceHeader(text) {
				headed = true
				break
			}
		}
		if !headed {
			continue
		}
		if grade := firstText(row, alhadeesGradeSel); grade != "" {
			return grade
		}
	}
	return ""
}

// alhadeesGradedBy reads the grading reference such as "(متفق علیہ)" from the
// second row of the "Status Reference" block.
func alhadeesGradedBy(doc *html.Node, grade string) string {
	for _, h := range alhadeesH5Sel.MatchAll(doc) {
		if !isReferenceHeader(textOf(h)) {
			continue
		}
		block := closest(h, "div", "mb-5")
		if block == nil {
			continue
		}
		rows := alhadeesRowSel.MatchAll(block)
		if len(rows) < 2 {
			continue
		}
		ref := firstText(rows[1], alhadeesRefSel)
		if ref == "" || ref == grade {
			continue
		}
		if !strings.Contains(ref, "ترقیم") {
			return ref
		}
		if m := parenRe.FindString(ref); m != "" {
			return m
		}
	}
	return ""
}
