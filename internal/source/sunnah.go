package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/quality"
)

const DefaultSunnahURL = "https://sunnah.com"

var (
	sunnahEnglishSel = cascadia.MustCompile("div.english_hadith_full div.text_details")
	sunnahArabicSel  = cascadia.MustCompile("span.arabic_text_details")
	sunnahGradeSel   = cascadia.MustCompile("table.gradetable td.arabic_grade")
	sunnahEnGradeSel = cascadia.MustCompile("table.gradetable td.english_grade")
)

// SunnahClient scrapes sunnah.com for the Arabic text, the English
// translation and the grade.
type SunnahClient struct {
	baseURL string
	fetcher *fetcher
}

func NewSunnahClient(opts Options) *SunnahClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultSunnahURL
	}
	return &SunnahClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher(opts, map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Pragma":                    "no-cache",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "same-origin",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
			"User-Agent":                userAgent,
		}),
	}
}

func (c *SunnahClient) Origin() hadith.Origin { return hadith.OriginSunnah }

func (c *SunnahClient) Language() hadith.Language { return hadith.English }

func (c *SunnahClient) Fetch(ctx context.Context, collection string, number int) Result {
	start := time.Now()
	url := fmt.Sprintf("%s/%s:%d", c.baseURL, collection, number)

	body, err := c.fetcher.get(ctx, url)
	if err != nil {
		c.fetcher.logger.Warn("sunnah.com fetch failed", zap.Int("number", number), zap.Error(err))
		return newResult(c.Origin(), start, nil, err)
	}

	frag, err := parseSunnah(body)
	if err != nil {
		c.fetcher.logger.Warn("sunnah.com parse failed", zap.Int("number", number), zap.Error(err))
		return newResult(c.Origin(), start, nil, err)
	}
	frag.Number = number
	frag.URL = url

	if frag.Translation == "" {
		c.fetcher.logger.Warn("no English translation on page", zap.Int("number", number))
	}
	c.fetcher.logger.Info("fetched hadith from sunnah.com",
		zap.Int("number", number),
		zap.String("grade", frag.Grade),
		zap.String("graded_by", frag.GradedBy))

	return newResult(c.Origin(), start, frag, nil)
}

func parseSunnah(body []byte) (*Fragment, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	frag := &Fragment{
		Language:     hadith.English,
		Translation:  firstText(doc, sunnahEnglishSel),
		OriginalText: firstText(doc, sunnahArabicSel),
	}
	frag.Grade, frag.GradedBy = sunnahGrade(doc)

	if frag.OriginalText == "" {
		// An unknown index renders the page chrome without any hadith body.
		if frag.Translation == "" {
			return nil, fmt.Errorf("%w: page has no hadith body", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: could not extract Arabic text", ErrMalformed)
	}

	return frag, nil
}

// sunnahGrade reads the Arabic grade cell, skipping the "حكم :" label cell.
// The English grade cell is used when no Arabic grade is present.
func sunnahGrade(doc *html.Node) (grade, gradedBy string) {
	for _, cell := range sunnahGradeSel.MatchAll(doc) {
		text := textOf(cell)
		label := strings.NewReplacer("حكم", "", ":", "").Replace(text)
		if strings.TrimSpace(label) == "" {
			continue
		}
		return quality.SplitGrade(text)
	}

	for _, cell := range sunnahEnGradeSel.MatchAll(doc) {
		text := strings.TrimSpace(strings.TrimPrefix(textOf(cell), "Grade"))
		text = strings.TrimSpace(strings.TrimPrefix(text, ":"))
		if text == "" {
			continue
		}
		return quality.SplitGrade(text)
	}
	return "", ""
}
