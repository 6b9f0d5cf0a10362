package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
)

// Extracted page text is capped so one long page cannot dominate the
// research evaluation prompt.
const maxExtractChars = 4000

var whitespaceRe = regexp.MustCompile(`\s+`)

var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscribe to.*newsletter`),
	regexp.MustCompile(`(?i)advertisement`),
	regexp.MustCompile(`(?i)share this article`),
	regexp.MustCompile(`(?i)follow us on`),
}

// ContentExtractor fetches a search-result URL and pulls its readable
// article text, so the research evaluation sees substance rather than a
// two-line snippet. Failures are soft; the caller falls back to the snippet.
type ContentExtractor struct {
	collector  *colly.Collector
	logger     *logger.Logger
	mu         sync.Mutex
	userAgents []string
	uaIndex    int
}

func NewContentExtractor(timeout time.Duration, log *logger.Logger) *ContentExtractor {
	collector := colly.NewCollector(colly.MaxDepth(1))
	collector.SetRequestTimeout(timeout)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       500 * time.Millisecond,
	})

	return &ContentExtractor{
		collector: collector,
		logger:    log,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/120.0",
		},
	}
}

func (e *ContentExtractor) Extract(ctx context.Context, targetURL string) (string, error) {
	startTime := time.Now()

	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", targetURL)
	}

	c := e.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		e.mu.Lock()
		r.Headers.Set("User-Agent", e.userAgents[e.uaIndex])
		e.uaIndex = (e.uaIndex + 1) % len(e.userAgents)
		e.mu.Unlock()
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		content  string
		visitErr error
	)
	c.OnHTML("html", func(el *colly.HTMLElement) {
		content = extractReadableText(el.DOM)
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(targetURL); err != nil && visitErr == nil {
			visitErr = err
		}
		c.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return "", models.NewTimeoutError("EXTRACT_TIMEOUT", "page extraction timed out").WithCause(ctx.Err())
	}

	if visitErr != nil && content == "" {
		return "", fmt.Errorf("extract %s: %w", targetURL, visitErr)
	}

	e.logger.Debug("page content extracted",
		"url", targetURL,
		"chars", len(content),
		"duration", time.Since(startTime).String())
	return content, nil
}

// extractReadableText prefers article paragraphs and falls back to the whole
// body minus chrome elements.
func extractReadableText(doc *goquery.Selection) string {
	var paragraphs []string
	doc.Find("article p, main p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); len(text) > 30 {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) < 3 {
		doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); len(text) > 30 {
				paragraphs = append(paragraphs, text)
			}
		})
	}
	return cleanExtractedText(strings.Join(paragraphs, "\n\n"))
}

func cleanExtractedText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	for _, re := range boilerplateRes {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars] + "..."
	}
	return text
}
