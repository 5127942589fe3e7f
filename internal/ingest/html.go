package ingest

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHTML pulls the readable text out of an HTML document, skipping
// script, style and other non-content elements
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, head").Remove()

	var parts []string
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		parts = append(parts, sel.Text())
	})
	if len(parts) == 0 {
		// Fragment without a body tag
		parts = append(parts, doc.Text())
	}

	return normalizeWhitespace(strings.Join(parts, "\n")), nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
