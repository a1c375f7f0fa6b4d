package fetcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseDocument parses raw HTML into a goquery document
func ParseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// SelectText returns the trimmed text of the first element matching selector
func SelectText(html, selector string) (string, bool) {
	doc, err := ParseDocument(html)
	if err != nil {
		return "", false
	}
	selection := doc.Find(selector).First()
	if selection.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(selection.Text())
	return text, text != ""
}
