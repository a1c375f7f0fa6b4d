package marketplace

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/pricewatch/internal/models"
)

// maxTitleLength discards navigation blocks and descriptions picked up by loose selectors
const maxTitleLength = 100

// Source is one marketplace: how to build its search URL and how to pull
// listings out of its result page. Extract must not depend on other sources.
type Source interface {
	Name() string
	SearchURL(query string) string
	Extract(doc *goquery.Document) []models.Listing
}

// selectorSource extracts listings from candidate nodes using attribute-substring selectors
type selectorSource struct {
	name          string
	searchURL     string // query is appended escaped
	itemSelector  string
	titleSelector string
	priceSelector string
	linkPrefix    string
}

func (s *selectorSource) Name() string {
	return s.name
}

func (s *selectorSource) SearchURL(query string) string {
	return s.searchURL + url.QueryEscape(query)
}

func (s *selectorSource) Extract(doc *goquery.Document) []models.Listing {
	var listings []models.Listing

	doc.Find(s.itemSelector).Each(func(_ int, node *goquery.Selection) {
		title := strings.TrimSpace(node.Find(s.titleSelector).First().Text())
		price := parseDigits(node.Find(s.priceSelector).First().Text())
		if title == "" || price <= 0 || utf8.RuneCountInString(title) >= maxTitleLength {
			return
		}

		image, _ := node.Find("img").First().Attr("src")
		link, _ := node.Find("a").First().Attr("href")
		if link != "" && s.linkPrefix != "" && strings.HasPrefix(link, "/") {
			link = s.linkPrefix + link
		}

		listings = append(listings, models.Listing{
			Source: s.name,
			Title:  title,
			Price:  price,
			Image:  image,
			Link:   link,
		})
	})

	return listings
}

// parseDigits keeps only digits and parses them as an integer; 0 when none
func parseDigits(text string) int64 {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	value, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// Tokopedia search results
func Tokopedia() Source {
	return &selectorSource{
		name:          "Tokopedia",
		searchURL:     "https://www.tokopedia.com/search?q=",
		itemSelector:  "[data-testid]",
		titleSelector: `[class*="title"]`,
		priceSelector: `[class*="price"]`,
	}
}

// Shopee search results; links are site-relative
func Shopee() Source {
	return &selectorSource{
		name:          "Shopee",
		searchURL:     "https://shopee.co.id/search?keyword=",
		itemSelector:  `[data-testid], [class*="item"]`,
		titleSelector: `[class*="title"]`,
		priceSelector: `[class*="price"]`,
		linkPrefix:    "https://shopee.co.id",
	}
}

// Bukalapak search results
func Bukalapak() Source {
	return &selectorSource{
		name:          "Bukalapak",
		searchURL:     "https://www.bukalapak.com/products?search%5Bkeywords%5D=",
		itemSelector:  `[class*="product"], [class*="card"]`,
		titleSelector: `[class*="title"]`,
		priceSelector: `[class*="price"]`,
	}
}

// Lazada search results
func Lazada() Source {
	return &selectorSource{
		name:          "Lazada",
		searchURL:     "https://www.lazada.co.id/catalog/?q=",
		itemSelector:  `[data-testid="product-card"], [class*="product"]`,
		titleSelector: `[class*="title"]`,
		priceSelector: `[class*="price"]`,
	}
}

// DefaultSources returns every built-in source in search order
func DefaultSources() []Source {
	return []Source{Tokopedia(), Shopee(), Bukalapak(), Lazada()}
}

// SourcesByName selects built-in sources case-insensitively; no names selects all
func SourcesByName(names []string) ([]Source, error) {
	all := DefaultSources()
	if len(names) == 0 {
		return all, nil
	}

	var selected []Source
	for _, name := range names {
		found := false
		for _, source := range all {
			if strings.EqualFold(source.Name(), strings.TrimSpace(name)) {
				selected = append(selected, source)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown marketplace source: %s", name)
		}
	}
	return selected, nil
}
