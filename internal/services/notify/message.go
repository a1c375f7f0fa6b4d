package notify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/pricewatch/internal/models"
)

// Alert is the payload delivered to every channel
type Alert struct {
	Item  *models.TrackedItem
	Price float64
	Stat  *models.ComparisonStat
}

// Subject returns the alert headline shared by all channels
func (a Alert) Subject() string {
	switch {
	case a.Stat.IsLowestEver:
		return "LOWEST EVER: " + a.Item.Name
	case a.Stat.ChangePercent < 0:
		return "Price Drop: " + a.Item.Name
	default:
		return "Price Alert: " + a.Item.Name
	}
}

func (a Alert) money(value float64) string {
	return fmt.Sprintf("%s%.2f", a.Item.Currency, value)
}

// CurrentPrice formats the observed price
func (a Alert) CurrentPrice() string {
	return a.money(a.Price)
}

// TargetPrice formats the item's target
func (a Alert) TargetPrice() string {
	return a.money(a.Item.TargetPrice)
}

// PreviousPrice formats the previous observation, or N/A for the first one
func (a Alert) PreviousPrice() string {
	if !a.Stat.HasPrevious() {
		return "N/A"
	}
	return a.money(a.Stat.Previous.Price)
}

// LowestPrice formats the all-time low
func (a Alert) LowestPrice() string {
	return a.money(a.Stat.Lowest.Price)
}

// Change formats the percent change from the previous observation
func (a Alert) Change() string {
	return fmt.Sprintf("%.2f%%", a.Stat.ChangePercent)
}

// Status is the one-line verdict shown at the end of a message
func (a Alert) Status() string {
	if a.Stat.IsLowestEver {
		return "LOWEST EVER!"
	}
	if a.Price < a.Item.TargetPrice {
		return "Below target!"
	}
	return "Price changed"
}

// Markdown renders the alert body as markdown
func (a Alert) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", a.Subject())
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| **Product** | %s |\n", a.Item.Name)
	fmt.Fprintf(&b, "| **Current Price** | %s |\n", a.CurrentPrice())
	fmt.Fprintf(&b, "| **Target Price** | %s |\n", a.TargetPrice())
	fmt.Fprintf(&b, "| **Previous Price** | %s |\n", a.PreviousPrice())
	fmt.Fprintf(&b, "| **Change** | %s |\n", a.Change())
	fmt.Fprintf(&b, "| **Lowest Ever** | %s |\n", a.LowestPrice())
	fmt.Fprintf(&b, "| **Status** | %s |\n\n", a.Status())
	fmt.Fprintf(&b, "[View Product](%s)\n", a.Item.URL)
	return b.String()
}

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

// HTML renders the markdown body to HTML
func (a Alert) HTML() (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(a.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("failed to render alert HTML: %w", err)
	}
	return buf.String(), nil
}
