package tracker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseablePrice is returned when extracted text holds no number
var ErrUnparseablePrice = errors.New("unparseable price")

// ParsePrice strips everything except digits and decimal points, then parses
// the leading decimal number. "$1,299.00" parses as 1299 and "Rp 1.250.000"
// stops at the second point.
func ParsePrice(text string) (float64, error) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if first := strings.IndexByte(cleaned, '.'); first >= 0 {
		if second := strings.IndexByte(cleaned[first+1:], '.'); second >= 0 {
			cleaned = cleaned[:first+1+second]
		}
	}
	cleaned = strings.TrimSuffix(cleaned, ".")
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}

	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparseablePrice, text)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseablePrice, text)
	}

	return value.InexactFloat64(), nil
}
