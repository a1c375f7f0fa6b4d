package marketplace

import (
	"math"

	"github.com/ternarybob/pricewatch/internal/models"
)

// Summary holds the ranking statistics of a sorted listing set
type Summary struct {
	Cheapest     *models.Listing
	TypicalPrice int64
	AveragePrice int64
}

// Summarize computes cheapest, typical and average price over listings sorted
// ascending by price. The typical price is the upper edge of the most populated
// bucketWidth-wide bucket; ties go to the bucket seen first.
func Summarize(sorted []models.Listing, bucketWidth int64) Summary {
	var summary Summary
	if len(sorted) == 0 {
		return summary
	}
	if bucketWidth <= 0 {
		bucketWidth = 50000
	}

	cheapest := sorted[0]
	summary.Cheapest = &cheapest

	counts := make(map[int64]int)
	var order []int64
	var total float64
	for _, listing := range sorted {
		bucket := (listing.Price / bucketWidth) * bucketWidth
		if _, seen := counts[bucket]; !seen {
			order = append(order, bucket)
		}
		counts[bucket]++
		total += float64(listing.Price)
	}

	winner := order[0]
	for _, bucket := range order[1:] {
		if counts[bucket] > counts[winner] {
			winner = bucket
		}
	}

	summary.TypicalPrice = winner + bucketWidth
	summary.AveragePrice = int64(math.Round(total / float64(len(sorted))))
	return summary
}
