package normalize

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StarCount is the number of buckets on a customer reviews page.
const StarCount = 5

// RatingTotals reads the <span class="total"> elements of a customer
// reviews page in document order. ok is true only when exactly five
// numeric totals were found; they are returned for five stars down to one.
// Thousand separators are ignored.
func RatingTotals(html string) (totals []int, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}

	doc.Find("span.total").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, err := parseTotal(s.Text())
		if err != nil {
			totals = nil
			return false
		}
		totals = append(totals, n)
		return true
	})
	if len(totals) != StarCount {
		return nil, false
	}
	return totals, true
}

func parseTotal(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(s)
	return strconv.Atoi(s)
}
