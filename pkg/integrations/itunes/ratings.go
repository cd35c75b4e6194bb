package itunes

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/httputil"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/normalize"
)

// RatingsOptions tunes [Client.Ratings].
type RatingsOptions struct {
	// Countries to sum over, in order. Empty means every known storefront.
	Countries []string
	// Delay is slept before every country. Zero uses the client's ratings
	// delay, negative disables it.
	Delay   time.Duration
	Timeout time.Duration
}

// Ratings sums the star histogram of an app over the given storefronts.
//
// A country whose review page does not show exactly five totals adds
// nothing. An unknown country anywhere in the list is INVALID_COUNTRY
// before any page is fetched. A request is retried once;
// when both attempts fail the error names the app ID.
func (c *Client) Ratings(ctx context.Context, id AppID, opts RatingsOptions) (hist Histogram, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpRatings, start, err) }()

	if !id.IsNumeric() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "ratings need a numeric app ID, got %q", id.String())
	}
	countries := opts.Countries
	if len(countries) == 0 {
		countries = market.DefaultRatingCountries()
	}
	delay := delayOr(opts.Delay, c.ratingsDelay)

	type storefront struct {
		cc string
		sf market.StorefrontID
	}
	fronts := make([]storefront, 0, len(countries))
	for _, country := range countries {
		sf, err := market.StorefrontForCountry(country)
		if err != nil {
			return nil, err
		}
		fronts = append(fronts, storefront{cc: normalizeChannel(country), sf: sf})
	}

	hist = NewHistogram()
	for _, front := range fronts {
		cc, sf := front.cc, front.sf
		if err := httputil.Sleep(ctx, delay); err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/%s/customer-reviews/id%d?displayable-kind=11", c.storeURL, cc, id.Track())
		var page string
		err = c.retry("ratings", id).Do(ctx, func() error {
			rctx, cancel := c.withTimeout(ctx, opts.Timeout)
			defer cancel()
			var gerr error
			page, gerr = c.GetText(rctx, url, storefrontHeaders(sf, "12", ""))
			return gerr
		})
		if err != nil {
			return nil, lookupError(ctx, err, id)
		}

		totals, ok := normalize.RatingTotals(page)
		if !ok {
			c.logger.Debug("no rating totals on review page", "id", id, "country", cc)
			continue
		}
		hist.AddTotals(totals)
	}
	return hist, nil
}
