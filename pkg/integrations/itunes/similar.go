package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

// SimilarOptions tunes [Client.SimilarAppIDs].
type SimilarOptions struct {
	Country string
	Lang    string
	Timeout time.Duration
}

// SimilarAppIDs returns the "customers also bought" app IDs shown on an
// app's store page.
//
// The list is embedded in the page's HTML, so a page without it, or with an
// array that does not decode, yields an empty list. Only transport failures
// are errors.
func (c *Client) SimilarAppIDs(ctx context.Context, appID int64, opts SimilarOptions) (ids []int64, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpSimilar, start, err) }()

	if appID <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid app ID %d", appID)
	}
	cc, sf, err := c.resolveCountry(opts.Country)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/app/app/id%d", c.storeURL, cc, appID)

	rctx, cancel := c.withTimeout(ctx, opts.Timeout)
	defer cancel()
	page, err := c.GetText(rctx, url, storefrontHeaders(sf, "32", c.langOr(opts.Lang)))
	if err != nil {
		return nil, storeError(err)
	}

	return c.parseSimilar(page), nil
}

func (c *Client) parseSimilar(page string) []int64 {
	array, ok := c.extractor.ExtractArray(page)
	if !ok {
		return []int64{}
	}

	var raw []any
	if err := json.Unmarshal([]byte(array), &raw); err != nil {
		c.logger.Debug("similar apps array did not decode", "err", err)
		return []int64{}
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, ok := toInt64(v)
		if !ok {
			return []int64{}
		}
		ids = append(ids, id)
	}
	return ids
}
