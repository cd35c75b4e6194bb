package itunes

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

// SearchOptions tunes [Client.SearchAppIDs]. Zero values select defaults.
type SearchOptions struct {
	Count   int    // results per page, default 50
	Page    int    // number of pages, default 1
	Country string // two-letter code, default the client's country
	Lang    string // Accept-Language, default the client's language
	Timeout time.Duration
}

// SearchAppIDs returns the IDs of apps matching term, in the order the
// storefront ranks them, at most Count*Page of them.
//
// Errors:
//   - INVALID_INPUT for an empty term and INVALID_COUNTRY for an unknown
//     country; no request is made in either case
//   - NETWORK_ERROR when the store cannot be reached
//   - PARSE_ERROR when the body is not JSON
//   - NO_RESULTS when the response carries no result list
//
// Search requests are not retried.
func (c *Client) SearchAppIDs(ctx context.Context, term string, opts SearchOptions) (ids []int64, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpSearch, start, err) }()

	if err := apperrors.ValidateSearchTerm(term); err != nil {
		return nil, err
	}
	cc, sf, err := c.resolveCountry(opts.Country)
	if err != nil {
		return nil, err
	}
	lang := c.langOr(opts.Lang)

	count, page := opts.Count, opts.Page
	if count <= 0 {
		count = DefaultCount
	}
	if page <= 0 {
		page = 1
	}

	url := c.searchURL + "?clientApplication=Software&media=software&term=" + integrations.URLEncode(term)

	rctx, cancel := c.withTimeout(ctx, opts.Timeout)
	defer cancel()
	body, err := c.GetBytes(rctx, url, storefrontHeaders(sf, "24 t:native", lang))
	if err != nil {
		return nil, storeError(err)
	}
	if !gjson.ValidBytes(body) {
		return nil, apperrors.New(apperrors.ErrCodeParse, "could not parse app store response")
	}

	results := gjson.GetBytes(body, "bubbles.0.results")
	if !results.IsArray() {
		return nil, apperrors.New(apperrors.ErrCodeNoResults,
			"no results for term %q (country %s, language %s)", term, cc, lang)
	}

	limit := count * page
	if count > math.MaxInt/page {
		limit = math.MaxInt
	}
	list := results.Array()
	ids = make([]int64, 0, len(list))
	for _, r := range list {
		if len(ids) == limit {
			break
		}
		id, ok := resultID(r.Get("id"))
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeParse, "unexpected app ID %s in search results", r.Get("id").Raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CollectionOptions tunes [Client.CollectionAppIDs].
type CollectionOptions struct {
	Collection market.Collection // default market.DefaultCollection
	Category   market.Category   // market.NoCategory for all categories
	Count      int               // default 50
	Country    string
	Timeout    time.Duration
}

// CollectionAppIDs returns the app IDs listed in a storefront collection
// such as the top free iOS apps, optionally narrowed to one category.
//
// Whether the category makes sense for the collection is left to the
// storefront. A feed without entries yields an empty list. Collection
// requests are not retried.
func (c *Client) CollectionAppIDs(ctx context.Context, opts CollectionOptions) (ids []int64, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpCollection, start, err) }()

	collection := opts.Collection
	if collection == "" {
		collection = market.DefaultCollection
	}
	if !market.KnownCollection(collection) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidDescriptor, "unknown collection %q", collection)
	}
	if opts.Category != market.NoCategory && !market.KnownCategory(opts.Category) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidDescriptor, "unknown category %d", opts.Category)
	}
	cc, _, err := c.resolveCountry(opts.Country)
	if err != nil {
		return nil, err
	}
	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}

	url := fmt.Sprintf("%s/%s/rss/%s/limit=%d", c.storeURL, cc, collection, count)
	if opts.Category != market.NoCategory {
		url += fmt.Sprintf("/genre=%d", opts.Category)
	}
	url += "/json"

	rctx, cancel := c.withTimeout(ctx, opts.Timeout)
	defer cancel()
	body, err := c.GetBytes(rctx, url, nil)
	if err != nil {
		return nil, storeError(err)
	}
	if !gjson.ValidBytes(body) {
		return nil, apperrors.New(apperrors.ErrCodeParse, "could not parse app store response")
	}

	entries := gjson.GetBytes(body, "feed.entry")
	var list []gjson.Result
	switch {
	case entries.IsArray():
		list = entries.Array()
	case entries.IsObject():
		// a feed with a single entry is not wrapped in an array
		list = []gjson.Result{entries}
	}

	ids = make([]int64, 0, len(list))
	for _, e := range list {
		raw := e.Get("id.attributes").Map()["im:id"]
		id, ok := resultID(raw)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeParse, "unexpected app ID %q in collection feed", raw.Raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
