package itunes

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/httputil"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/observability"
)

// DetailsOptions tunes [Client.AppDetails].
type DetailsOptions struct {
	Country string
	Lang    string // accepted for symmetry with the other operations; unused

	// Flatten collapses list and map fields to strings. nil means true.
	Flatten *bool
	// Ratings attaches the rating histogram for Country under "user_ratings".
	Ratings bool
	// Delay is slept before the request.
	Delay time.Duration
	// Force appends a random token to the URL to bypass cached responses.
	Force bool

	Timeout time.Duration
}

func (o DetailsOptions) flatten() bool { return o.Flatten == nil || *o.Flatten }

// AppDetails looks up one app by track ID or bundle identifier.
//
// A failed request is retried once after the client's retry delay. The
// errors name the app ID:
//   - NOT_FOUND when the lookup returns no result
//   - NETWORK_ERROR or PARSE_ERROR when both attempts failed
//
// A failed rating lookup does not fail the call: the record gets
// [RatingsUnavailable] instead and the incident goes to the log sink.
func (c *Client) AppDetails(ctx context.Context, id AppID, opts DetailsOptions) (app AppRecord, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpDetails, start, err) }()

	if id.IsZero() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "app ID cannot be empty")
	}
	cc, _, err := c.resolveCountry(opts.Country)
	if err != nil {
		return nil, err
	}

	if err := httputil.Sleep(ctx, opts.Delay); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lookup?%s&country=%s&entity=software", c.storeURL, id.query(), cc)
	if opts.Force {
		url += "&_=" + uuid.NewString()
	}

	var resp lookupResponse
	err = c.retry("app lookup", id).Do(ctx, func() error {
		rctx, cancel := c.withTimeout(ctx, opts.Timeout)
		defer cancel()
		resp = lookupResponse{}
		return c.Get(rctx, url, &resp)
	})
	if err != nil {
		return nil, lookupError(ctx, err, id)
	}
	if len(resp.Results) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "no app found with ID %s", id)
	}
	app = resp.Results[0]

	if opts.Ratings {
		c.attachRatings(ctx, app, id, cc, opts.Timeout)
	}
	if opts.flatten() {
		app = app.Flatten()
	}
	return app, nil
}

func (c *Client) attachRatings(ctx context.Context, app AppRecord, id AppID, cc string, timeout time.Duration) {
	ratingsID := id
	if !id.IsNumeric() {
		ratingsID = TrackID(app.TrackID())
	}

	hist, err := c.Ratings(ctx, ratingsID, RatingsOptions{Countries: []string{cc}, Timeout: timeout})
	if err != nil {
		app[RatingsField] = RatingsUnavailable
		c.logger.Warn("ratings unavailable", "id", id, "country", cc, "err", err)
		if serr := c.sink.Append(ctx, cc, fmt.Sprintf("ratings for ID %s: %v", id, err)); serr != nil {
			c.logger.Error("could not write to error log", "country", cc, "err", serr)
		}
		return
	}
	app[RatingsField] = hist
}

// retry is the single fixed-delay retry shared by detail and rating requests.
func (c *Client) retry(what string, id AppID) httputil.Policy {
	return httputil.Policy{
		Attempts: 2,
		Delay:    c.retryDelay,
		OnRetry: func(attempt int, err error) {
			c.logger.Debug("retrying "+what, "id", id, "attempt", attempt, "err", err)
		},
	}
}

// lookupError turns an exhausted retry into an error naming the app.
func lookupError(ctx context.Context, err error, id AppID) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		return apperrors.Wrap(apperrors.ErrCodeNotFound, err, "no app found with ID %s", id)
	case errors.Is(err, integrations.ErrDecode):
		return apperrors.Wrap(apperrors.ErrCodeParse, err, "could not parse app store response for ID %s", id)
	default:
		return apperrors.Wrap(apperrors.ErrCodeNetwork, err, "could not reach app store for ID %s", id)
	}
}

// BatchOptions tunes [Client.BatchDetails].
type BatchOptions struct {
	Country string
	Lang    string
	Ratings bool
	// Delay is slept before every member. Zero uses the client's batch
	// delay, negative disables it.
	Delay   time.Duration
	Force   bool
	Flatten *bool
	Timeout time.Duration
}

// BatchDetails looks up each ID in order and yields the records that were
// found.
//
// A member that fails is written to the log sink under the lowercase country
// code and skipped; the batch itself never fails. Cancelling ctx ends the
// sequence. The sequence can be ranged over once; later ranges yield nothing.
func (c *Client) BatchDetails(ctx context.Context, ids []AppID, opts BatchOptions) iter.Seq[AppRecord] {
	delay := delayOr(opts.Delay, c.batchDelay)
	cc := opts.Country
	if cc == "" {
		cc = c.country
	}
	channel := normalizeChannel(cc)
	var used atomic.Bool

	return func(yield func(AppRecord) bool) {
		if used.Swap(true) {
			return
		}
		for _, id := range ids {
			app, err := c.AppDetails(ctx, id, DetailsOptions{
				Country: opts.Country,
				Lang:    opts.Lang,
				Flatten: opts.Flatten,
				Ratings: opts.Ratings,
				Delay:   delay,
				Force:   opts.Force,
				Timeout: opts.Timeout,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.skip(ctx, channel, id, err)
				continue
			}
			if !yield(app) {
				return
			}
		}
	}
}

// BatchDetailsSlice collects [Client.BatchDetails] into a slice.
func (c *Client) BatchDetailsSlice(ctx context.Context, ids []AppID, opts BatchOptions) []AppRecord {
	apps := make([]AppRecord, 0, len(ids))
	for app := range c.BatchDetails(ctx, ids, opts) {
		apps = append(apps, app)
	}
	return apps
}

func (c *Client) skip(ctx context.Context, channel string, id AppID, err error) {
	c.logger.Warn("skipping app", "id", id, "country", channel, "err", err)
	observability.Operation().OnBatchItemSkipped(ctx, channel, err)
	if serr := c.sink.Append(ctx, channel, err.Error()); serr != nil {
		c.logger.Error("could not write to error log", "country", channel, "err", serr)
	}
}
