package itunes

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

// DeveloperOptions tunes [Client.DeveloperApps].
type DeveloperOptions struct {
	Country string
	Timeout time.Duration
}

type lookupResponse struct {
	ResultCount int         `json:"resultCount"`
	Results     []AppRecord `json:"results"`
}

// DeveloperApps returns the software records published by a developer.
// The developer's own artist entry is left out. An unknown developer
// yields an empty list rather than an error.
func (c *Client) DeveloperApps(ctx context.Context, developerID int64, opts DeveloperOptions) (apps []AppRecord, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, OpDeveloper, start, err) }()

	if developerID <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid developer ID %d", developerID)
	}
	cc, _, err := c.resolveCountry(opts.Country)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lookup?id=%d&country=%s&entity=software", c.storeURL, developerID, cc)

	rctx, cancel := c.withTimeout(ctx, opts.Timeout)
	defer cancel()
	var resp lookupResponse
	if err := c.Get(rctx, url, &resp); err != nil {
		return nil, storeError(err)
	}

	apps = lo.Filter(resp.Results, func(r AppRecord, _ int) bool {
		return r["wrapperType"] == "software"
	})
	if apps == nil {
		apps = []AppRecord{}
	}
	return apps, nil
}

// DeveloperAppIDs is [Client.DeveloperApps] reduced to track IDs.
func (c *Client) DeveloperAppIDs(ctx context.Context, developerID int64, opts DeveloperOptions) ([]int64, error) {
	apps, err := c.DeveloperApps(ctx, developerID, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(apps, func(r AppRecord, _ int) int64 { return r.TrackID() }), nil
}
