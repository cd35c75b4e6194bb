package itunes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/normalize"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/observability"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/sink"
)

const (
	// DefaultSearchURL is the storefront search endpoint.
	DefaultSearchURL = "https://search.itunes.apple.com/WebObjects/MZStore.woa/wa/search"
	// DefaultStoreURL hosts the lookup, RSS, app page and review endpoints.
	DefaultStoreURL = "https://itunes.apple.com"

	DefaultCountry = "nl"
	DefaultLang    = "nl"
	DefaultCount   = 50

	// DefaultRetryDelay is the pause before the single retry of a detail
	// or rating request.
	DefaultRetryDelay = 2 * time.Second
	// DefaultBatchDelay is slept before every member of a batch.
	DefaultBatchDelay = time.Second
	// DefaultRatingsDelay is slept before every country of a rating lookup.
	DefaultRatingsDelay = time.Second
)

// Operation names reported to [observability.OperationHooks].
const (
	OpSearch     = "search"
	OpCollection = "collection"
	OpDeveloper  = "developer"
	OpSimilar    = "similar"
	OpDetails    = "details"
	OpRatings    = "ratings"
)

// Client provides access to the App Store search, lookup and store page
// endpoints.
//
// A Client is immutable after construction and safe for concurrent use.
// Every operation is sequential and blocks until its requests finish.
type Client struct {
	*integrations.Client
	searchURL string
	storeURL  string

	country      string
	lang         string
	retryDelay   time.Duration
	batchDelay   time.Duration
	ratingsDelay time.Duration
	timeout      time.Duration

	logger    *log.Logger
	sink      sink.Sink
	extractor normalize.ArrayExtractor

	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSink sets where batch failures are recorded. The default is [sink.Null].
func WithSink(s sink.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the search and store base URLs. Empty values keep
// the defaults.
func WithEndpoints(searchURL, storeURL string) Option {
	return func(c *Client) {
		if searchURL != "" {
			c.searchURL = searchURL
		}
		if storeURL != "" {
			c.storeURL = strings.TrimSuffix(storeURL, "/")
		}
	}
}

// WithCountry sets the country used when an operation does not name one.
func WithCountry(cc string) Option {
	return func(c *Client) {
		if cc != "" {
			c.country = normalizeChannel(cc)
		}
	}
}

// WithLang sets the Accept-Language used when an operation does not name one.
func WithLang(lang string) Option {
	return func(c *Client) {
		if lang != "" {
			c.lang = lang
		}
	}
}

// WithRetryDelay sets the pause before the retry of a detail or rating request.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithBatchDelay sets the default pause before each batch member.
func WithBatchDelay(d time.Duration) Option {
	return func(c *Client) { c.batchDelay = d }
}

// WithRatingsDelay sets the default pause before each country of a rating lookup.
func WithRatingsDelay(d time.Duration) Option {
	return func(c *Client) { c.ratingsDelay = d }
}

// WithTimeout sets the per-request timeout used when an operation does not
// set one. Zero keeps [integrations.DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithExtractor replaces how the similar-apps array is found in a store page.
func WithExtractor(e normalize.ArrayExtractor) Option {
	return func(c *Client) {
		if e != nil {
			c.extractor = e
		}
	}
}

// NewClient creates an App Store client.
//
// It fails with an INVALID_INPUT error if an endpoint is not an http(s) URL,
// and with INVALID_COUNTRY if the default country is not a known storefront.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		searchURL:    DefaultSearchURL,
		storeURL:     DefaultStoreURL,
		country:      DefaultCountry,
		lang:         DefaultLang,
		retryDelay:   DefaultRetryDelay,
		batchDelay:   DefaultBatchDelay,
		ratingsDelay: DefaultRatingsDelay,
		logger:       log.New(io.Discard),
		sink:         sink.Null,
		extractor:    normalize.AlsoBoughtExtractor,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, u := range []string{c.searchURL, c.storeURL} {
		if err := apperrors.ValidateURL(u); err != nil {
			return nil, err
		}
	}
	if _, err := market.StorefrontForCountry(c.country); err != nil {
		return nil, err
	}

	c.Client = integrations.NewClient(c.httpClient, nil)
	return c, nil
}

// Country returns the default country.
func (c *Client) Country() string { return c.country }

// resolveCountry applies the client default and returns the lowercase code
// together with its storefront.
func (c *Client) resolveCountry(cc string) (string, market.StorefrontID, error) {
	if strings.TrimSpace(cc) == "" {
		cc = c.country
	}
	sf, err := market.StorefrontForCountry(cc)
	if err != nil {
		return "", 0, err
	}
	return normalizeChannel(cc), sf, nil
}

// normalizeChannel lowercases a country code for URLs and sink channels.
func normalizeChannel(cc string) string {
	return strings.ToLower(strings.TrimSpace(cc))
}

func (c *Client) langOr(lang string) string {
	if lang == "" {
		return c.lang
	}
	return lang
}

// withTimeout bounds one request by d, or by the client timeout when d is
// not positive.
func (c *Client) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = c.timeout
	}
	return integrations.WithTimeout(ctx, d)
}

func (c *Client) observe(ctx context.Context, op string, start time.Time, err error) {
	observability.Operation().OnOperationComplete(ctx, op, time.Since(start), err)
}

// delayOr returns d when set, def when d is zero and no delay when d is negative.
func delayOr(d, def time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return def
	default:
		return d
	}
}

// storeError converts a transport failure into a coded error.
func storeError(err error) error {
	switch {
	case errors.Is(err, integrations.ErrDecode):
		return apperrors.Wrap(apperrors.ErrCodeParse, err, "could not parse app store response")
	case errors.Is(err, integrations.ErrNotFound):
		return apperrors.Wrap(apperrors.ErrCodeNotFound, err, "app store resource not found")
	default:
		return apperrors.Wrap(apperrors.ErrCodeNetwork, err, "cannot connect to store")
	}
}

func storefrontHeaders(sf market.StorefrontID, suffix, lang string) map[string]string {
	h := map[string]string{"X-Apple-Store-Front": fmt.Sprintf("%d,%s", sf, suffix)}
	if lang != "" {
		h["Accept-Language"] = lang
	}
	return h
}
