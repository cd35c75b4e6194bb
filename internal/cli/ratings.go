package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/normalize"
)

// ratingsCommand creates the ratings command.
func (c *CLI) ratingsCommand() *cobra.Command {
	var (
		countries string
		delay     time.Duration
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ratings <app-id>",
		Short: "Sum an app's star ratings over storefronts",
		Long: `Sum an app's star ratings over storefronts.

Without --countries every known storefront is visited, one request per
country, which takes a few minutes with the default delay.`,
		Example: `  itunes-scraper ratings 284882215 --countries nl,be,de
  itunes-scraper ratings 284882215 --delay 0s --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := parseID(args[0])
			if err != nil {
				return err
			}

			client, done, err := c.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			opts := itunes.RatingsOptions{Delay: delay}
			if countries != "" {
				opts.Countries = lo.Compact(lo.Map(strings.Split(countries, ","), func(s string, _ int) string {
					return strings.TrimSpace(s)
				}))
			}

			n := len(opts.Countries)
			if n == 0 {
				n = len(market.DefaultRatingCountries())
			}
			sp := newSpinner(cmd.Context(), c.progressOut, fmt.Sprintf("Collecting ratings across %d storefronts", n))
			sp.Start()

			prog := newProgress(c.Logger)
			hist, err := client.Ratings(cmd.Context(), itunes.TrackID(appID), opts)
			sp.Stop()
			if err != nil {
				return err
			}
			prog.done("Collected %d ratings", hist.Total())

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(hist)
			}
			printHistogram(hist)
			return nil
		},
	}

	cmd.Flags().StringVar(&countries, "countries", "", "comma-separated storefront codes (default all)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause before each country (default from config, negative for none)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the histogram as JSON")

	return cmd
}

// printHistogram prints five bars, five stars first.
func printHistogram(h itunes.Histogram) {
	peak := lo.Max(lo.Values(h))
	for stars := normalize.StarCount; stars >= 1; stars-- {
		printStars(stars, h[stars], peak, 30)
	}
	printDetail("%d ratings in total", h.Total())
}
