package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

// idOutput is the shared output flag of the commands that list app IDs.
type idOutput struct {
	json bool
}

func (o *idOutput) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.json, "json", false, "print the IDs as a JSON array")
}

// write prints ids one per line, or as a JSON array.
func (o *idOutput) write(w io.Writer, ids []int64) error {
	if o.json {
		return json.NewEncoder(w).Encode(ids)
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var (
		opts itunes.SearchOptions
		outp idOutput
	)

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the App Store and print the matching app IDs",
		Example: `  itunes-scraper search chess
  itunes-scraper search "fitness tracker" --country us --lang en-us --count 25 --page 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := c.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			prog := newProgress(c.Logger)
			ids, err := client.SearchAppIDs(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			prog.done("Found %d apps for %q", len(ids), args[0])
			return outp.write(cmd.OutOrStdout(), ids)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", itunes.DefaultCount, "results per page")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "number of pages")
	cmd.Flags().StringVar(&opts.Country, "country", "", "two-letter storefront code")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "Accept-Language for the request")
	outp.register(cmd)

	return cmd
}

// collectionCommand creates the collection command.
func (c *CLI) collectionCommand() *cobra.Command {
	var (
		collection, category string
		opts                 itunes.CollectionOptions
		outp                 idOutput
	)

	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Print the app IDs of a chart such as the top free iOS apps",
		Example: `  itunes-scraper collection --collection TOP_PAID_IOS --category GAMES --count 100
  itunes-scraper collection --collection topfreeapplications --country gb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.Collection, err = market.ResolveCollection(collection); err != nil {
				return err
			}
			if opts.Category, err = market.ResolveCategory(category); err != nil {
				return err
			}

			client, done, err := c.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			prog := newProgress(c.Logger)
			ids, err := client.CollectionAppIDs(cmd.Context(), opts)
			if err != nil {
				return err
			}
			prog.done("Found %d apps in %s", len(ids), opts.Collection)
			return outp.write(cmd.OutOrStdout(), ids)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "collection name or identifier (default TOP_FREE_IOS)")
	cmd.Flags().StringVar(&category, "category", "", "category name or genre ID (default all)")
	cmd.Flags().IntVar(&opts.Count, "count", itunes.DefaultCount, "number of apps")
	cmd.Flags().StringVar(&opts.Country, "country", "", "two-letter storefront code")
	outp.register(cmd)

	_ = cmd.RegisterFlagCompletionFunc("collection", staticCompletion(market.CollectionNames))
	_ = cmd.RegisterFlagCompletionFunc("category", staticCompletion(market.CategoryNames))

	return cmd
}

// developerCommand creates the developer command.
func (c *CLI) developerCommand() *cobra.Command {
	var (
		opts    itunes.DeveloperOptions
		idsOnly bool
		outp    idOutput
	)

	cmd := &cobra.Command{
		Use:     "developer <developer-id>",
		Short:   "List the apps published by a developer",
		Example: `  itunes-scraper developer 284882218 --ids-only`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			devID, err := parseID(args[0])
			if err != nil {
				return err
			}

			client, done, err := c.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			prog := newProgress(c.Logger)
			apps, err := client.DeveloperApps(cmd.Context(), devID, opts)
			if err != nil {
				return err
			}
			prog.done("Found %d apps by developer %d", len(apps), devID)

			if idsOnly || outp.json {
				return outp.write(cmd.OutOrStdout(), lo.Map(apps, func(a itunes.AppRecord, _ int) int64 {
					return a.TrackID()
				}))
			}
			if len(apps) == 0 {
				printInfo("Developer %d has no apps in this storefront", devID)
				return nil
			}
			printTable([]string{"ID", "Name", "Version", "Price"}, lo.Map(apps, func(a itunes.AppRecord, _ int) []string {
				return []string{
					strconv.FormatInt(a.TrackID(), 10),
					field(a, "trackName"),
					field(a, "version"),
					field(a, "formattedPrice"),
				}
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Country, "country", "", "two-letter storefront code")
	cmd.Flags().BoolVar(&idsOnly, "ids-only", false, "print only the app IDs")
	outp.register(cmd)

	return cmd
}

// similarCommand creates the similar command.
func (c *CLI) similarCommand() *cobra.Command {
	var (
		opts itunes.SimilarOptions
		outp idOutput
	)

	cmd := &cobra.Command{
		Use:     "similar <app-id>",
		Short:   `Print the "customers also bought" app IDs of an app`,
		Example: `  itunes-scraper similar 284882215 --country us`,
		Args:    cobra.ExactArgs(1),
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

			prog := newProgress(c.Logger)
			ids, err := client.SimilarAppIDs(cmd.Context(), appID, opts)
			if err != nil {
				return err
			}
			prog.done("Found %d similar apps", len(ids))
			return outp.write(cmd.OutOrStdout(), ids)
		},
	}

	cmd.Flags().StringVar(&opts.Country, "country", "", "two-letter storefront code")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "Accept-Language for the request")
	outp.register(cmd)

	return cmd
}

// parseID parses a positive numeric ID argument.
func parseID(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid ID %q: must be a positive number", s)
	}
	return n, nil
}

// field renders a record value for a table cell.
func field(rec itunes.AppRecord, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}

// staticCompletion completes a flag from a fixed list of names.
func staticCompletion(names func() []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return names(), cobra.ShellCompDirectiveNoFileComp
	}
}
