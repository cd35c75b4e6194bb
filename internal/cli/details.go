package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/export"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
)

// Output formats of the details command besides the export formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// summaryFields are shown, in order, when a single record is printed as a table.
var summaryFields = []string{
	"trackId", "trackName", "bundleId", "artistName", "primaryGenreName",
	"version", "formattedPrice", "averageUserRating", "userRatingCount",
	"releaseDate", "currentVersionReleaseDate", "trackViewUrl", itunes.RatingsField,
}

// detailsOptions holds flags for the details command.
type detailsOptions struct {
	country   string
	lang      string
	ratings   bool
	force     bool
	noFlatten bool
	delay     time.Duration
	format    string
	output    string
	mongo     bool
}

// detailsCommand creates the details command.
func (c *CLI) detailsCommand() *cobra.Command {
	opts := detailsOptions{format: formatTable}

	cmd := &cobra.Command{
		Use:   "details <app-id>...",
		Short: "Fetch full app records by track or bundle ID",
		Long: `Fetch full app records by track or bundle ID.

With one ID a failed lookup is an error. With several, failed lookups are
logged, recorded in the error sink and left out, and the remaining records
are written in input order. Pass "-" to read whitespace-separated IDs from
stdin.`,
		Example: `  itunes-scraper details 284882215 --ratings
  itunes-scraper details com.facebook.Facebook --country us --format json
  itunes-scraper search chess | itunes-scraper details - --format csv --output chess.csv
  itunes-scraper collection --count 200 | itunes-scraper details - --mongo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readIDs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ids := make([]itunes.AppID, 0, len(raw))
			for _, s := range raw {
				id, err := itunes.ParseAppID(s)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				return errors.New("no app IDs were given")
			}
			return c.runDetails(cmd, ids, opts)
		},
	}

	cmd.Flags().StringVar(&opts.country, "country", "", "two-letter storefront code")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Accept-Language for the request")
	cmd.Flags().BoolVar(&opts.ratings, "ratings", false, "attach the storefront's star histogram")
	cmd.Flags().BoolVar(&opts.force, "force", false, "bypass cached storefront responses")
	cmd.Flags().BoolVar(&opts.noFlatten, "no-flatten", false, "keep list and map fields structured")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "pause before each lookup of a batch (default from config, negative for none)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table, json, "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.mongo, "mongo", false, "also upsert the records into the configured MongoDB collection")

	_ = cmd.RegisterFlagCompletionFunc("format", staticCompletion(func() []string {
		return append([]string{formatTable, formatJSON}, export.Formats()...)
	}))

	return cmd
}

func (c *CLI) runDetails(cmd *cobra.Command, ids []itunes.AppID, opts detailsOptions) error {
	ctx := cmd.Context()
	format := strings.ToLower(opts.format)
	if format == formatTable && opts.output != "" {
		return errors.New("--output needs --format json, csv or jsonl")
	}

	client, done, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	defer done()

	w, closeOut, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	defer closeOut()

	var writers []export.Writer
	if format != formatTable && format != formatJSON {
		fw, err := export.NewFileWriter(format, w)
		if err != nil {
			return err
		}
		writers = append(writers, fw)
	}
	if opts.mongo {
		if c.cfg.Mongo.URI == "" {
			return errors.New("--mongo needs mongo.uri in the config")
		}
		mw, err := export.DialMongo(ctx, c.cfg.Mongo.URI, c.cfg.Mongo.Database, c.cfg.Mongo.Collection)
		if err != nil {
			return err
		}
		writers = append(writers, mw)
	}

	prog := newProgress(c.Logger)
	records, err := c.collectDetails(ctx, client, ids, opts, writers)
	for _, ew := range writers {
		if cerr := ew.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	prog.done("Fetched %d of %d apps", len(records), len(ids))

	switch format {
	case formatTable:
		printRecords(records)
	case formatJSON:
		var v any = records
		if len(ids) == 1 && len(records) == 1 {
			v = records[0]
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return err
		}
	}

	if opts.output != "" {
		printSuccess("Wrote %d records", len(records))
		printFile(opts.output)
	}
	if skipped := len(ids) - len(records); skipped > 0 {
		printWarning("%d apps could not be fetched; see the error log", skipped)
	}
	return nil
}

// collectDetails fetches the records and streams each one to writers.
func (c *CLI) collectDetails(ctx context.Context, client *itunes.Client, ids []itunes.AppID, opts detailsOptions, writers []export.Writer) ([]itunes.AppRecord, error) {
	flatten := !opts.noFlatten

	if len(ids) == 1 {
		rec, err := client.AppDetails(ctx, ids[0], itunes.DetailsOptions{
			Country: opts.country,
			Lang:    opts.lang,
			Flatten: &flatten,
			Ratings: opts.ratings,
			Force:   opts.force,
		})
		if err != nil {
			return nil, err
		}
		for _, w := range writers {
			if err := w.Write(ctx, rec); err != nil {
				return nil, err
			}
		}
		return []itunes.AppRecord{rec}, nil
	}

	sp := newSpinner(ctx, c.progressOut, fmt.Sprintf("Fetching %d apps", len(ids)))
	sp.Start()
	defer sp.Stop()

	var records []itunes.AppRecord
	for rec := range client.BatchDetails(ctx, ids, itunes.BatchOptions{
		Country: opts.country,
		Lang:    opts.lang,
		Ratings: opts.ratings,
		Delay:   opts.delay,
		Force:   opts.force,
		Flatten: &flatten,
	}) {
		for _, w := range writers {
			if err := w.Write(ctx, rec); err != nil {
				return records, err
			}
		}
		records = append(records, rec)
		sp.SetMessage("Fetched %d of %d apps", len(records), len(ids))
		c.Logger.Debug("fetched", "id", rec.TrackID(), "name", rec["trackName"])
	}
	return records, ctx.Err()
}

// printRecords prints one record as key-value lines, or many as a table.
func printRecords(records []itunes.AppRecord) {
	switch len(records) {
	case 0:
		printInfo("No apps found")
	case 1:
		rec := records[0]
		printNewline()
		fmt.Fprintln(out, StyleTitle.Render(field(rec, "trackName")))
		for _, key := range summaryFields {
			if v := field(rec, key); v != "" {
				printKeyValue(key, v)
			}
		}
		printDetail("%d fields; use --format json for all of them", len(rec))
	default:
		printTable([]string{"ID", "Name", "Developer", "Version", "Rating"}, lo.Map(records, func(r itunes.AppRecord, _ int) []string {
			return []string{
				strconv.FormatInt(r.TrackID(), 10),
				field(r, "trackName"),
				field(r, "artistName"),
				field(r, "version"),
				field(r, "averageUserRating"),
			}
		}))
	}
}
