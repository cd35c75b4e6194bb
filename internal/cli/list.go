package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var asJSON bool

	kinds := []string{string(market.KindCountries), string(market.KindCollections), string(market.KindCategories)}

	cmd := &cobra.Command{
		Use:       "list <countries|collections|categories>",
		Short:     "Print the names accepted by --country, --collection and --category",
		ValidArgs: kinds,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := market.Kind(args[0])
			if asJSON {
				entries, err := market.Entries(kind)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), entries)
				return err
			}

			names, err := market.Names(kind)
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, `print {"names": [...]}`)

	return cmd
}
