package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/eventsync/internal/events/resolve"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Load and summarize the identifier link table",
	Long:  "Loads the entity to CUSIP and CUSIP to GVKEY/ticker reference tables from the warehouse and reports the joined link table size.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("links"); err != nil {
			return err
		}

		pool, err := warehousePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		linker := resolve.NewLinker(pool, cfg.Warehouse.EntityLinkTable, cfg.Warehouse.CompanyLinkTable)
		table, err := linker.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "links")
		}

		formatLinkStats(os.Stdout, cfg.Warehouse.EntityLinkTable, cfg.Warehouse.CompanyLinkTable, table)

		entities, _ := cmd.Flags().GetStringArray("entity")
		if len(entities) > 0 {
			_, _ = fmt.Fprintln(os.Stdout)
			formatEntityLinks(os.Stdout, table, entities)
		}
		return nil
	},
}

func init() {
	linksCmd.Flags().StringArray("entity", nil, "RavenPack entity id to look up; may be repeated")
	rootCmd.AddCommand(linksCmd)
}

// formatLinkStats writes the link table summary to out.
func formatLinkStats(out io.Writer, entityTable, companyTable string, table *resolve.LinkTable) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "entity table\t%s\n", entityTable)
	_, _ = fmt.Fprintf(w, "company table\t%s\n", companyTable)
	_, _ = fmt.Fprintf(w, "linked entities\t%d\n", table.Entities())
	_, _ = fmt.Fprintf(w, "links\t%d\n", table.Len())
	_ = w.Flush()
}

// formatEntityLinks writes the links of each entity to out.
func formatEntityLinks(out io.Writer, table *resolve.LinkTable, entities []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENTITY\tCUSIP\tGVKEY\tTICKER")
	_, _ = fmt.Fprintln(w, "------\t-----\t-----\t------")
	for _, id := range entities {
		links := table.Lookup(id)
		if len(links) == 0 {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\n", id)
			continue
		}
		for _, l := range links {
			tic := "-"
			if l.Ticker != nil {
				tic = *l.Ticker
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, l.CUSIP, l.GVKEY, tic)
		}
	}
	_ = w.Flush()
}
