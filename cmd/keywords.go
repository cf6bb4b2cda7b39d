package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/eventsync/internal/events/keyword"
	"github.com/sells-group/eventsync/internal/events/transform"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show the compiled keyword taxonomy",
	Long:  "Loads the keyword file, prints every compiled term and optionally tests headlines against the combined pattern.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("keywords")
		if path == "" {
			path = cfg.Events.KeywordsPath
		}

		p, err := keyword.Load(path)
		if err != nil {
			return err
		}

		formatKeywordTerms(os.Stdout, p.Terms())

		headlines, _ := cmd.Flags().GetStringArray("match")
		if len(headlines) > 0 {
			_, _ = fmt.Fprintln(os.Stdout)
			formatKeywordMatches(os.Stdout, p, headlines)
		}
		return nil
	},
}

func init() {
	keywordsCmd.Flags().String("keywords", "", "keyword file (default events.keywords_path)")
	keywordsCmd.Flags().StringArray("match", nil, "headline to test; may be repeated")
	rootCmd.AddCommand(keywordsCmd)
}

// formatKeywordTerms writes a table of compiled terms to out.
func formatKeywordTerms(out io.Writer, terms []keyword.Term) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHRASE\tKIND\tPATTERN")
	_, _ = fmt.Fprintln(w, "------\t----\t-------")
	for _, t := range terms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.Phrase, t.Kind, truncate(t.Expr, 60))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d terms\n", len(terms))
}

// formatKeywordMatches normalizes each headline the way the pipeline does and
// reports whether the pattern matches it.
func formatKeywordMatches(out io.Writer, p *keyword.Pattern, headlines []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MATCH\tHEADLINE")
	_, _ = fmt.Fprintln(w, "-----\t--------")
	for _, h := range headlines {
		norm := transform.NormalizeHeadline(h)
		mark := "no"
		if p.Match(norm) {
			mark = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", mark, norm)
	}
	_ = w.Flush()
}
