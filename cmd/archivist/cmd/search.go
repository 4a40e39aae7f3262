package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/output"
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
)

type searchOptions struct {
	topK        int
	start       string
	end         string
	entity      string
	lexicalOnly bool
	context     bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid search over the archive",
		Long: `Run a hybrid BM25 and semantic query. Results from both sides are
fused with reciprocal rank fusion. Without an embeddings provider or a
vector graph the search is lexical-only.

Examples:
  archivist search "반도체 수출 규제"
  archivist search 금리 --start 2024-01-01 --end 2024-03-31
  archivist search 협상 --entity 삼성전자 -n 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Number of results (default from config)")
	cmd.Flags().StringVar(&opts.start, "start", "", "Start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.end, "end", "", "End date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.entity, "entity", "", "Keep documents mentioning this person, organization or concept")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Skip semantic search")
	cmd.Flags().BoolVar(&opts.context, "context", false, "Print results as a context block for a language model")

	return cmd
}

func runSearch(cmd *cobra.Command, g *globalOptions, query string, opts *searchOptions) error {
	out, err := g.writer(cmd)
	if err != nil {
		return err
	}
	if opts.topK < 0 {
		return aerrors.ValidationError("--top-k must be positive", nil)
	}
	dates, err := parseDates(opts.start, opts.end)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg, openOptions{requireIndex: true, lexicalOnly: opts.lexicalOnly})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.engine.Search(cmd.Context(), query, search.SearchOptions{
		TopK:        opts.topK,
		Dates:       dates,
		Entity:      opts.entity,
		LexicalOnly: opts.lexicalOnly,
	})
	if err != nil {
		return err
	}

	if opts.context {
		return out.Result(results, search.FormatContext(results))
	}
	return out.Result(results, formatResults(query, results))
}

func formatResults(query string, results []search.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q", query)
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [%s] %s  (%s, score %.4f%s)\n", i+1, r.Date, r.Title, r.DocID, r.Score, sources(r))
		if r.Content != "" {
			fmt.Fprintf(&sb, "   %s\n", output.Truncate(r.Content, 120))
		}
		if len(r.Persons)+len(r.Organizations) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(append(append([]string{}, r.Persons...), r.Organizations...), ", "))
		}
	}
	return sb.String()
}

func sources(r search.SearchResult) string {
	var parts []string
	if r.LexicalRank > 0 {
		parts = append(parts, fmt.Sprintf("bm25 #%d", r.LexicalRank))
	}
	if r.VectorRank > 0 {
		parts = append(parts, fmt.Sprintf("vector #%d", r.VectorRank))
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

// parseDates validates --start and --end.
func parseDates(start, end string) (store.DateRange, error) {
	dates, err := store.ParseDateRange(strings.TrimSpace(start), strings.TrimSpace(end))
	if err != nil {
		return store.DateRange{}, aerrors.New(aerrors.ErrCodeInvalidDate, err.Error(), nil)
	}
	return dates, nil
}
