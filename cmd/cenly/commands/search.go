// ABOUTME: CLI command to show the passages retrieved for a query
// ABOUTME: Runs retrieval only, with per-call overrides for k, fetch_k, lambda and search type
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/config"
)

var (
	searchK      int
	searchFetchK int
	searchLambda float64
	searchType   string
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the document passages retrieved for a query",
		Long: `Retrieve the passages that would be given to the model as context,
without generating an answer.

Examples:
  cenly search "sales trend"
  cenly search --k 5 --type similarity "warehouse inventory"
  cenly search --lambda 0.5 --fetch-k 20 "expenses"
  cenly search --format json "Q3 revenue"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchK, "k", 0, "Number of passages (default: retriever.k)")
	cmd.Flags().IntVar(&searchFetchK, "fetch-k", 0, "Candidates considered by MMR (default: retriever.fetch_k)")
	cmd.Flags().Float64Var(&searchLambda, "lambda", 1.0, "MMR relevance/diversity balance, 0 to 1")
	cmd.Flags().StringVar(&searchType, "type", "", "mmr, similarity or hybrid (default: retriever.search_type)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	flags := cmd.Flags()
	if flags.Changed("k") {
		if err := validatePositiveInt(searchK, "k"); err != nil {
			return err
		}
	}
	if flags.Changed("fetch-k") {
		if err := validatePositiveInt(searchFetchK, "fetch-k"); err != nil {
			return err
		}
	}
	if searchLambda < 0 || searchLambda > 1 {
		return fmt.Errorf("lambda must be between 0 and 1, got %g", searchLambda)
	}
	switch searchType {
	case "", config.SearchMMR, config.SearchSimilarity, config.SearchHybrid:
	default:
		return fmt.Errorf("unknown search type %q (want mmr, similarity or hybrid)", searchType)
	}

	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.Retriever.Defaults()
	if flags.Changed("k") {
		opts.K = searchK
	}
	if flags.Changed("fetch-k") {
		opts.FetchK = searchFetchK
	}
	if flags.Changed("lambda") {
		opts.LambdaMult = searchLambda
	}
	if searchType != "" {
		opts.SearchType = searchType
	}

	results, err := a.Retriever.RetrieveWith(cmd.Context(), query, opts)
	if err != nil {
		return err
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), results)
	}

	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No passages found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tSCORE\tSOURCE\tPREVIEW\n")
	fmt.Fprintf(w, "----\t-----\t------\t-------\n")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%.3f\t%s\t%s\n",
			r.Rank,
			r.Score,
			truncate(r.Chunk.Label(), 30),
			truncate(oneLine(r.Chunk.Text), 60))
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d passage(s) using %s\n", len(results), opts.SearchType)
	}
	return nil
}
