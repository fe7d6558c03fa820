package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

var (
	searchLimit     int
	searchThreshold float64
	searchKinds     []string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored content",
	Long: `Embeds the query and ranks stored chunks by cosine similarity.
Only chunks at or above the similarity threshold are returned.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", -1, "minimum similarity (default from settings)")
	searchCmd.Flags().StringSliceVarP(&searchKinds, "kind", "k", nil, "restrict to kinds (file, text, document)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

// searchResultJSON is the JSON form of a search hit.
type searchResultJSON struct {
	Ref        string  `json:"ref"`
	Name       string  `json:"name"`
	ChunkID    int64   `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"chunk_text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{Limit: searchLimit}
	if searchThreshold >= 0 {
		opts.Threshold = domain.Threshold(searchThreshold)
	} else if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			opts.Threshold = domain.Threshold(s.Search.Threshold)
		}
	}
	for _, k := range searchKinds {
		kind, err := domain.ParseContentKind(k)
		if err != nil {
			return err
		}
		opts.Kinds = append(opts.Kinds, kind)
	}

	results, err := searchService.Search(commandContext(cmd), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			Ref:        r.Content.String(),
			Name:       r.DisplayName,
			ChunkID:    r.ChunkID,
			ChunkIndex: r.ChunkIndex,
			Similarity: r.Similarity,
			Text:       r.ChunkText,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] Name #chunk (similarity)
		name := results[i].DisplayName
		if name == "" {
			name = results[i].Content.String()
		}

		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, name, results[i].ChunkIndex, results[i].Similarity)
		cmd.Printf("      %s\n", results[i].Content)
		if snippet := snippet(results[i].ChunkText, 160); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}

	return nil
}

// snippet flattens text to one line of at most n runes.
func snippet(text string, n int) string {
	s := strings.Join(strings.Fields(text), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
