package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
)

var (
	queryTopK     int
	queryMinScore float64
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve context passages for a question",
	Long: `Embeds the question, finds the most similar chunks and prints them ranked
by cosine similarity. Overlapping chunks of the same document are merged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of passages (0 = configured default)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "drop passages scoring below this similarity")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output passages as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryTopK < 0 {
		return fmt.Errorf("--top-k must not be negative: %w", domain.ErrInvalidInput)
	}

	ctx := cmd.Context()
	release, err := connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	if queryService == nil {
		return errUnconfigured("query")
	}

	opts := domain.QueryOptions{TopK: queryTopK}
	if cmd.Flags().Changed("min-score") {
		opts.MinScore = domain.Float64(queryMinScore)
	}

	bundle, err := queryService.AnswerContext(ctx, strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, bundle)
	}
	renderBundle(cmd.OutOrStdout(), bundle)
	return nil
}

type passageJSON struct {
	Rank       int     `json:"rank"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type bundleJSON struct {
	Question  string        `json:"question"`
	Passages  []passageJSON `json:"passages"`
	Truncated bool          `json:"truncated"`
}

func outputQueryJSON(cmd *cobra.Command, b *domain.ContextBundle) error {
	out := bundleJSON{Question: b.Question, Passages: make([]passageJSON, len(b.Hits)), Truncated: b.Truncated}
	for i, h := range b.Hits {
		out.Passages[i] = passageJSON{
			Rank:       h.Rank,
			DocumentID: h.Record.DocumentID,
			ChunkIndex: h.Record.ChunkIndex,
			Start:      h.Record.Start,
			End:        h.Record.End,
			Score:      h.Score,
			Text:       h.Record.Text,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal passages: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
