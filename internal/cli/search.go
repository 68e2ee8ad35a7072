package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find records by semantic similarity",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("k", "k", 10, "Max results")
	cmd.Flags().Float64("threshold", -1, "Similarity threshold (default from config)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("k")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	query := strings.Join(args, " ")

	e, cfg, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	if threshold < 0 {
		threshold = cfg.ANN.Threshold
	}

	hits, err := s.SearchSimilar(cmd.Context(), query, k, threshold, cfg.ANN.ThresholdFallback)
	if err != nil {
		exitErr("search", err)
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := s.GetMany(cmd.Context(), ids)
	if err != nil {
		exitErr("load results", err)
	}

	scores := map[string]float64{}
	for _, h := range hits {
		scores[h.ID] = h.Score
	}
	type result struct {
		ID      string  `json:"id"`
		Score   float64 `json:"score"`
		Content string  `json:"content"`
		Weight  float64 `json:"weight"`
	}
	out := make([]result, 0, len(records))
	for _, r := range records {
		out = append(out, result{ID: r.ID, Score: scores[r.ID], Content: r.Content, Weight: r.Weight})
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
