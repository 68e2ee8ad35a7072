package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link [source-id] [target-id]",
		Short: "Associate two records",
		Args:  cobra.ExactArgs(2),
		Run:   runLink,
	}
	cmd.Flags().StringP("type", "t", "related", "Association type")
	cmd.Flags().Float64P("strength", "s", 0.5, "Association strength [0, 1]")
	RootCmd.AddCommand(cmd)

	links := &cobra.Command{
		Use:   "links [id]",
		Short: "Show a record's associations",
		Args:  cobra.ExactArgs(1),
		Run:   runLinks,
	}
	RootCmd.AddCommand(links)

	expand := &cobra.Command{
		Use:   "expand [id...]",
		Short: "Walk associations from seed records",
		Args:  cobra.MinimumNArgs(1),
		Run:   runExpand,
	}
	expand.Flags().Int("depth", 2, "Max hops")
	expand.Flags().Float64("min-strength", 0.3, "Prune edges below this strength")
	RootCmd.AddCommand(expand)
}

func runLink(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	strength, _ := cmd.Flags().GetFloat64("strength")

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	if err := s.Relate(cmd.Context(), args[0], args[1], typ, strength); err != nil {
		exitErr("link", err)
	}
}

func runLinks(cmd *cobra.Command, args []string) {
	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	assocs, err := s.Associations(cmd.Context(), args[0])
	if err != nil {
		exitErr("links", err)
	}
	out, _ := json.MarshalIndent(assocs, "", "  ")
	fmt.Println(string(out))
}

func runExpand(cmd *cobra.Command, args []string) {
	depth, _ := cmd.Flags().GetInt("depth")
	minStrength, _ := cmd.Flags().GetFloat64("min-strength")

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	ids := s.Expand(cmd.Context(), args, depth, minStrength)
	fmt.Println(strings.Join(ids, "\n"))
}
