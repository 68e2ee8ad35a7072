package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show a memory record",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	RootCmd.AddCommand(get)

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory record",
		Long:  "Soft-deletes by default; --purge removes the row, vector and index entry together.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	rm.Flags().Bool("purge", false, "Hard-delete instead of soft-delete")
	RootCmd.AddCommand(rm)

	weight := &cobra.Command{
		Use:   "weight [id] [value]",
		Short: "Set a record's weight",
		Args:  cobra.ExactArgs(2),
		Run:   runWeight,
	}
	RootCmd.AddCommand(weight)
}

func runGet(cmd *cobra.Command, args []string) {
	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	rec, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
}

func runRm(cmd *cobra.Command, args []string) {
	purge, _ := cmd.Flags().GetBool("purge")

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	if purge {
		err = s.Purge(cmd.Context(), args[0])
	} else {
		err = s.Delete(cmd.Context(), args[0])
	}
	if err != nil {
		exitErr("rm", err)
	}
}

func runWeight(cmd *cobra.Command, args []string) {
	var w float64
	if _, err := fmt.Sscanf(args[1], "%f", &w); err != nil {
		exitErr("parse weight", err)
	}

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	if err := s.UpdateWeight(cmd.Context(), args[0], w); err != nil {
		exitErr("weight", err)
	}
}
