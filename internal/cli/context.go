package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	ctx := &cobra.Command{
		Use:   "context [user input]",
		Short: "Assemble prompt context for a user turn",
		Long:  "Runs the full retrieval pipeline and prints the budgeted, sectioned context string.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}
	ctx.Flags().StringP("personality", "p", "", "Personality/role text for the role section")
	RootCmd.AddCommand(ctx)

	record := &cobra.Command{
		Use:   "record [user input] [assistant response]",
		Short: "Store one user/assistant exchange",
		Args:  cobra.ExactArgs(2),
		Run:   runRecord,
	}
	RootCmd.AddCommand(record)
}

func runContext(cmd *cobra.Command, args []string) {
	personality, _ := cmd.Flags().GetString("personality")
	input := strings.Join(args, " ")

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Store().Close()

	out, _ := e.RetrieveContext(cmd.Context(), input, personality)
	fmt.Println(out)
}

func runRecord(cmd *cobra.Command, args []string) {
	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Store().Close()

	// The memories that would have shaped this response tag the turn
	// for evaluation.
	_, memories := e.RetrieveContext(cmd.Context(), args[0], "")

	userID, aiID, err := e.RecordTurn(cmd.Context(), args[0], args[1], memories)
	if err != nil {
		exitErr("record", err)
	}
	fmt.Println(userID)
	fmt.Println(aiID)
}
