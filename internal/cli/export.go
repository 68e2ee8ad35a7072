package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/model"
)

func init() {
	export := &cobra.Command{
		Use:   "export",
		Short: "Dump all records as JSON to stdout",
		Run:   runExport,
	}
	RootCmd.AddCommand(export)

	imp := &cobra.Command{
		Use:   "import [file]",
		Short: "Import records from a JSON export, re-embedding content",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}
	RootCmd.AddCommand(imp)
}

func runExport(cmd *cobra.Command, _ []string) {
	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	records, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(out))
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitErr("read import file", err)
	}
	var records []model.MemoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		exitErr("parse import file", err)
	}

	e, _, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	n, err := s.Import(cmd.Context(), records)
	if err != nil {
		exitErr(fmt.Sprintf("import (after %d records)", n), err)
	}
	fmt.Printf("imported %d records\n", n)
}
