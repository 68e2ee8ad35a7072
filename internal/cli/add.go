package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/model"
	"github.com/engramdev/engram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory record",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAdd,
	}

	cmd.Flags().StringP("role", "r", "user", "Speaker role: user, assistant or system")
	cmd.Flags().StringP("type", "t", "", "Record type tag (default derived from role)")
	cmd.Flags().StringP("session", "s", "", "Session id (default: current open session)")
	cmd.Flags().StringP("group", "g", "", "Topic group id")
	cmd.Flags().Float64P("weight", "w", 0, "Initial weight (default 5.0, clamped to [0.1, 10.0])")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	role, _ := cmd.Flags().GetString("role")
	typ, _ := cmd.Flags().GetString("type")
	session, _ := cmd.Flags().GetString("session")
	group, _ := cmd.Flags().GetString("group")
	weight, _ := cmd.Flags().GetFloat64("weight")
	content := strings.Join(args, " ")

	e, cfg, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	s := e.Store()
	defer s.Close()

	if session == "" {
		session, err = s.EnsureSession(cmd.Context(), time.Duration(cfg.SessionTimeout))
		if err != nil {
			exitErr("session", err)
		}
	}

	id, err := s.Add(cmd.Context(), store.AddParams{
		Content:   content,
		Role:      model.Role(role),
		Type:      typ,
		SessionID: session,
		GroupID:   group,
		Weight:    weight,
	})
	if err != nil {
		exitErr("add", err)
	}

	fmt.Println(id)
}
