package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one meme with its edit history",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	m, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	b, _ := json.MarshalIndent(m, "", "  ")
	fmt.Println(string(b))
}
