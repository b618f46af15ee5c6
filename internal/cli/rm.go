package cli

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/media"
	"github.com/rcliao/memeboard/internal/model"
)

// cliPrincipal acts for the operator running local admin commands.
var cliPrincipal = model.Principal{UserID: "cli", Role: model.RoleAdmin}

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a meme and its image asset",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	reg := prometheus.NewRegistry()
	assets, _, err := openAssets(cfg, reg)
	if err != nil {
		exitErr("open assets", err)
	}
	coord, err := media.NewCoordinator(s, assets, logging.NewComponentLogger("media"), reg)
	if err != nil {
		exitErr("rm", err)
	}

	res, err := coord.Delete(cmd.Context(), cliPrincipal, args[0])
	if err != nil {
		exitErr("rm", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
