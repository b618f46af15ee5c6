package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/config"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/store"
	"github.com/rcliao/memeboard/internal/sweep"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete image assets no meme references",
		Long:  "Compare the asset backend's listing with every meme's image URL and delete the unreferenced assets. Run it while uploads are quiet.",
		Run:   runSweep,
	}

	cmd.Flags().String("prefix", "", "Provider id prefix (default: the assets folder)")
	cmd.Flags().Bool("dry-run", false, "Report orphans without deleting")
	cmd.Flags().Bool("allow-ephemeral", false, "Allow deleting against the in-memory record store")
	cmd.Flags().Bool("allow-empty", false, "Allow deleting when the record store holds no memes")

	RootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	prefix, _ := cmd.Flags().GetString("prefix")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	allowEphemeral, _ := cmd.Flags().GetBool("allow-ephemeral")
	allowEmpty, _ := cmd.Flags().GetBool("allow-empty")

	cfg := loadConfig()
	if err := checkSweepStorage(cfg, dryRun, allowEphemeral); err != nil {
		exitErr("sweep", err)
	}
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	assets, lister, err := openAssets(cfg, prometheus.NewRegistry())
	if err != nil {
		exitErr("open assets", err)
	}
	if lister == nil {
		exitErr("sweep", errors.New("asset backend cannot list assets"))
	}
	// Local files sit flat under the upload directory.
	if prefix == "" && cfg.Assets.Folder != "" && cfg.AssetDriver() != config.AssetsLocal {
		prefix = cfg.Assets.Folder + "/"
	}

	sw := &sweep.Sweeper{
		Records: s,
		Lister:  lister,
		Deleter: asset.NewRetryingStore(assets, nil),
		Logger:  logging.NewComponentLogger("sweep"),
	}
	report, err := sw.Run(cmd.Context(), sweep.Options{Prefix: prefix, DryRun: dryRun, AllowEmpty: allowEmpty})
	if err != nil {
		exitErr("sweep", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}

// checkSweepStorage refuses a deleting sweep against the in-memory record
// store, which is always empty in a fresh process.
func checkSweepStorage(cfg *config.Config, dryRun, allowEphemeral bool) error {
	if dryRun || allowEphemeral {
		return nil
	}
	if cfg.StoreConfig().ResolveDriver() == store.DriverMemory {
		return errors.New("record storage is in-memory, so every asset would look orphaned; configure storage.driver or pass --dry-run")
	}
	return nil
}
