// Package cli implements the memeboard CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/config"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/store"
)

var configFile string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memeboard",
	Short: "Community meme board server and admin tools",
	Long:  "Serve the meme board API, or inspect and maintain its records and assets from the command line.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./memeboard.yaml or ~/.memeboard/memeboard.yaml)")
}

// loadConfig reads configuration and applies the logging section.
func loadConfig() *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitErr("load config", err)
	}
	if err := logging.Configure(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		exitErr("configure logging", err)
	}
	return cfg
}

func openStore(ctx context.Context, cfg *config.Config) store.Store {
	if cfg.StoreConfig().ResolveDriver() == store.DriverMemory {
		logging.NewComponentLogger("cli").Warn("using in-memory storage; records are lost on exit (set storage.driver)")
	}
	s, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

// openAssets builds the configured asset backend wrapped with metrics.
// The returned Lister is nil when the backend cannot enumerate assets.
func openAssets(cfg *config.Config, reg prometheus.Registerer) (asset.Store, asset.Lister, error) {
	var base asset.Store
	switch cfg.AssetDriver() {
	case config.AssetsCloudinary:
		cld, err := asset.NewCloudinaryStore(cfg.Assets.CloudinaryURL, cfg.Assets.Folder)
		if err != nil {
			return nil, nil, err
		}
		base = cld
	case config.AssetsLocal:
		local, err := asset.NewLocalStore(cfg.Assets.LocalDir, cfg.Assets.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		base = local
	case config.AssetsMemory:
		base = asset.NewMemoryStore("memory", cfg.Assets.Folder)
	default:
		return nil, nil, fmt.Errorf("unknown assets driver %q", cfg.AssetDriver())
	}

	observer, err := asset.NewPrometheusObserver("memeboard", reg)
	if err != nil {
		return nil, nil, err
	}
	observed := asset.Observe(base, observer)
	var lister asset.Lister
	if _, ok := base.(asset.Lister); ok {
		lister = observed
	}
	return observed, lister, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
