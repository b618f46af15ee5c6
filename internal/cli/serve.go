package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/config"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/media"
	"github.com/rcliao/memeboard/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := logging.NewComponentLogger("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := openStore(ctx, cfg)
	defer s.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	assets, _, err := openAssets(cfg, reg)
	if err != nil {
		exitErr("open assets", err)
	}
	coord, err := media.NewCoordinator(s, assets, logging.NewComponentLogger("media"), reg)
	if err != nil {
		exitErr("media", err)
	}

	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl)
	if err != nil {
		exitErr("auth (set auth.jwt_secret or MEMEBOARD_AUTH_JWT_SECRET)", err)
	}

	authSvc := auth.NewService(s, tokens)
	if err := bootstrapAdmin(ctx, authSvc, cfg, logger); err != nil {
		exitErr("bootstrap admin", err)
	}

	opts := server.Options{
		Media:             coord,
		Auth:              authSvc,
		Logger:            logger,
		Registerer:        reg,
		Gatherer:          reg,
		CORSOrigins:       cfg.Server.CORSOrigins,
		EditRatePerMinute: cfg.Server.EditRatePerMinute,
		Debug:             strings.EqualFold(cfg.Log.Level, "debug"),
	}
	if cfg.AssetDriver() == config.AssetsLocal {
		opts.LocalAssetDir = cfg.Assets.LocalDir
	}
	router, err := server.NewRouter(opts)
	if err != nil {
		exitErr("router", err)
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	logger.Info("storage=%s assets=%s", cfg.StoreConfig().ResolveDriver(), cfg.AssetDriver())
	if err := server.New(addr, router, logger).Run(ctx); err != nil {
		exitErr("serve", err)
	}
}

// bootstrapAdmin seeds the configured admin account so a fresh store, the
// in-memory one included, is reachable through the admin routes.
func bootstrapAdmin(ctx context.Context, svc *auth.Service, cfg *config.Config, logger logging.Logger) error {
	if cfg.Auth.BootstrapUsername == "" {
		return nil
	}
	created, err := svc.EnsureAdmin(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info("created bootstrap admin %q", cfg.Auth.BootstrapUsername)
	}
	return nil
}
