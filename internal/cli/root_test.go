package cli

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/config"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

func TestOpenAssetsLocal(t *testing.T) {
	cfg := &config.Config{Assets: config.AssetsConfig{
		Driver:        config.AssetsLocal,
		LocalDir:      t.TempDir(),
		PublicBaseURL: "http://localhost:8080",
	}}
	assets, lister, err := openAssets(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, lister)

	res, err := assets.Upload(context.Background(), asset.UploadRequest{Name: "a.png", Data: []byte("png")})
	require.NoError(t, err)
	listed, err := lister.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, res.ProviderID, listed[0].ProviderID)
}

func TestOpenAssetsMemory(t *testing.T) {
	cfg := &config.Config{Assets: config.AssetsConfig{Driver: config.AssetsMemory, Folder: "memes"}}
	_, lister, err := openAssets(cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, lister)
}

func TestOpenAssetsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Assets: config.AssetsConfig{Driver: "ftp"}}
	_, _, err := openAssets(cfg, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "list", "get", "rm", "stats", "export", "import", "admin", "sweep"}
	for _, name := range want {
		cmd, _, err := RootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestYAMLExportReadsBack(t *testing.T) {
	edited := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	memes := []model.Meme{{
		ID:            "01HX",
		Title:         "cat",
		Tags:          []string{"cats"},
		ImageURL:      "https://res.cloudinary.com/demo/image/upload/v1/memes/cat.png",
		CreatedAt:     edited.Add(-time.Hour),
		EditedByUsers: 1,
		LastEditedAt:  &edited,
		EditHistory:   []model.EditHistoryEntry{{PreviousName: "kat", PreviousTags: []string{}, EditedAt: edited}},
		IsLocked:      true,
	}}

	b, err := encodeMemes(memes, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(b), "imageUrl:")

	got, err := decodeMemes(b, "yaml")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cat", got[0].Title)
	assert.True(t, got[0].IsLocked)
	assert.True(t, edited.Equal(*got[0].LastEditedAt))
	assert.Equal(t, "kat", got[0].EditHistory[0].PreviousName)

	_, err = encodeMemes(memes, "xml")
	assert.Error(t, err)
}

func TestSweepRefusesInMemoryRecords(t *testing.T) {
	cfg := &config.Config{Assets: config.AssetsConfig{Driver: config.AssetsLocal}}
	assert.Error(t, checkSweepStorage(cfg, false, false))
	assert.NoError(t, checkSweepStorage(cfg, true, false), "dry run is harmless")
	assert.NoError(t, checkSweepStorage(cfg, false, true))

	cfg.Storage = config.StorageConfig{Driver: store.DriverSQLite, SQLitePath: "memes.db"}
	assert.NoError(t, checkSweepStorage(cfg, false, false))
}

func TestBootstrapAdminSeedsOnce(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemoryStore()
	tokens, err := auth.NewTokenManager("0123456789abcdef-test", time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(records, tokens)

	cfg := &config.Config{}
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, logging.Nop()))
	_, err = records.GetAdmin(ctx, "root")
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing seeded without a username")

	cfg.Auth.BootstrapUsername = "root"
	cfg.Auth.BootstrapPassword = "correct horse"
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, logging.Nop()))
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, logging.Nop()), "restart with an existing admin")

	token, _, err := svc.Login(ctx, "root", "correct horse")
	require.NoError(t, err)
	p, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}

func TestImportHelpWarnsAboutLoss(t *testing.T) {
	cmd, _, err := RootCmd.Find([]string{"import"})
	require.NoError(t, err)
	assert.Contains(t, cmd.Long, "not a faithful backup")
}
