// Package server exposes the meme board over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/media"
)

// Options configures the router.
type Options struct {
	Media             *media.Coordinator
	Auth              *auth.Service
	Logger            logging.Logger
	Registerer        prometheus.Registerer
	Gatherer          prometheus.Gatherer
	CORSOrigins       []string
	EditRatePerMinute int
	LocalAssetDir     string // served under /uploads when set
	Debug             bool
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Media == nil || opts.Auth == nil {
		return nil, errors.New("server: media coordinator and auth service are required")
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	logger := logging.OrNop(opts.Logger)

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.MaxMultipartMemory = 32 << 20

	metrics, err := newHTTPMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	limiter, err := newIPLimiter(opts.EditRatePerMinute, 4096)
	if err != nil {
		return nil, err
	}

	engine.Use(gin.Recovery(), requestID(), accessLog(logger), metrics.middleware())
	engine.Use(cors.New(corsConfig(opts.CORSOrigins)))

	h := &handler{media: opts.Media, auth: opts.Auth, logger: logger}

	api := engine.Group("/api")
	api.GET("/health", h.health)
	api.GET("/memes", h.listMemes)
	api.GET("/memes/:id", h.getMeme)
	api.POST("/memes", h.createMeme)
	api.PATCH("/memes/:id/edit", limiter.middleware(), h.editMeme)
	api.POST("/admin/login", h.login)

	admin := api.Group("/admin/memes", requireAdmin(opts.Auth.Tokens()))
	{
		admin.POST("/bulk", h.bulkUpload)
		admin.PUT("/:id", h.renameMeme)
		admin.DELETE("/:id", h.deleteMeme)
		admin.POST("/:id/lock", h.lockMeme)
		admin.POST("/:id/unlock", h.unlockMeme)
		admin.POST("/:id/feature", h.featureMeme)
		admin.POST("/:id/unfeature", h.unfeatureMeme)
	}

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	if opts.LocalAssetDir != "" {
		engine.Static(asset.LocalPathPrefix, opts.LocalAssetDir)
	}
	return engine, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	cfg.ExposeHeaders = []string{requestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	http   *http.Server
	logger logging.Logger
}

// New returns a server for handler on addr.
func New(addr string, handler http.Handler, logger logging.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
		logger: logging.OrNop(logger),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
