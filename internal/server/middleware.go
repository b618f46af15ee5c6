package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/model"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	principalKey    = "principal"
)

// requestID reuses a caller-supplied id or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" {
			return
		}
		reqLogger := logging.WithField(logger, requestIDKey, c.GetString(requestIDKey))
		reqLogger.Info("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memeboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memeboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// requireAdmin verifies the bearer token and stores the principal.
func requireAdmin(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		p, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
			return
		}
		if !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "admin role required"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) model.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(model.Principal); ok {
			return p
		}
	}
	return model.Principal{}
}

// ipLimiter keeps one token bucket per client IP, evicting the least
// recently seen clients once the cache is full.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func newIPLimiter(perMinute, maxClients int) (*ipLimiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &ipLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clients: clients,
	}, nil
}

func (l *ipLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	limiter, ok := l.clients.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		// Two first requests may race here; the loser's bucket is dropped.
		if prev, loaded, _ := l.clients.PeekOrAdd(key, limiter); loaded {
			limiter = prev
		}
	}
	return limiter.Allow()
}

func (l *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "too many edits, slow down"})
			return
		}
		c.Next()
	}
}
