package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/bondx/internal/logs"
)

const adminVersion = "0.1.0"

type AdminConfig struct {
	ID          string
	Addr        string
	CorsOrigins []string
	Logger      zerolog.Logger
	// Status renders the /status body.
	Status func() any
	// Ready gates /ready; nil means always ready.
	Ready func() bool
}

// AdminServer exposes health, readiness, run status and prometheus metrics.
type AdminServer struct {
	cfg     AdminConfig
	router  *gin.Engine
	started time.Time
}

func NewAdminServer(cfg AdminConfig) *AdminServer {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &AdminServer{cfg: cfg, router: r, started: time.Now()}
	a.registerRoutes()
	return a
}

func (a *AdminServer) Handler() http.Handler {
	return a.router
}

func (a *AdminServer) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).String(),
			"service": a.cfg.ID,
			"version": adminVersion,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		ready := a.cfg.Ready == nil || a.cfg.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"service": a.cfg.ID,
		})
	})

	a.router.GET("/status", func(c *gin.Context) {
		if a.cfg.Status == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, a.cfg.Status())
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run listens on the configured address and serves until ctx ends.
func (a *AdminServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(a.cfg.Addr))
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

func (a *AdminServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logs.Infof("observability.AdminServer listening addr=%q", ln.Addr().String())
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
