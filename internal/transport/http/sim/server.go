package simhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"papersim/internal/analysis/indicator"
	"papersim/internal/engine"
	"papersim/internal/logger"
	"papersim/internal/market"
)

// Server 暴露回放、下单与账户查询接口，以及 SSE 行情流。
type Server struct {
	addr            string
	router          *gin.Engine
	shutdownTimeout time.Duration
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	Heartbeat       time.Duration
	ShutdownTimeout time.Duration
	FillsLimit      int
	RequestLogging  bool

	Engine     *engine.Engine
	Candles    market.CandleSource
	Searcher   market.SymbolSearcher
	Fills      FillLister
	Indicators indicator.Settings
}

// FillLister 查询最近的成交记录；journal 关闭时为 nil。
type FillLister interface {
	ListFills(ctx context.Context, sessionID string, limit int) ([]engine.Fill, error)
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("sim http server requires an engine")
	}
	if cfg.Candles == nil || cfg.Searcher == nil {
		return nil, errors.New("sim http server requires a candle source and a symbol searcher")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":10000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.RequestLogging {
		router.Use(requestLogger())
	}
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Simulator backend running")
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router, shutdownTimeout: cfg.ShutdownTimeout}, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			conf.AllowAllOrigins = true
			return cors.New(conf)
		}
	}
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return cors.New(conf)
	}
	conf.AllowOrigins = origins
	return cors.New(conf)
}

// requestLogger 记录接口调用；SSE 长连接在断开后才会输出。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Handler 返回底层 http.Handler，便于测试直接挂载。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP 服务监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		// SSE 连接不会自行结束，超时后强制关闭。
		if err := srv.Shutdown(shCtx); err != nil {
			_ = srv.Close()
		}
		return nil
	case err := <-errCh:
		return err
	}
}
