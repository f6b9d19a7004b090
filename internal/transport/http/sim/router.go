package simhttp

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papersim/internal/analysis/chart"
	"papersim/internal/analysis/indicator"
	"papersim/internal/engine"
	"papersim/internal/logger"
	"papersim/internal/market"
)

// Router 挂载 /api 下的所有接口。
type Router struct {
	engine     *engine.Engine
	candles    market.CandleSource
	searcher   market.SymbolSearcher
	fills      FillLister
	indicators indicator.Settings
	heartbeat  time.Duration
	fillsLimit int
}

func NewRouter(cfg ServerConfig) *Router {
	hb := cfg.Heartbeat
	if hb <= 0 {
		hb = 15 * time.Second
	}
	limit := cfg.FillsLimit
	if limit <= 0 {
		limit = 50
	}
	return &Router{
		engine:     cfg.Engine,
		candles:    cfg.Candles,
		searcher:   cfg.Searcher,
		fills:      cfg.Fills,
		indicators: cfg.Indicators,
		heartbeat:  hb,
		fillsLimit: limit,
	}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/symbol-search", r.handleSymbolSearch)
	group.GET("/candles", r.handleCandles)
	group.POST("/start", r.handleStart)
	group.GET("/stream", r.handleStream)
	group.POST("/order", r.handleOrder)
	group.GET("/account", r.handleAccount)
	group.GET("/session", r.handleSession)
	group.GET("/indicators", r.handleIndicators)
	group.GET("/chart", r.handleChart)
	group.GET("/fills", r.handleFills)
}

func (r *Router) handleSymbolSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []market.SymbolMatch{})
		return
	}
	matches, err := r.searcher.SearchSymbols(c.Request.Context(), q)
	if err != nil {
		logger.Warnf("symbol search %q 失败: %v", q, err)
		writeError(c, err)
		return
	}
	if matches == nil {
		matches = []market.SymbolMatch{}
	}
	c.JSON(http.StatusOK, matches)
}

func (r *Router) handleCandles(c *gin.Context) {
	symbol := market.NormalizeSymbol(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing symbol"})
		return
	}
	candles, err := r.candles.FetchCandles(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": candles})
}

type startRequest struct {
	Symbol string `json:"symbol"`
}

func (r *Router) handleStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("InvalidRequest", err.Error()))
			return
		}
	}
	if strings.TrimSpace(req.Symbol) == "" {
		req.Symbol = c.Query("symbol")
	}
	info, err := r.engine.StartSession(c.Request.Context(), req.Symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": info})
}

func (r *Router) handleOrder(c *gin.Context) {
	var order engine.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(engine.ErrorCode(engine.ErrInvalidOrder), err.Error()))
		return
	}
	snap, err := r.engine.PlaceOrder(c.Request.Context(), order)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleAccount(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Account())
}

func (r *Router) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Session())
}

func (r *Router) handleIndicators(c *gin.Context) {
	symbol, bars := r.engine.Revealed()
	if len(bars) == 0 {
		writeError(c, engine.ErrMarketNotReady)
		return
	}
	rep, err := indicator.ComputeAll(symbol, bars, r.indicators)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (r *Router) handleChart(c *gin.Context) {
	symbol, bars := r.engine.Revealed()
	if len(bars) == 0 {
		writeError(c, engine.ErrMarketNotReady)
		return
	}
	rep, err := indicator.ComputeAll(symbol, bars, r.indicators)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, symbol, bars, rep); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (r *Router) handleFills(c *gin.Context) {
	if r.fills == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("JournalDisabled", "journal is disabled"))
		return
	}
	limit := r.fillsLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorBody("InvalidRequest", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	sessionID := strings.TrimSpace(c.Query("session"))
	if sessionID == "current" {
		sessionID = r.engine.Session().ID
	}
	fills, err := r.fills.ListFills(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

func errorBody(code, msg string) gin.H {
	return gin.H{"error": code, "message": msg}
}

func writeError(c *gin.Context, err error) {
	code := engine.ErrorCode(err)
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("HTTP %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, errorBody(code, err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMissingSymbol), errors.Is(err, engine.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrMarketNotReady):
		return http.StatusConflict
	case errors.Is(err, market.ErrEmptyCandleSet),
		errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrNoPosition),
		errors.Is(err, engine.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, market.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
