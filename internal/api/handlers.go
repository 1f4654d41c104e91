package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soltrend/internal/assistant"
	"soltrend/internal/trendengine"
)

const (
	notReady           = "not enough data yet"
	defaultWalletLimit = 50
	maxWalletLimit     = 500
)

// chartColumns are the series the dashboard plots when none are requested.
var chartColumns = []string{
	"close", "sma_20", "sma_50", "sma_200",
	"rsi",
	"macd", "macd_signal",
	"roc", "cci", "uo",
	"stoch_k", "stoch_d",
	"williams_r",
	"adx", "+DI", "-DI",
	"obv", "cmf", "ad",
}

type assistantRequest struct {
	Question string `json:"question" binding:"required,max=1000"`
}

func (s *Server) latest(c *gin.Context) *trendengine.Snapshot {
	snap := s.deps.Snapshots.Latest()
	if snap == nil {
		errorResponse(c, http.StatusServiceUnavailable, notReady)
	}
	return snap
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	report, code := s.deps.Health.Report()
	c.JSON(code, report)
}

func (s *Server) handleTrend(c *gin.Context) {
	snap := s.latest(c)
	if snap == nil {
		return
	}
	successResponse(c, snap)
}

func (s *Server) handleTrendText(c *gin.Context) {
	snap := s.latest(c)
	if snap == nil {
		return
	}
	c.String(http.StatusOK, snap.Text)
}

// handleIndicators returns ?columns= (comma separated) over the last ?limit= rows.
func (s *Server) handleIndicators(c *gin.Context) {
	snap := s.latest(c)
	if snap == nil {
		return
	}

	names := chartColumns
	if q := c.Query("columns"); q != "" {
		names = nil
		for _, n := range strings.Split(q, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}

	frame := snap.Frame
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		frame = frame.Tail(n)
	}

	cols := make(map[string][]float64, len(names))
	for _, n := range names {
		values, ok := frame.Column(n)
		if !ok {
			errorResponse(c, http.StatusBadRequest, "unknown column: "+n)
			return
		}
		cols[n] = values
	}

	ts := make([]int64, frame.Len())
	for i := range frame.Rows {
		ts[i] = frame.Rows[i].TS
	}

	successResponse(c, gin.H{
		"symbol":   snap.Symbol,
		"interval": snap.Interval,
		"ts":       ts,
		"columns":  cols,
	})
}

func (s *Server) handleAssistant(c *gin.Context) {
	if s.deps.Assistant == nil {
		errorResponse(c, http.StatusServiceUnavailable, "assistant disabled")
		return
	}

	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "question is required (max 1000 characters)")
		return
	}

	summary := ""
	if snap := s.deps.Snapshots.Latest(); snap != nil {
		summary = snap.Text
	}

	answer, err := s.deps.Assistant.Ask(c.Request.Context(), summary, req.Question)
	if err != nil {
		s.countAssistant("error")
		log.Warn().Str("component", "api").Err(err).Msg("assistant request failed")
		if errors.Is(err, assistant.ErrNotConfigured) {
			errorResponse(c, http.StatusServiceUnavailable, "assistant not configured")
			return
		}
		errorResponse(c, http.StatusBadGateway, "assistant unavailable")
		return
	}
	s.countAssistant("ok")
	successResponse(c, gin.H{"answer": answer})
}

func (s *Server) countAssistant(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.AssistantRequests.WithLabelValues(result).Inc()
	}
}

func (s *Server) handleWalletTransactions(c *gin.Context) {
	if s.deps.Wallet == nil {
		errorResponse(c, http.StatusServiceUnavailable, "wallet monitor disabled")
		return
	}

	limit := defaultWalletLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			errorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxWalletLimit)
	}
	successResponse(c, s.deps.Wallet.Recent(limit))
}
