// Package server provides the MinerPulse Gin-based telemetry API.
// Routes:
//   - POST /ingest  — Bearer-token-protected; accepts one sample per request.
//   - GET  /latest  — most recent sample for a miner.
//   - GET  /range   — time-bounded ascending series, reduced column set.
//   - GET  /healthz — liveness probe (no auth — used by load-balancers / k8s probes).
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultRangeHours = 24
	maxRangeHours     = 2160 // 24h × 90 days
)

// API carries the handlers' dependencies: the sample store, the logger and an
// injectable clock. Constructed explicitly at startup — no package globals —
// so tests can substitute an in-memory store and a fixed clock.
type API struct {
	store *Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewAPI creates an API backed by the given store.
func NewAPI(store *Store, log zerolog.Logger) *API {
	return &API{store: store, log: log, now: time.Now}
}

// RegisterRoutes wires up the telemetry API on the given engine.
// The engine is expected to carry RecoveryBoundary and CORSMiddleware.
func (a *API) RegisterRoutes(r *gin.Engine, ingestToken string) {
	r.POST("/ingest", IngestTokenMiddleware(ingestToken), a.handleIngest)
	r.GET("/latest", a.handleLatest)
	r.GET("/range", a.handleRange)
	r.GET("/healthz", a.handleHealthz)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// CORSMiddleware reflects the request Origin (or "*") on every response,
// including errors, and short-circuits OPTIONS preflights with an empty 200.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RecoveryBoundary is the single catch-all error boundary: any panic escaping
// a handler becomes a 500 JSON response. Handlers perform no retries of their own.
func RecoveryBoundary(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		log.Error().Str("path", c.Request.URL.Path).Interface("panic", err).Msg("handler panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(err)})
	})
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleIngest coerces an arbitrary JSON payload into a fixed-shape row and
// inserts it. Auth has already run; the only client error left is a missing
// miner_id. Malformed bodies and database failures are 500s per the error
// taxonomy, with no row written.
func (a *API) handleIngest(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	minerID := coerceMinerID(body["miner_id"])
	if minerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "miner_id required"})
		return
	}

	sample := shapeSample(body, a.now())
	sample.MinerID = minerID

	if err := a.store.InsertSample(sample); err != nil {
		a.log.Error().Err(err).Str("miner_id", minerID).Msg("insert sample")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleLatest returns the most recent sample for a miner, or null when the
// miner has none. An unknown miner is not an error — still 200.
func (a *API) handleLatest(c *gin.Context) {
	minerID := c.Query("miner_id")
	if minerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "miner_id required"})
		return
	}

	sample, err := a.store.LatestSample(minerID)
	if err != nil {
		a.log.Error().Err(err).Str("miner_id", minerID).Msg("latest sample")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"miner_id": minerID, "sample": sample})
}

// handleRange returns the ascending reduced-column series for a miner since
// now − hours. hours defaults to 24 and is clamped to [1, 2160].
func (a *API) handleRange(c *gin.Context) {
	minerID := c.Query("miner_id")
	if minerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "miner_id required"})
		return
	}

	hours := parseHours(c.Query("hours"))
	fromTs := a.now().Unix() - int64(hours)*3600

	points, err := a.store.RangeSamples(minerID, fromTs)
	if err != nil {
		a.log.Error().Err(err).Str("miner_id", minerID).Msg("range samples")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"miner_id": minerID,
		"fromTs":   fromTs,
		"hours":    hours,
		"samples":  points,
	})
}

// parseHours interprets the hours query param as a base-10 integer, defaulting
// to 24 when missing or unparseable, clamped to [1, 2160].
func parseHours(raw string) int {
	hours := defaultRangeHours
	if raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			hours = n
		}
	}
	if hours < 1 {
		hours = 1
	}
	if hours > maxRangeHours {
		hours = maxRangeHours
	}
	return hours
}
