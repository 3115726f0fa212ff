// Package api serves the HTTP surface: world lifecycle, reads, the live SSE
// stream, experiments, replay, and the external agent gateway mount.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talgya/gridworld/internal/bus"
	"github.com/talgya/gridworld/internal/cache"
	"github.com/talgya/gridworld/internal/config"
	"github.com/talgya/gridworld/internal/engine"
	"github.com/talgya/gridworld/internal/entropy"
	"github.com/talgya/gridworld/internal/eventlog"
	"github.com/talgya/gridworld/internal/experiment"
	"github.com/talgya/gridworld/internal/gateway"
	"github.com/talgya/gridworld/internal/policy"
	"github.com/talgya/gridworld/internal/store"
)

// Server wires every component behind the router.
type Server struct {
	cfg         *config.Config
	store       *store.Store
	log         *eventlog.Log
	projections *cache.Projections
	respCache   *cache.ResponseCache
	bus         *bus.Bus
	engine      *engine.Engine
	controller  *experiment.Controller
	gateway     *gateway.Gateway
	registry    *policy.Registry
	rng         *entropy.Source

	started time.Time
	router  *gin.Engine
}

// New builds the server and its routes.
func New(cfg *config.Config, st *store.Store, log *eventlog.Log,
	proj *cache.Projections, respCache *cache.ResponseCache, b *bus.Bus,
	eng *engine.Engine, ctrl *experiment.Controller, gw *gateway.Gateway,
	reg *policy.Registry, rng *entropy.Source) *Server {

	s := &Server{
		cfg:         cfg,
		store:       st,
		log:         log,
		projections: proj,
		respCache:   respCache,
		bus:         b,
		engine:      eng,
		controller:  ctrl,
		gateway:     gw,
		registry:    reg,
		rng:         rng,
		started:     time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/status", s.status)

		api.GET("/world/state", s.worldState)
		api.POST("/world/start", s.worldStart)
		api.POST("/world/pause", s.worldPause)
		api.POST("/world/resume", s.worldResume)
		api.POST("/world/reset", s.worldReset)

		api.GET("/agents", s.listAgents)
		api.GET("/agents/:id", s.getAgent)

		api.GET("/events/recent", s.recentEvents)
		api.GET("/events", s.streamEvents)

		api.POST("/experiments", s.createExperiment)
		api.GET("/experiments", s.listExperiments)
		api.GET("/experiments/:id", s.getExperiment)
		api.DELETE("/experiments/:id", s.deleteExperiment)
		api.POST("/experiments/:id/variants", s.addVariant)
		api.POST("/experiments/:id/run", s.runExperiment)
		api.POST("/experiments/:id/stop", s.stopExperiment)

		replay := api.Group("/replay")
		{
			replay.GET("/ticks", s.replayTicks)
			replay.GET("/tick/:n", s.replayTick)
			replay.GET("/tick/:n/events", s.replayTickEvents)
			replay.GET("/events", s.replayEvents)
			replay.GET("/agent/:id/history", s.agentHistory)
			replay.GET("/agent/:id/timeline", s.agentTimeline)
		}

		s.gateway.Mount(api.Group("/v1"))
	}
	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// status reports engine, cache, bus, and adapter health in one read.
func (s *Server) status(c *gin.Context) {
	ws, err := s.store.GetWorldState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load world state"})
		return
	}
	projHits, projMisses := s.projections.Stats()
	llmHits, llmMisses := s.respCache.Stats()

	adapters := gin.H{}
	for _, pt := range s.registry.PolicyTypes() {
		if a, err := s.registry.Get(pt); err == nil {
			adapters[pt] = a.IsAvailable()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"engine": gin.H{
			"state":  s.engine.State(),
			"tick":   ws.CurrentTick,
			"paused": ws.IsPaused,
			"uptime": humanize.RelTime(time.Now().Add(-s.engine.Uptime()), time.Now(), "", ""),
		},
		"events": gin.H{
			"version": ws.GlobalEventVersion,
		},
		"cache": gin.H{
			"projectionHits":   projHits,
			"projectionMisses": projMisses,
			"llmHits":          llmHits,
			"llmMisses":        llmMisses,
		},
		"bus": gin.H{
			"subscribers": s.bus.SubscriberCount(),
			"dropped":     s.bus.Dropped(),
		},
		"adapters": adapters,
		"seed":     s.rng.Seed(),
		"started":  humanize.Time(s.started),
	})
}

func uuidOrBad(c *gin.Context, param string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid id"})
		return "", false
	}
	return id, true
}
