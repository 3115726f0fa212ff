package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talgya/gridworld/internal/experiment"
	"github.com/talgya/gridworld/internal/store"
)

type variantRequest struct {
	Name            string          `json:"name"`
	ConfigOverrides json.RawMessage `json:"configOverrides"`
	AgentConfigs    json.RawMessage `json:"agentConfigs"`
	WorldSeed       int64           `json:"worldSeed"`
	DurationTicks   int64           `json:"durationTicks" binding:"required"`
}

type createExperimentRequest struct {
	Name     string           `json:"name" binding:"required"`
	Variants []variantRequest `json:"variants"`
}

func (s *Server) createExperiment(c *gin.Context) {
	var req createExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	exp := &store.Experiment{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    store.ExperimentPlanning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateExperiment(exp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not create experiment"})
		return
	}
	for i, vr := range req.Variants {
		if _, err := s.insertVariant(exp.ID, i, vr); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not create variant"})
			return
		}
	}

	variants, _ := s.store.ListVariants(exp.ID)
	c.JSON(http.StatusOK, gin.H{"experiment": exp, "variants": variants})
}

func (s *Server) insertVariant(experimentID string, position int, vr variantRequest) (*store.Variant, error) {
	name := vr.Name
	if name == "" {
		name = uuid.NewString()[:8]
	}
	v := &store.Variant{
		ID:              uuid.NewString(),
		ExperimentID:    experimentID,
		Name:            name,
		Status:          store.VariantPending,
		ConfigOverrides: string(vr.ConfigOverrides),
		AgentConfigs:    string(vr.AgentConfigs),
		WorldSeed:       vr.WorldSeed,
		DurationTicks:   vr.DurationTicks,
		Position:        position,
	}
	if err := s.store.AddVariant(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Server) listExperiments(c *gin.Context) {
	exps, err := s.store.ListExperiments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not list experiments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiments": exps, "count": len(exps)})
}

func (s *Server) getExperiment(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	exp, err := s.store.GetExperiment(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "experiment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load experiment"})
		return
	}
	variants, err := s.store.ListVariants(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load variants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiment": exp, "variants": variants})
}

func (s *Server) deleteExperiment(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	exp, err := s.store.GetExperiment(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "experiment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load experiment"})
		return
	}
	if exp.Status == store.ExperimentRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "experiment is running"})
		return
	}
	if err := s.store.DeleteExperiment(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not delete experiment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) addVariant(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetExperiment(id); errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "experiment not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load experiment"})
		return
	}

	var vr variantRequest
	if err := c.ShouldBindJSON(&vr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	existing, err := s.store.ListVariants(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not load variants"})
		return
	}
	v, err := s.insertVariant(id, len(existing), vr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "could not create variant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"variant": v})
}

// runExperiment starts the next pending variant.
func (s *Server) runExperiment(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	variant, err := s.controller.RunNextVariant(id)
	switch {
	case errors.Is(err, experiment.ErrVariantRunning):
		c.JSON(http.StatusBadRequest, gin.H{"error": "variant_running", "message": "a variant is already running"})
	case errors.Is(err, experiment.ErrNoPendingVariant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_pending_variant", "message": "no pending variant to run"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"variant": variant, "status": "starting"})
	}
}

func (s *Server) stopExperiment(c *gin.Context) {
	id, ok := uuidOrBad(c, "id")
	if !ok {
		return
	}
	err := s.controller.StopVariant(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no running variant for this experiment"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
	}
}
