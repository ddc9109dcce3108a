package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudscore/internal/artifact"
	"github.com/mbd888/fraudscore/internal/drift"
	"github.com/mbd888/fraudscore/internal/evaluate"
	"github.com/mbd888/fraudscore/internal/health"
	"github.com/mbd888/fraudscore/internal/ingest"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/pipeline"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status    string          `json:"status"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

// ScoreRequest is a batch of raw transactions keyed by column name.
type ScoreRequest struct {
	Transactions []ingest.Record `json:"transactions"`
}

// ScoreResponse carries one prediction per request transaction, in order.
type ScoreResponse struct {
	ModelVersion int                   `json:"modelVersion"`
	RunID        string                `json:"runId"`
	Predictions  []pipeline.Prediction `json:"predictions"`
}

// ModelResponse describes the loaded artifact.
type ModelResponse struct {
	Version   int             `json:"version"`
	RunID     string          `json:"runId"`
	CreatedAt time.Time       `json:"createdAt"`
	OOFAUC    evaluate.Metric `json:"oofAuc"`
	Families  []string        `json:"families"`
	Features  int             `json:"features"`
	Required  []string        `json:"required"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() || s.current.Load() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) scoreHandler(c *gin.Context) {
	m := s.current.Load()
	if m == nil {
		s.scoreError(c, http.StatusServiceUnavailable, "model_unavailable", "No model is loaded")
		return
	}

	var req ScoreRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.scoreError(c, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object with a transactions array")
		return
	}

	if len(req.Transactions) == 0 {
		metrics.ScoringRequestsTotal.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, ScoreResponse{
			ModelVersion: m.rec.Version,
			RunID:        m.rec.RunID,
			Predictions:  []pipeline.Prediction{},
		})
		return
	}

	t, err := ingest.FromRecords(req.Transactions, ingest.ReadOptions{Categorical: ingest.DefaultCategorical})
	if err != nil {
		s.scoreError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	preds, err := pipeline.Score(c.Request.Context(), m.art, t)
	switch {
	case errors.Is(err, pipeline.ErrMissingColumns):
		s.scoreError(c, http.StatusUnprocessableEntity, "missing_columns", err.Error())
		return
	case err != nil:
		logging.L(c.Request.Context()).Error("scoring failed", "error", err, "version", m.rec.Version)
		s.scoreError(c, http.StatusInternalServerError, "internal_error", "Scoring failed")
		return
	}

	probs := make([]float64, len(preds))
	for i, p := range preds {
		probs[i] = p.Probability
	}
	m.monitor.Observe(probs...)
	m.monitor.Snapshot()
	metrics.ScoringRequestsTotal.WithLabelValues("ok").Inc()

	c.JSON(http.StatusOK, ScoreResponse{
		ModelVersion: m.rec.Version,
		RunID:        m.rec.RunID,
		Predictions:  preds,
	})
}

func (s *Server) scoreError(c *gin.Context, status int, code, message string) {
	metrics.ScoringRequestsTotal.WithLabelValues(code).Inc()
	c.JSON(status, gin.H{"error": code, "message": message})
}

func (s *Server) modelHandler(c *gin.Context) {
	m := s.current.Load()
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model_unavailable", "message": "No model is loaded"})
		return
	}
	c.JSON(http.StatusOK, describe(m))
}

func describe(m *model) ModelResponse {
	families := make([]string, len(m.art.Families))
	for i, f := range m.art.Families {
		families[i] = f.Name
	}
	return ModelResponse{
		Version:   m.rec.Version,
		RunID:     m.rec.RunID,
		CreatedAt: m.rec.CreatedAt,
		OOFAUC:    m.art.OOFAUC,
		Families:  families,
		Features:  len(m.art.Features),
		Required:  m.art.Required,
	}
}

// reloadHandler loads ?version=N, or the latest version when absent.
func (s *Server) reloadHandler(c *gin.Context) {
	version := 0
	if v := c.Query("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "version must be a positive integer"})
			return
		}
		version = n
	}

	m, err := s.load(c.Request.Context(), version)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Artifact version not found"})
		return
	case errors.Is(err, artifact.ErrCorrupt), errors.Is(err, pipeline.ErrIncompatibleArtifact):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_artifact", "message": err.Error()})
		return
	case err != nil:
		logging.L(c.Request.Context()).Error("model reload failed", "error", err, "version", version)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load artifact"})
		return
	}
	c.JSON(http.StatusOK, describe(m))
}

func (s *Server) listModelsHandler(c *gin.Context) {
	recs, err := s.store.List(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("list artifacts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to list artifacts"})
		return
	}
	if recs == nil {
		recs = []artifact.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"models": recs, "current": s.modelVersion()})
}

func (s *Server) driftHandler(c *gin.Context) {
	m := s.current.Load()
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model_unavailable", "message": "No model is loaded"})
		return
	}
	c.JSON(http.StatusOK, struct {
		ModelVersion int `json:"modelVersion"`
		drift.Report
	}{m.rec.Version, m.monitor.Snapshot()})
}
