package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clinsight/app"
	"clinsight/domain/assessment"
	"clinsight/domain/core"
	"clinsight/domain/report"
	apperrors "clinsight/internal/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"budget": s.engine.BudgetStatus().Health,
	})
}

// handleComposeReport runs a full composition and persists the result.
// Budget is spent even when persistence fails, so a storage error still
// returns the composed report alongside a warning header.
func (s *Server) handleComposeReport(w http.ResponseWriter, r *http.Request) {
	var req app.ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.InvalidInput("request body is not valid JSON"))
		return
	}

	rep, err := s.composer.ComposeReport(r.Context(), req, s.engine)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.reports != nil {
		if err := s.reports.Save(r.Context(), rep); err != nil {
			s.logger.Error("failed to persist composed report",
				zap.String("report_id", string(rep.ID)), zap.Error(err))
			w.Header().Set("X-Persistence-Warning", "report was composed but not stored")
		}
	}

	s.writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeJSON(w, http.StatusOK, []report.Summary{})
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	summaries, err := s.reports.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []report.Summary{}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.renderer.RenderMarkdown(rep)))
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.renderer.RenderHTML(rep))
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.BudgetStatus())
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.engine.AuditLog(),
		"budget":  s.engine.BudgetStatus(),
	})
}

// handlePrivacyReset opens a new privacy epoch. The previous audit log is
// archived inside the engine, not discarded.
func (s *Server) handlePrivacyReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TotalBudget float64 `json:"total_budget"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, apperrors.InvalidInput("request body is not valid JSON"))
			return
		}
	}
	if body.TotalBudget < 0 {
		s.writeError(w, apperrors.InvalidInput("total_budget must not be negative"))
		return
	}

	s.engine.Reset(body.TotalBudget)
	status := s.engine.BudgetStatus()
	s.logger.Info("privacy epoch reset",
		zap.Float64("total_budget", status.Total))
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, assessment.AllProfiles())
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*report.ClinicalIntelligenceReport, bool) {
	if s.reports == nil {
		s.writeError(w, apperrors.NotFound("report"))
		return nil, false
	}

	id := chi.URLParam(r, "id")
	rep, err := s.reports.GetByID(r.Context(), core.ReportID(id))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return rep, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps domain and application errors onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeInternalError

	switch {
	case core.IsNotFoundError(err):
		status, code = http.StatusNotFound, apperrors.CodeNotFound
	case core.IsBudgetError(err):
		status, code = http.StatusTooManyRequests, apperrors.CodePrivacyBudget
	case errors.Is(err, core.ErrInvalidWindow), core.IsAnalysisError(err):
		status, code = http.StatusBadRequest, apperrors.CodeValidationError
	case apperrors.IsAppError(err):
		code = apperrors.GetCode(err)
		status = apperrors.HTTPStatus(code)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
