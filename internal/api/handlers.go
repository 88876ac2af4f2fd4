package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yourusername/quant-ninja/internal/bot"
	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/oracle"
)

// scanFormField is the multipart field carrying an uploaded frame
const scanFormField = "frame"

type errorResponse struct {
	Error string `json:"error"`
}

type settleRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type scanRequest struct {
	// Image is a data:image/...;base64 URL
	Image string `json:"image"`
}

type positionsResponse struct {
	Count     int               `json:"count"`
	Positions []models.Position `json:"positions"`
}

// GET /api/v1/financials
func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Session().Financials())
}

// GET /api/v1/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Monitor().GetDashboardData())
}

// GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

// GET /api/v1/positions?status=PENDING
func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	l := s.orch.Session().Ledger()

	positions := l.Positions()
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		positions = l.Filter(status)
	}
	if positions == nil {
		positions = []models.Position{}
	}

	writeJSON(w, http.StatusOK, positionsResponse{Count: len(positions), Positions: positions})
}

// GET /api/v1/positions/{id}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, ok := s.orch.Session().Ledger().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, models.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /api/v1/positions/{id}
func (s *Server) handleRemovePosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.orch.Session().Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/v1/positions/{id}/settle
func (s *Server) handleSettlePosition(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status, err := parseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.orch.Session().Settle(r.Context(), chi.URLParam(r, "id"), status, req.Note)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/v1/scan
// Accepts a multipart "frame" file or a JSON body {"image": "data:image/png;base64,..."}.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	frame, err := s.readFrame(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		case errors.Is(err, capture.ErrUnsupportedImage):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	report, err := s.orch.Agent().ScanFrame(r.Context(), frame, bot.SourceUpload)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /api/v1/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.features.SyncEnabled {
		writeError(w, http.StatusForbidden, "sync is disabled")
		return
	}

	report, err := s.orch.Sync(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /api/v1/settle
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	report, err := s.orch.Settler().SettleOnce(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /api/v1/agent
func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Agent().Status())
}

// POST /api/v1/agent/arm
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Agent().Arm(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Agent().Status())
}

// POST /api/v1/agent/disarm
func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	s.orch.Agent().Disarm("operator request")
	writeJSON(w, http.StatusOK, s.orch.Agent().Status())
}

func (s *Server) readFrame(r *http.Request) (*capture.Frame, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("failed to parse upload: %w", err)
		}
		file, header, err := r.FormFile(scanFormField)
		if err != nil {
			return nil, fmt.Errorf("missing %q file: %w", scanFormField, err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return capture.NewFrame(header.Filename, data)
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Image == "" {
		return nil, errors.New("image is required")
	}
	return capture.DecodeDataURL(req.Image)
}

// writeDomainError maps bot, ledger and oracle errors to HTTP status codes
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, bot.ErrScanInProgress),
		errors.Is(err, bot.ErrSettlementInProgress),
		errors.Is(err, bot.ErrCircuitOpen):
		status = http.StatusConflict
	case errors.Is(err, oracle.ErrMissingAPIKey),
		errors.Is(err, oracle.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, oracle.ErrUnavailable),
		errors.Is(err, oracle.ErrInvalidResponse),
		errors.Is(err, oracle.ErrEmptyResponse):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	writeError(w, status, err.Error())
}

func parseStatus(raw string) (models.Status, error) {
	status := models.Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return status, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
