/*
handlers.go - HTTP API handlers for the payline engine

PURPOSE:
  Exposes case payment histories and the change operation via REST.
  Handles HTTP request/response and JSON serialization; all domain logic
  lives in the benefit service and the payline engine.

ENDPOINTS:
  GET  /api/cases/{id}/lines     Chained payment line history
  GET  /api/cases/{id}/timeline  Projected per-month timeline
  POST /api/cases/{id}/changes   Apply a change (grant/stop/resume/write-off)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed request, contract violations (overlap, duplicate
         timestamps), no active line for the change date
  - 409: Cross-check discrepancies (full list in the body) or a
         diverged reconstructed period - the change was not submitted
  - 502: Simulation oracle failure
  - 500: Chain or reconciliation invariant failure (engine defect)
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/payline-engine/benefit"
	"github.com/warp/payline-engine/payline"
)

// Handler holds the API dependencies.
type Handler struct {
	Service *benefit.Service
	Log     *zap.Logger
}

func NewHandler(service *benefit.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: service, Log: log}
}

// GetLines returns the case's chained payment line history.
func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	caseID := payline.CaseID(chi.URLParam(r, "id"))
	lines, err := h.Service.History(r.Context(), caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toLineDTOs(lines))
}

// GetTimeline returns the case's projected per-month timeline.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	caseID := payline.CaseID(chi.URLParam(r, "id"))
	timeline, err := h.Service.Timeline(r.Context(), caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTimelineDTO(timeline))
}

// ApplyChange runs the reconcile + cross-check cycle for a change request.
func (h *Handler) ApplyChange(w http.ResponseWriter, r *http.Request) {
	caseID := payline.CaseID(chi.URLParam(r, "id"))

	var dto ChangeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	req, err := toChangeRequest(caseID, dto)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.Service.ApplyChange(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ChangeResultDTO{
		Committed: result.Committed,
		Lines:     toLineDTOs(result.Lines),
		Timeline:  toTimelineDTO(result.Timeline),
	})
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var cce *payline.CrossCheckError
	switch {
	case errors.As(err, &cce):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:         cce.Error(),
			Discrepancies: toDiscrepancyDTOs(cce.Discrepancies),
		})
	case errors.Is(err, payline.ErrReconstructedPeriodDiverged):
		h.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, payline.ErrSimulationFailed):
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case payline.IsContractViolation(err),
		errors.Is(err, benefit.ErrNoActiveLine),
		errors.Is(err, benefit.ErrUnknownChangeKind),
		errors.Is(err, benefit.ErrInvalidRequest):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.Log.Error("internal error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("failed to encode response", zap.Error(err))
	}
}
