package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cellmove"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cells"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// LockedMessage is shown when another user has the prisoner open.
const LockedMessage = "A user currently has this prisoner open. Try again later."

// Service is the cell move engine behind the handlers.
type Service interface {
	ConsiderRisks(ctx context.Context, req cellmove.RiskRequest) (*domain.Verdict, error)
	Cells(ctx context.Context, q cells.Query) ([]domain.Cell, error)
	Occupancy(ctx context.Context, q cells.Query, prisonerNumber string) ([]domain.CellOccupancy, error)
	Ping(ctx context.Context) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	service Service
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(service Service, bus domain.EventBus, version string) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		version: version,
	}
}

// ConsiderRisksResponse is the response for GET /prisoners/{prisonerNumber}/cell-move/consider-risks.
type ConsiderRisksResponse struct {
	domain.Verdict
	// ConfirmURL is set when the warning screen can be skipped.
	ConfirmURL string `json:"confirmUrl,omitempty"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error                 string `json:"error"`
	RedirectURL           string `json:"redirectUrl"`
	CellNoLongerAvailable bool   `json:"cellNoLongerAvailable,omitempty"`
}

// ConsiderRisks evaluates moving a prisoner into a cell in the active caseload.
func (h *Handler) ConsiderRisks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prisonerNumber := chi.URLParam(r, "prisonerNumber")
	cellID := r.URL.Query().Get("cellId")
	redirect := searchForCellURL(prisonerNumber)

	if cellID == "" {
		h.writeError(w, r, fmt.Errorf("%w: cellId is required", domain.ErrInvalidInput), redirect)
		return
	}

	verdict, err := h.service.ConsiderRisks(ctx, cellmove.RiskRequest{
		PrisonID:       GetPrisonID(ctx),
		PrisonerNumber: prisonerNumber,
		CellKey:        cellID,
	})
	if err != nil {
		h.writeError(w, r, err, redirect)
		return
	}

	resp := ConsiderRisksResponse{Verdict: *verdict}
	if verdict.Proceed {
		resp.ConfirmURL = fmt.Sprintf("/prisoners/%s/cell-move/confirm-cell-move?cellId=%s",
			url.PathEscape(prisonerNumber), url.QueryEscape(cellID))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cells lists candidate cells.
func (h *Handler) Cells(w http.ResponseWriter, r *http.Request) {
	q, ok := h.cellQuery(w, r)
	if !ok {
		return
	}

	found, err := h.service.Cells(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, "/")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// Occupants lists candidate cells with their occupants.
func (h *Handler) Occupants(w http.ResponseWriter, r *http.Request) {
	q, ok := h.cellQuery(w, r)
	if !ok {
		return
	}
	prisonerNumber := r.URL.Query().Get("prisonerNumber")

	redirect := "/"
	if prisonerNumber != "" {
		redirect = searchForCellURL(prisonerNumber)
	}

	occupancy, err := h.service.Occupancy(r.Context(), q, prisonerNumber)
	if err != nil {
		h.writeError(w, r, err, redirect)
		return
	}
	writeJSON(w, http.StatusOK, occupancy)
}

func (h *Handler) cellQuery(w http.ResponseWriter, r *http.Request) (cells.Query, bool) {
	prisonID := GetPrisonID(r.Context())
	if !strings.EqualFold(chi.URLParam(r, "prisonId"), prisonID) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:       "prison is not the active caseload",
			RedirectURL: "/",
		})
		return cells.Query{}, false
	}

	params := r.URL.Query()
	return cells.Query{
		PrisonID:  prisonID,
		Group:     params.Get("group"),
		SubGroup:  params.Get("subGroup"),
		CellType:  params.Get("cellType"),
		Attribute: params.Get("attribute"),
	}, true
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.service != nil {
		if err := h.service.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeError maps the error taxonomy onto a status and a safe redirect.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	resp := ErrorResponse{RedirectURL: redirect}
	var status int

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "not found"
	case errors.Is(err, domain.ErrLocked):
		status = http.StatusLocked
		resp.Error = LockedMessage
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusConflict
		resp.Error = "cell no longer available"
		resp.CellNoLongerAvailable = true
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal server error"
	}

	level := slog.LevelWarn
	if status == http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"status", status,
		"prison_id", GetPrisonID(r.Context()),
		"trace_id", GetTraceID(r.Context()),
		"error", err,
	)

	writeJSON(w, status, resp)
}

func searchForCellURL(prisonerNumber string) string {
	return fmt.Sprintf("/prisoners/%s/cell-move/search-for-cell", url.PathEscape(prisonerNumber))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
