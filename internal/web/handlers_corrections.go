package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tabcheck/tabcheck/internal/core"
	"github.com/tabcheck/tabcheck/internal/ingest"
)

type correctionsRequest struct {
	Author      string                 `json:"author"`
	Corrections []core.CorrectionInput `json:"corrections"`
}

func (s *Server) handleAddCorrections(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}

	var req correctionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid corrections payload: "+err.Error())
		return
	}
	if len(req.Corrections) == 0 {
		s.respondBadRequest(w, r, "no corrections given")
		return
	}

	if err := s.service.AddCorrections(r.Context(), runID, req.Corrections, req.Author); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"saved": len(req.Corrections)})
}

// handleRevalidate starts a new run over the corrected grid. The new run
// supersedes the addressed one.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}

	run, err := s.service.Revalidate(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// handleExportCorrected downloads the run's grid with corrections applied,
// as CSV (default) or XLSX.
func (s *Server) handleExportCorrected(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}

	grid, err := s.service.CorrectedGrid(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="corrected-`+runID.String()+`.csv"`)
		if err := ingest.WriteCSV(grid, w); err != nil {
			// Headers are already sent; nothing left but to log.
			slog.Error("csv export failed", "run_id", runID, "error", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="corrected-`+runID.String()+`.xlsx"`)
		if err := ingest.WriteXLSX(grid, w); err != nil {
			slog.Error("xlsx export failed", "run_id", runID, "error", err)
		}
	default:
		s.respondBadRequest(w, r, "format must be csv or xlsx")
	}
}
