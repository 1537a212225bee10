package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/tabcheck/tabcheck/internal/core"
	"github.com/tabcheck/tabcheck/internal/ingest"
)

// formFile extracts the uploaded file from a multipart request, enforcing
// the configured size cap.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize)
	if err := r.ParseMultipartForm(s.opts.MaxFileSize); err != nil {
		s.respondBadRequest(w, r, "file too large or malformed upload: "+err.Error())
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondBadRequest(w, r, "no file provided")
		return nil, nil, false
	}
	return file, header, true
}

// handleStartRun accepts a multipart upload and starts an asynchronous
// validation run against the template. Responds 202 with the pending run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	templateID, ok := s.pathUUID(w, r, "templateID")
	if !ok {
		return
	}

	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondBadRequest(w, r, "read upload: "+err.Error())
		return
	}

	run, err := s.service.StartRun(r.Context(), core.StartRunParams{
		TemplateID: templateID,
		Owner:      r.FormValue("owner"),
		FileName:   header.Filename,
		Sheet:      r.FormValue("sheet"),
		Data:       data,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// handleListSheets returns the sheet names of an uploaded workbook so the
// client can offer a sheet picker before starting a run.
func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	file, _, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	sheets, err := ingest.Sheets(file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sheets": sheets})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}
	run, err := s.service.GetRun(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	templateID, ok := s.pathUUID(w, r, "templateID")
	if !ok {
		return
	}
	runs, err := s.service.ListRuns(r.Context(), templateID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleRunProgress streams run progress as server-sent events until the
// run reaches a terminal state. For runs no longer tracked in memory it
// falls back to a single snapshot of the stored run.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		run, storeErr := s.service.GetRun(r.Context(), runID)
		if storeErr != nil {
			s.respondError(w, r, storeErr)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondBadRequest(w, r, "streaming not supported")
		return
	}

	for {
		select {
		case progress, open := <-progressCh:
			if !open {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent(), data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}
	if err := s.service.CancelRun(runID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}
	fromRow, ok := s.queryInt(w, r, "fromRow", 0)
	if !ok {
		return
	}
	toRow, ok := s.queryInt(w, r, "toRow", 0)
	if !ok {
		return
	}
	if fromRow < 0 || (toRow > 0 && toRow < fromRow) {
		s.respondBadRequest(w, r, fmt.Sprintf("invalid row range [%d, %d)", fromRow, toRow))
		return
	}

	results, err := s.service.ResultsPage(r.Context(), runID, fromRow, toRow)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// queryInt parses an optional integer query parameter, responding 400 on
// malformed input.
func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.respondBadRequest(w, r, fmt.Sprintf("invalid %s: %q", name, raw))
		return 0, false
	}
	return n, true
}

func (s *Server) handleRunChain(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "runID")
	if !ok {
		return
	}
	chain, err := s.service.Chain(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}
