// Package server exposes the reconciliation pass over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ridgeline-build/jobcost-sync/pkg/db"
	"github.com/ridgeline-build/jobcost-sync/pkg/recon"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context, opts recon.Options) *recon.Result
}

// ImportStore is the ledger surface the server writes to.
type ImportStore interface {
	RecordImport(entry db.ImportedEntry) error
	GetStats() (*db.Stats, error)
}

// Server wires the reconciliation runner and the import ledger behind a
// chi router.
type Server struct {
	runner Reconciler
	store  ImportStore
	apiKey string
}

// New creates a new Server.
func New(runner Reconciler, store ImportStore, apiKey string) *Server {
	return &Server{
		runner: runner,
		store:  store,
		apiKey: apiKey,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyAuth(s.apiKey))
		r.Post("/reconcile", s.handleReconcile)
		r.Post("/imports", s.handleImports)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// reconcileRequest is the body of POST /api/v1/reconcile.
type reconcileRequest struct {
	Since             string `json:"since,omitempty"`
	IncludeUnassigned bool   `json:"includeUnassigned,omitempty"`
	Debug             bool   `json:"debug,omitempty"`
}

// handleReconcile runs the pass and always answers 200 with the structured
// result once past auth; failures travel as payload fields, never as 5xx.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON")
			return
		}
	}

	result := s.runner.Run(r.Context(), recon.Options{
		Since:             req.Since,
		IncludeUnassigned: req.IncludeUnassigned,
		Debug:             req.Debug,
	})

	writeJSON(w, http.StatusOK, result)
}

// importRequest is the body of POST /api/v1/imports: the pending rows the
// caller accepted, to be recorded as imported.
type importRequest struct {
	Rows []recon.JobTransaction `json:"rows"`
}

type importResponse struct {
	Recorded int    `json:"recorded"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON")
		return
	}
	if len(req.Rows) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "rows must not be empty")
		return
	}

	resp := importResponse{}
	for _, row := range req.Rows {
		entry := importedEntry(row)
		if err := s.store.RecordImport(entry); err != nil {
			slog.Error("failed to record import",
				"txn_type", entry.TxnType, "txn_id", entry.TxnID, "line_id", row.LineID, "error", err)
			resp.Failed++
			resp.Error = err.Error()
			continue
		}
		resp.Recorded++
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	payload := map[string]interface{}{
		"totalImported":  stats.TotalImported,
		"importedByType": stats.ImportedByType,
		"totalProjects":  stats.TotalProjects,
	}
	if stats.LastImport.Valid {
		payload["lastImport"] = stats.LastImport.String
	}

	writeJSON(w, http.StatusOK, payload)
}

func importedEntry(row recon.JobTransaction) db.ImportedEntry {
	entry := db.ImportedEntry{
		TxnType:           row.TxnType,
		TxnID:             row.TxnID,
		AccountType:       string(row.AccountType),
		ProjectExternalID: row.ProjectExternalID,
		TxnDate:           row.Date,
		Amount:            row.Amount,
	}
	entry.LineID.Valid = true
	entry.LineID.String = row.LineID
	return entry
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": message,
	})
}
