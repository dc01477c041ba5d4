package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/export"
	"aegis-hq/sentinel/pkg/incident"
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/signal"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleEvent accepts one raw producer event and runs it through the
// pipeline. Rejections map to 400 (malformed or unknown kind) or 503 (no
// active bundle); accepted events return the disposition and incident
// snapshot, if any.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var raw signal.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.deps.Controller.HandleEvent(r.Context(), &raw)
	if err != nil {
		var invalid *signal.InvalidEventError
		var unknownKind *signal.UnknownEventKindError
		switch {
		case errors.As(err, &invalid), errors.As(err, &unknownKind):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, bundle.ErrNoActiveBundle):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"event_id":    result.Event.ID,
		"disposition": result.Disposition,
		"incident":    result.Incident,
	})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents := s.deps.Tracker.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"active":    s.deps.Tracker.ActiveCount(),
	})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	inc, ok := s.deps.Tracker.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "no incident for correlation key "+key)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// handleAckIncident closes a terminal incident on operator acknowledgment.
// Acking an active incident is a conflict, not an error in the request
// shape.
func (s *Server) handleAckIncident(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	inc, err := s.deps.Controller.Ack(r.Context(), key)
	if err != nil {
		var notFound *incident.NotFoundError
		var invalid *incident.InvalidTransitionError
		switch {
		case errors.As(err, &notFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &invalid):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleBundleInfo(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Store.Active()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":      snapshot.Bundle.Version,
		"signer":       snapshot.Bundle.Signer,
		"rules":        len(snapshot.Bundle.Rules),
		"activated_at": snapshot.ActivatedAt,
	})
}

func (s *Server) handleBundleReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watcher == nil {
		writeError(w, http.StatusNotImplemented, "bundle delivery directory not configured")
		return
	}
	version, err := s.deps.Watcher.LoadOnce()
	if err != nil {
		// The previously active bundle stays in force on any failure.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

// handleLedgerQuery returns evidence records filtered by the query
// parameters: correlation_key, kind, from_sequence, to_sequence, start_time,
// end_time (RFC 3339), limit, offset.
func (s *Server) handleLedgerQuery(w http.ResponseWriter, r *http.Request) {
	query, err := parseLedgerQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.Ledger.Query(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	verified, err := s.deps.Controller.VerifyLedger(r.Context())
	if err != nil {
		var corruption *evidence.CorruptionError
		if errors.As(err, &corruption) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"verified":  verified,
				"corrupt":   true,
				"sequence":  corruption.Sequence,
				"detail":    corruption.Detail,
				"fail_safe": s.deps.Controller.FailSafe(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified": verified,
		"corrupt":  false,
	})
}

// handleLedgerExport streams the matching records in the requested format
// ("json" or "csv", default json). Filters follow handleLedgerQuery.
func (s *Server) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	query, err := parseLedgerQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.Ledger.Query(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	var exporter evidence.Exporter
	switch format {
	case "", "json":
		exporter = export.NewJSONExporter(false)
		w.Header().Set("Content-Type", "application/json")
	case "csv":
		exporter = export.NewCSVExporter(true)
		w.Header().Set("Content-Type", "text/csv")
	default:
		writeError(w, http.StatusBadRequest, "unsupported export format: "+format)
		return
	}

	if err := exporter.Export(r.Context(), records, w); err != nil {
		s.logger.Error("ledger export failed", "format", format, "error", err)
	}
}

func (s *Server) handleActionCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"actions": s.deps.Registry.Catalog(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"remediation":      s.deps.Dispatcher.Stats().Snapshot(),
		"incidents_active": s.deps.Tracker.ActiveCount(),
		"ledger_sequence":  s.deps.Ledger.Sequence(),
		"fail_safe":        s.deps.Controller.FailSafe(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.deps.Controller.FailSafe() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"fail_safe": s.deps.Controller.FailSafe(),
	})
}

func parseLedgerQuery(r *http.Request) (*evidence.Query, error) {
	params := r.URL.Query()
	query := &evidence.Query{
		CorrelationKey: params.Get("correlation_key"),
		Kind:           evidence.RecordKind(params.Get("kind")),
	}

	var err error
	if query.FromSequence, err = parseUint(params.Get("from_sequence")); err != nil {
		return nil, errors.New("invalid from_sequence")
	}
	if query.ToSequence, err = parseUint(params.Get("to_sequence")); err != nil {
		return nil, errors.New("invalid to_sequence")
	}
	if v := params.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil || query.Limit < 0 {
			return nil, errors.New("invalid limit")
		}
	}
	if v := params.Get("offset"); v != "" {
		if query.Offset, err = strconv.Atoi(v); err != nil || query.Offset < 0 {
			return nil, errors.New("invalid offset")
		}
	}
	if v := params.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("invalid start_time, want RFC 3339")
		}
		query.StartTime = &t
	}
	if v := params.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("invalid end_time, want RFC 3339")
		}
		query.EndTime = &t
	}
	return query, nil
}

func parseUint(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}
