package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	commandsapp "bluelink-bridge/internal/commands/application"
	commands "bluelink-bridge/internal/commands/domain"
	"bluelink-bridge/internal/history"
)

// ActionsHandler serves the live action listing.
type ActionsHandler struct {
	tracker *commandsapp.Tracker
}

// NewActionsHandler constructs an ActionsHandler.
func NewActionsHandler(tracker *commandsapp.Tracker) (*ActionsHandler, error) {
	if tracker == nil {
		return nil, errors.New("httpapi: nil tracker")
	}
	return &ActionsHandler{tracker: tracker}, nil
}

// ServeHTTP handles GET /api/v1/actions.
func (h *ActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records := h.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"actions": records})
}

// HistoryHandler serves the persisted action history and its exports.
type HistoryHandler struct {
	repo *history.Repository
}

// NewHistoryHandler constructs a HistoryHandler. A nil repository is
// allowed; requests then report the store as unconfigured.
func NewHistoryHandler(repo *history.Repository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// ServeHTTP handles GET /api/v1/history and
// GET /api/v1/history/export.{csv,xlsx,pdf}.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.repo == nil {
		http.Error(w, "history store not configured", http.StatusServiceUnavailable)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.repo.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "query history error", http.StatusInternalServerError)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/export.csv"):
		data, err := history.BuildCSV(entries)
		writeExport(w, data, err, "text/csv", "history.csv")
	case strings.HasSuffix(path, "/export.xlsx"):
		data, err := history.BuildXLSX(entries)
		writeExport(w, data, err, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "history.xlsx")
	case strings.HasSuffix(path, "/export.pdf"):
		data, err := history.BuildPDF(entries)
		writeExport(w, data, err, "application/pdf", "history.pdf")
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
	}
}

func parseFilter(r *http.Request) (history.Filter, error) {
	query := r.URL.Query()
	filter := history.Filter{
		VehicleID: query.Get("vehicle_id"),
		Kind:      commands.CommandKind(query.Get("kind")),
		Status:    commands.ActionStatus(query.Get("status")),
	}
	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return history.Filter{}, errors.New("since must be RFC3339")
		}
		filter.Since = t
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return history.Filter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

func writeExport(w http.ResponseWriter, data []byte, err error, contentType, filename string) {
	if err != nil {
		http.Error(w, "build export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	_, _ = w.Write(data)
}
