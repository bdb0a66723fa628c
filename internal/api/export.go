package api

import (
	"encoding/csv"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jtiemann/activity-tracker/internal/auth"
	"github.com/jtiemann/activity-tracker/internal/domain"
)

// exportPageSize bounds how many entries are fetched per activity.
const exportPageSize = 1000

// exportLogsCSV streams the caller's log history as CSV, optionally filtered
// to one activity via ?activity_id=.
func (h *Handler) exportLogsCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}
	byID := make(map[int64]domain.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}

	var entries []domain.Entry
	if raw := r.URL.Query().Get("activity_id"); raw != "" {
		activityID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid activity_id parameter")
			return
		}
		entries, err = h.service.ListEntries(r.Context(), userID, activityID, exportPageSize, 0)
		if err != nil {
			mapError(w, err)
			return
		}
	} else {
		for _, a := range activities {
			batch, err := h.service.ListEntries(r.Context(), userID, a.ID, exportPageSize, 0)
			if err != nil {
				mapError(w, err)
				return
			}
			entries = append(entries, batch...)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].LoggedAt.After(entries[j].LoggedAt) })
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=activity_logs.csv")

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"Activity", "Count", "Unit", "Date", "Notes"})
	for _, e := range entries {
		name, unit := "Unknown", "units"
		if a, ok := byID[e.ActivityID]; ok {
			name, unit = a.Name, a.Unit
		}
		_ = writer.Write([]string{
			name,
			strconv.FormatFloat(e.Count, 'f', -1, 64),
			unit,
			e.LoggedAt.UTC().Format(time.RFC3339),
			e.Notes,
		})
	}
	writer.Flush()
}
