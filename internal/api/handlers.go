// Package api exposes HTTP handlers for the activity tracker.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jtiemann/activity-tracker/internal/auth"
	"github.com/jtiemann/activity-tracker/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/logs", h.logs)
	mux.HandleFunc("/v1/logs/", h.logByID)
	mux.HandleFunc("/v1/stats", h.stats)
	mux.HandleFunc("/v1/streak", h.streak)
	mux.HandleFunc("/v1/goals", h.goals)
	mux.HandleFunc("/v1/goals/", h.goalByID)
	mux.HandleFunc("/v1/achievements", h.achievements)
	mux.HandleFunc("/v1/achievements/catalog", h.achievementCatalog)
	mux.HandleFunc("/v1/export/logs.csv", h.exportLogsCSV)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// caller resolves the authenticated user and enforces the required scope.
// Writers implicitly hold read access.
func caller(w http.ResponseWriter, r *http.Request, scope string) (int64, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return 0, false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopeTrackerRead && claims.HasScope(auth.ScopeTrackerWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return 0, false
	}
	return claims.UserID, true
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), userID, domain.CreateActivityInput{
		Name:     req.Name,
		Unit:     req.Unit,
		Category: req.Category,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "/v1/activities/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		userID, ok := caller(w, r, auth.ScopeTrackerRead)
		if !ok {
			return
		}
		activity, err := h.service.GetActivity(r.Context(), userID, id)
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityView(*activity))
	case http.MethodPut:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		var req ActivityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		activity, err := h.service.UpdateActivity(r.Context(), userID, id, domain.CreateActivityInput{
			Name:     req.Name,
			Unit:     req.Unit,
			Category: req.Category,
			IsPublic: req.IsPublic,
		})
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityView(activity))
	case http.MethodDelete:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		if err := h.service.DeleteActivity(r.Context(), userID, id); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createLog(w, r)
	case http.MethodGet:
		h.listLogs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerWrite)
	if !ok {
		return
	}

	var req CreateLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	entry, awards, err := h.service.CreateEntry(r.Context(), userID, domain.CreateEntryInput{
		ActivityID: req.ActivityID,
		Count:      req.Count,
		LoggedAt:   req.LoggedAt,
		Notes:      req.Notes,
	})
	if err != nil && entry.ID == 0 {
		mapError(w, err)
		return
	}

	// The entry is committed even if evaluation failed partway; awards already
	// persisted are returned and the rest are retried on the next log.
	resp := LogResponse{Log: toEntryView(entry)}
	for _, a := range awards {
		resp.NewAchievements = append(resp.NewAchievements, toAwardView(a))
	}
	if err != nil {
		resp.EvaluationError = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}
	activityID, ok := queryID(w, r, "activity_id")
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}

	entries, err := h.service.ListEntries(r.Context(), userID, activityID, limit, (page-1)*limit)
	if err != nil {
		mapError(w, err)
		return
	}

	items := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, toEntryView(e))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) logByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "/v1/logs/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		var req UpdateLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		entry, awards, err := h.service.UpdateEntry(r.Context(), userID, id, req.Count, req.LoggedAt, req.Notes)
		if err != nil && entry.ID == 0 {
			mapError(w, err)
			return
		}
		resp := LogResponse{Log: toEntryView(entry)}
		for _, a := range awards {
			resp.NewAchievements = append(resp.NewAchievements, toAwardView(a))
		}
		if err != nil {
			resp.EvaluationError = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		if err := h.service.DeleteEntry(r.Context(), userID, id); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}
	activityID, ok := queryID(w, r, "activity_id")
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID, activityID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsView{
		Today: stats.Today,
		Week:  stats.Week,
		Month: stats.Month,
		Year:  stats.Year,
		Unit:  stats.Unit,
	})
}

func (h *Handler) streak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}
	activityID, ok := queryID(w, r, "activity_id")
	if !ok {
		return
	}

	streak, err := h.service.LongestStreak(r.Context(), userID, activityID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"longest_streak": streak})
}

func (h *Handler) goals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createGoal(w, r)
	case http.MethodGet:
		h.listGoals(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerWrite)
	if !ok {
		return
	}

	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	goal, err := h.service.CreateGoal(r.Context(), userID, req.toInput())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(goal))
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}

	goals, err := h.service.ListGoals(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}

	items := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		items = append(items, toGoalView(g))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) goalByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/goals/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing goal id")
		return
	}

	if id, found := strings.CutSuffix(rest, "/progress"); found {
		h.goalProgress(w, r, id)
		return
	}

	goalID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid goal id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		var req GoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		goal, err := h.service.UpdateGoal(r.Context(), userID, goalID, req.toInput())
		if err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGoalView(goal))
	case http.MethodDelete:
		userID, ok := caller(w, r, auth.ScopeTrackerWrite)
		if !ok {
			return
		}
		if err := h.service.DeleteGoal(r.Context(), userID, goalID); err != nil {
			mapError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) goalProgress(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}
	goalID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid goal id")
		return
	}

	progress, err := h.service.GoalProgress(r.Context(), userID, goalID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalProgressView(progress))
}

func (h *Handler) achievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := caller(w, r, auth.ScopeTrackerRead)
	if !ok {
		return
	}

	awards, err := h.service.AwardedAchievements(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}

	items := make([]AwardView, 0, len(awards))
	for _, a := range awards {
		items = append(items, toAwardView(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) achievementCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := caller(w, r, auth.ScopeTrackerRead); !ok {
		return
	}

	defs, err := h.service.AchievementCatalog(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	items := make([]DefinitionView, 0, len(defs))
	for _, d := range defs {
		items = append(items, DefinitionView{
			ID:          d.ID,
			Category:    string(d.Category),
			Threshold:   d.Threshold,
			Name:        d.Name,
			Description: d.Description,
			Icon:        d.Icon,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing id")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}

func queryID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing "+key+" parameter")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid "+key+" parameter")
		return 0, false
	}
	return id, true
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
