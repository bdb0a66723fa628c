package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jtiemann/activity-tracker/internal/auth"
	"github.com/jtiemann/activity-tracker/internal/domain"
	"github.com/jtiemann/activity-tracker/internal/persistence/memory"
)

var testClock = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	evaluator := domain.NewEvaluator(store)
	service := domain.NewService(store, evaluator, domain.WithClock(func() time.Time { return testClock }))
	return NewHandler(service), store
}

func authenticated(r *http.Request, userID int64, scopes ...string) *http.Request {
	scopeSet := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		scopeSet[s] = struct{}{}
	}
	claims := &auth.Claims{
		UserID:    userID,
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func createTestActivity(t *testing.T, handler *Handler, userID int64) ActivityView {
	t.Helper()
	body := `{"name":"Push-ups","unit":"reps"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(body))
	req = authenticated(req, userID, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var view ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return view
}

func TestCreateActivity(t *testing.T) {
	handler, _ := newTestHandler(t)
	view := createTestActivity(t, handler, 1)

	if view.ID == 0 {
		t.Fatal("expected assigned activity id")
	}
	if view.Name != "Push-ups" || view.Unit != "reps" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestCreateActivityValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(`{"unit":"reps"}`))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	var errBody map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody["type"] != "validation_failed" {
		t.Fatalf("unexpected error type %q", errBody["type"])
	}
}

func TestCreateActivityRequiresWriteScope(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/activities", strings.NewReader(`{"name":"Run","unit":"km"}`))
	req = authenticated(req, 1, auth.ScopeTrackerRead)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestListActivitiesAcceptsWriteScopeForRead(t *testing.T) {
	handler, _ := newTestHandler(t)
	createTestActivity(t, handler, 1)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req = authenticated(req, 1, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.activities(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	rr := httptest.NewRecorder()
	handler.activities(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestCreateLogReturnsNewAchievements(t *testing.T) {
	handler, store := newTestHandler(t)
	store.SeedCatalog([]domain.AchievementDefinition{
		{ID: 1, Category: domain.CategoryTotalCount, Threshold: 100, Name: "Century", Description: "100 total", Icon: "medal"},
	})
	activity := createTestActivity(t, handler, 1)

	body := `{"activity_id":` + jsonInt(activity.ID) + `,"count":150}`
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.logs(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp LogResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Log.ID == 0 {
		t.Fatal("expected assigned log id")
	}
	if !resp.Log.LoggedAt.Equal(testClock) {
		t.Fatalf("expected logged_at %v got %v", testClock, resp.Log.LoggedAt)
	}
	if len(resp.NewAchievements) != 1 {
		t.Fatalf("expected 1 new achievement got %d", len(resp.NewAchievements))
	}
	if resp.NewAchievements[0].Name != "Century" {
		t.Fatalf("unexpected achievement %+v", resp.NewAchievements[0])
	}
	if resp.EvaluationError != "" {
		t.Fatalf("unexpected evaluation error %q", resp.EvaluationError)
	}
}

func TestCreateLogForForeignActivity(t *testing.T) {
	handler, _ := newTestHandler(t)
	activity := createTestActivity(t, handler, 1)

	body := `{"activity_id":` + jsonInt(activity.ID) + `,"count":5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
	req = authenticated(req, 2, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.logs(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStatsRequiresActivityID(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)

	rr := httptest.NewRecorder()
	handler.stats(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestStatsUnknownActivity(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?activity_id=999", nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)

	rr := httptest.NewRecorder()
	handler.stats(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStreakEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	activity := createTestActivity(t, handler, 1)

	for day := 10; day <= 12; day++ {
		at := time.Date(2025, time.June, day, 8, 0, 0, 0, time.UTC).Format(time.RFC3339)
		body := `{"activity_id":` + jsonInt(activity.ID) + `,"count":1,"logged_at":"` + at + `"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
		req = authenticated(req, 1, auth.ScopeTrackerWrite)
		rr := httptest.NewRecorder()
		handler.logs(rr, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/streak?activity_id="+jsonInt(activity.ID), nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)

	rr := httptest.NewRecorder()
	handler.streak(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["longest_streak"] != 3 {
		t.Fatalf("expected streak 3 got %d", resp["longest_streak"])
	}
}

func TestGoalProgressRoute(t *testing.T) {
	handler, _ := newTestHandler(t)
	activity := createTestActivity(t, handler, 1)

	goalBody := `{"activity_id":` + jsonInt(activity.ID) + `,"target_count":10,"period_type":"daily"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/goals", strings.NewReader(goalBody))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)
	rr := httptest.NewRecorder()
	handler.goals(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var goal GoalView
	if err := json.Unmarshal(rr.Body.Bytes(), &goal); err != nil {
		t.Fatalf("failed to decode goal: %v", err)
	}

	logBody := `{"activity_id":` + jsonInt(activity.ID) + `,"count":4}`
	req = httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(logBody))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)
	rr = httptest.NewRecorder()
	handler.logs(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	req = httptest.NewRequest(http.MethodGet, "/v1/goals/"+jsonInt(goal.ID)+"/progress", nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var progress GoalProgressView
	if err := json.Unmarshal(rr.Body.Bytes(), &progress); err != nil {
		t.Fatalf("failed to decode progress: %v", err)
	}
	if progress.CurrentCount != 4 {
		t.Fatalf("expected current 4 got %f", progress.CurrentCount)
	}
	if progress.ProgressPercent != 40 {
		t.Fatalf("expected 40%% got %d", progress.ProgressPercent)
	}
}

func TestGoalValidationRequiresBothDates(t *testing.T) {
	handler, _ := newTestHandler(t)
	activity := createTestActivity(t, handler, 1)

	body := `{"activity_id":` + jsonInt(activity.ID) + `,"target_count":10,"period_type":"daily","start_date":"2025-06-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/goals", strings.NewReader(body))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)

	rr := httptest.NewRecorder()
	handler.goals(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAchievementCatalogEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	store.SeedCatalog([]domain.AchievementDefinition{
		{ID: 1, Category: domain.CategoryStreak, Threshold: 7, Name: "Week Warrior", Description: "7 day streak", Icon: "flame"},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/achievements/catalog", nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)

	rr := httptest.NewRecorder()
	handler.achievementCatalog(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var defs []DefinitionView
	if err := json.Unmarshal(rr.Body.Bytes(), &defs); err != nil {
		t.Fatalf("failed to decode catalog: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "Week Warrior" {
		t.Fatalf("unexpected catalog %+v", defs)
	}
}

func TestExportLogsCSV(t *testing.T) {
	handler, _ := newTestHandler(t)
	activity := createTestActivity(t, handler, 1)

	body := `{"activity_id":` + jsonInt(activity.ID) + `,"count":12,"notes":"morning set"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
	req = authenticated(req, 1, auth.ScopeTrackerWrite)
	rr := httptest.NewRecorder()
	handler.logs(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/export/logs.csv", nil)
	req = authenticated(req, 1, auth.ScopeTrackerRead)
	rr = httptest.NewRecorder()
	handler.exportLogsCSV(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != "Activity,Count,Unit,Date,Notes" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Push-ups,12,reps,") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
