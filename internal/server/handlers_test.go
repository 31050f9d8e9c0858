package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperius/imperius/internal/abtest"
	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/server"
	"github.com/imperius/imperius/internal/store"
)

type testEnv struct {
	store  *store.SQLiteStore
	server *server.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	abtests := abtest.NewService(s, nil, abtest.WithDraw(func() float64 { return 10 }))
	scores := scoring.NewAccumulator(s, nil)

	srv := server.New(s, abtests, scores, nil, server.Options{
		Host:  "127.0.0.1",
		Port:  0,
		Token: "test-token",
	})

	return &testEnv{store: s, server: srv}
}

func (e *testEnv) createHeroTest(t *testing.T) {
	t.Helper()

	_, err := e.store.CreateTest(context.Background(), "hero", []store.Variant{
		{Name: "control", Weight: 50},
		{Name: "bold", Weight: 50},
	})
	require.NoError(t, err)
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["tests_count"])
}

func TestAssignment_SameVariantOnRepeat(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	payload := map[string]string{"sessionId": "sess-1", "testName": "hero"}

	rec := env.post(t, "/api/analytics/ab-tests/assignment", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody(t, rec)["assignment"].(map[string]any)
	assert.Equal(t, "control", first["variant"])

	rec = env.post(t, "/api/analytics/ab-tests/assignment", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody(t, rec)["assignment"].(map[string]any)
	assert.Equal(t, first["variant"], second["variant"])
}

func TestAssignment_UnknownTest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/analytics/ab-tests/assignment",
		map[string]string{"sessionId": "sess-1", "testName": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignment_BadBody(t *testing.T) {
	env := newTestEnv(t)

	// Missing testName fails validation
	rec := env.post(t, "/api/analytics/ab-tests/assignment",
		map[string]string{"sessionId": "sess-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/ab-tests/assignment",
		bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestAssign_ForcedVariantDoesNotOverride(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.post(t, "/api/analytics/ab-tests/assignment",
		map[string]string{"sessionId": "sess-1", "testName": "hero"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/api/analytics/ab-tests/assign",
		map[string]string{"sessionId": "sess-1", "testName": "hero", "variant": "bold"})
	require.Equal(t, http.StatusOK, rec.Code)
	assignment := decodeBody(t, rec)["assignment"].(map[string]any)
	assert.Equal(t, "control", assignment["variant"])
}

func TestAssign_UnknownVariant(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.post(t, "/api/analytics/ab-tests/assign",
		map[string]string{"sessionId": "sess-1", "testName": "hero", "variant": "nonexistent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversion(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.post(t, "/api/analytics/ab-tests/assignment",
		map[string]string{"sessionId": "sess-1", "testName": "hero"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/api/analytics/ab-tests/conversion",
		map[string]any{"sessionId": "sess-1", "testName": "hero", "variant": "control"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	require.NotNil(t, body["pageEvent"])
	pageEvent := body["pageEvent"].(map[string]any)
	assert.Equal(t, "conversion", pageEvent["eventType"])
	assert.Equal(t, float64(1), pageEvent["value"])
	require.NotNil(t, body["leadAction"])
	leadAction := body["leadAction"].(map[string]any)
	assert.Equal(t, "conversion", leadAction["actionType"])

	samples, err := env.store.GetVariantSamples(context.Background(), "hero")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 1, samples[0].Conversions)
}

func TestConversion_UnknownVariant(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.post(t, "/api/analytics/ab-tests/conversion",
		map[string]any{"sessionId": "sess-1", "testName": "hero", "variant": "nonexistent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadAction(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/analytics/lead-action",
		map[string]string{"sessionId": "sess-1", "actionType": "cta_click", "actionValue": "hero-cta"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	action := body["action"].(map[string]any)
	assert.Equal(t, float64(12), action["scoreImpact"])

	score, err := env.store.GetLeadScore(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 12, score.TotalScore)
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	require.NoError(t, env.store.RecordPageEvent(context.Background(), &store.PageEvent{
		SessionID: "sess-1", EventType: "conversion", TestName: "hero", Variant: "control", Value: 1,
	}))

	rec := env.get(t, "/api/analytics/ab-tests/analytics?testName=hero")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	analytics := body["analytics"].(map[string]any)
	assert.Equal(t, float64(1), analytics["sessions"])
	assert.Equal(t, float64(1), analytics["conversions"])
}

func TestAnalytics_CountsNonConvertingSessions(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.post(t, "/api/analytics/ab-tests/assignment",
		map[string]string{"sessionId": "sess-1", "testName": "hero"})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []map[string]string{
		{"sessionId": "sess-1", "actionType": "page_view", "actionValue": "/"},
		{"sessionId": "sess-1", "actionType": "cta_click", "actionValue": "hero-cta"},
		{"sessionId": "sess-1", "actionType": "scroll_50", "actionValue": "50"},
	} {
		rec = env.post(t, "/api/analytics/lead-action", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = env.get(t, "/api/analytics/ab-tests/analytics?testName=hero")
	require.Equal(t, http.StatusOK, rec.Code)

	analytics := decodeBody(t, rec)["analytics"].(map[string]any)
	assert.Equal(t, float64(1), analytics["sessions"])
	assert.Equal(t, float64(0), analytics["conversions"])
	elements := analytics["topElements"].([]any)
	require.Len(t, elements, 1)
	assert.Equal(t, "hero-cta", elements[0].(map[string]any)["element"])
}

func TestAnalytics_BadTimeframe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/analytics/ab-tests/analytics?testName=hero&timeframe=year")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.get(t, "/api/analytics/ab-tests/analytics")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignificance_InsufficientData(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)

	rec := env.get(t, "/api/analytics/ab-tests/significance/hero")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	significance := body["significance"].(map[string]any)
	assert.Equal(t, "insufficient_data", significance["status"])
}

func TestSignificance_WithTraffic(t *testing.T) {
	env := newTestEnv(t)
	env.createHeroTest(t)
	ctx := context.Background()

	// Seed enough traffic for a z-test on both arms
	for i := 0; i < 40; i++ {
		sess := "c" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		_, _, err := env.store.GetOrCreateAssignment(ctx, sess, "hero", "control")
		require.NoError(t, err)
		if i < 4 {
			require.NoError(t, env.store.RecordPageEvent(ctx, &store.PageEvent{
				SessionID: sess, EventType: "conversion", TestName: "hero", Variant: "control", Value: 1,
			}))
		}
	}
	for i := 0; i < 40; i++ {
		sess := "b" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		_, _, err := env.store.GetOrCreateAssignment(ctx, sess, "hero", "bold")
		require.NoError(t, err)
		if i < 20 {
			require.NoError(t, env.store.RecordPageEvent(ctx, &store.PageEvent{
				SessionID: sess, EventType: "conversion", TestName: "hero", Variant: "bold", Value: 1,
			}))
		}
	}

	rec := env.get(t, "/api/analytics/ab-tests/significance/hero")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	significance := body["significance"].(map[string]any)
	assert.Equal(t, "ok", significance["status"])
	assert.NotNil(t, significance["results"])
}

func TestSignificance_UnknownTest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/analytics/ab-tests/significance/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitlist(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/waitlist",
		map[string]string{"email": "ana@acme.com", "sessionId": "sess-1", "source": "hero"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sess-1", body["sessionId"])

	// Signup scores an email_fill with the business bonus
	score, err := env.store.GetLeadScore(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 40, score.TotalScore)
}

func TestWaitlist_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/waitlist", map[string]string{"email": "ana@acme.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/api/waitlist", map[string]string{"email": "ana@acme.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["duplicate"])
}

func TestWaitlist_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/waitlist", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWaitlist_GeneratesSessionID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/waitlist", map[string]string{"email": "solo@acme.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["sessionId"])
}

func TestDashboardAuth(t *testing.T) {
	env := newTestEnv(t)

	// No token
	rec := env.get(t, "/dashboard")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong query token
	rec = env.get(t, "/dashboard?token=wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid query token exchanges for a cookie and redirects
	rec = env.get(t, "/dashboard?token=test-token")
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "imp_token", cookies[0].Name)
	assert.Equal(t, "test-token", cookies[0].Value)

	// Cookie grants access
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestDashboardLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/dashboard?token=test-token")
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/dashboard?logout=1", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusFound, rec2.Code)
	assert.Equal(t, "/dashboard", rec2.Header().Get("Location"))

	cleared := rec2.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestTrackerJS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/imperius.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "imp_sid")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/waitlist")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.post(t, "/api/analytics/ab-tests/analytics", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/waitlist", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
