package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-valuation/internal/adapter/cache"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlite"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/script"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/contribution"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/dashboard"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/investment"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

const testToken = "test-token-123"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	handler http.Handler
	cache   *cache.ScriptCache
}

func setupServer(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	log := zerolog.Nop()
	clock := func() time.Time { return testNow }
	assetRepo := sqlite.NewAssetRepository(db)
	planRepo := sqlite.NewContributionPlanRepository(db)
	scriptCache := cache.NewScriptCache(time.Hour, time.Hour, nil)
	runner := script.NewRunner(script.Config{Timeout: 2 * time.Second}, log)

	valuationService := valuation.NewValuationService(assetRepo, runner, scriptCache, valuation.Config{TTL: time.Minute, Clock: clock}, log)
	srv := New(Config{
		APIToken:     testToken,
		Log:          log,
		Clock:        clock,
		Valuation:    valuationService,
		Dashboard:    dashboard.NewDashboardService(assetRepo, valuationService, log),
		Investment:   investment.NewInvestmentService(assetRepo, valuationService, clock),
		Contribution: contribution.NewContributionService(planRepo, assetRepo, valuationService, log),
	})

	return &fixture{handler: srv.Handler(), cache: scriptCache}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) createAsset(t *testing.T, name string, strategy map[string]interface{}) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/assets", map[string]interface{}{"name": name, "strategy": strategy})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func TestRoutesRegistered(t *testing.T) {
	f := setupServer(t)
	id := uuid.NewString()

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/api/net-worth"},
		{"POST", "/api/assets"},
		{"GET", "/api/assets/" + id + "/value"},
		{"GET", "/api/assets/" + id + "/growth"},
		{"GET", "/api/assets/" + id + "/profit"},
		{"POST", "/api/assets/" + id + "/investments"},
		{"PUT", "/api/assets/" + id + "/strategy"},
		{"PUT", "/api/assets/" + id + "/manual-value"},
		{"POST", "/api/contribution-plans"},
		{"POST", "/api/contribution-plans/run"},
		{"DELETE", "/api/script-cache"},
		{"POST", "/api/script-cache/invalidate"},
		{"POST", "/api/scripts/run"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, nil)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
			// a 404 from a handler carries a JSON error, the router's own 404 does not
			if rec.Code == http.StatusNotFound {
				assert.True(t, strings.Contains(rec.Body.String(), `"error"`), rec.Body.String())
			}
		})
	}
}

func TestAuth(t *testing.T) {
	f := setupServer(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/net-worth", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/net-worth", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/net-worth", nil)
	req.Header.Set("Authorization", testToken)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssetLifecycle(t *testing.T) {
	f := setupServer(t)
	id := f.createAsset(t, "House", map[string]interface{}{"kind": "manual", "manual_value": 1000})

	rec := f.do(t, http.MethodPost, "/api/assets/"+id+"/investments", map[string]interface{}{
		"quantity":       "2",
		"price_per_unit": "300",
		"date":           "2024-06-01T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/value", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000.0, decode(t, rec)["value"])

	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/profit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "400", decode(t, rec)["profit"])

	rec = f.do(t, http.MethodPut, "/api/assets/"+id+"/manual-value", map[string]interface{}{"value": 1200})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/value", nil)
	assert.Equal(t, 1200.0, decode(t, rec)["value"])

	// 600 invested one year ago, worth 1200
	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/growth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 100, decode(t, rec)["value"], 1e-9)

	rec = f.do(t, http.MethodPut, "/api/assets/"+id+"/strategy", map[string]interface{}{"kind": "FIXED", "growth_rate": 0})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/value", nil)
	assert.Equal(t, 600.0, decode(t, rec)["value"])

	rec = f.do(t, http.MethodPut, "/api/assets/"+id+"/manual-value", map[string]interface{}{"value": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAssetErrors(t *testing.T) {
	f := setupServer(t)
	missing := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown asset", "GET", "/api/assets/" + missing + "/value", nil, http.StatusNotFound},
		{"malformed id", "GET", "/api/assets/abc/value", nil, http.StatusBadRequest},
		{"bad ttl", "GET", "/api/assets/" + missing + "/value?ttl=soon", nil, http.StatusBadRequest},
		{"unknown kind", "POST", "/api/assets", map[string]interface{}{"name": "x", "strategy": map[string]interface{}{"kind": "magic"}}, http.StatusBadRequest},
		{"empty name", "POST", "/api/assets", map[string]interface{}{"name": " ", "strategy": map[string]interface{}{"kind": "fixed", "growth_rate": 1}}, http.StatusBadRequest},
		{"empty script", "POST", "/api/assets", map[string]interface{}{"name": "x", "strategy": map[string]interface{}{"kind": "dynamic"}}, http.StatusUnprocessableEntity},
		{"unknown field", "POST", "/api/assets", map[string]interface{}{"name": "x", "color": "red"}, http.StatusBadRequest},
		{"investment on unknown asset", "POST", "/api/assets/" + missing + "/investments", map[string]interface{}{"quantity": "1", "price_per_unit": "1"}, http.StatusNotFound},
		{"negative quantity", "POST", "/api/assets/" + missing + "/investments", map[string]interface{}{"quantity": "-1", "price_per_unit": "1"}, http.StatusBadRequest},
		{"manual value without value", "PUT", "/api/assets/" + missing + "/manual-value", map[string]interface{}{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestContributionPlans(t *testing.T) {
	f := setupServer(t)
	etf := f.createAsset(t, "ETF", map[string]interface{}{"kind": "dynamic", "script_source": "function getValue() { return 50; }"})
	cash := f.createAsset(t, "Cash", map[string]interface{}{"kind": "fixed", "growth_rate": 0})

	rec := f.do(t, http.MethodPost, "/api/contribution-plans", map[string]interface{}{
		"name":       "Monthly",
		"amount":     "100",
		"frequency":  "monthly",
		"start_date": "2025-01-01",
		"items": []map[string]interface{}{
			{"target_asset_id": etf, "type": "percent", "value": "50", "priority": 1},
			{"target_asset_id": cash, "type": "remainder", "value": "0", "priority": 2},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2025-01-01T00:00:00Z", decode(t, rec)["next_run"])

	rec = f.do(t, http.MethodPost, "/api/contribution-plans/run?as_of=2025-03-15", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode(t, rec)
	assert.Equal(t, 1.0, report["plans"])
	assert.Equal(t, 3.0, report["occurrences"])
	assert.Equal(t, 6.0, report["investments"])
	assert.Empty(t, report["failed"])

	// three units bought at 50
	rec = f.do(t, http.MethodGet, "/api/assets/"+etf+"/value", nil)
	assert.Equal(t, 150.0, decode(t, rec)["value"])
	rec = f.do(t, http.MethodGet, "/api/assets/"+cash+"/value", nil)
	assert.Equal(t, 150.0, decode(t, rec)["value"])

	rec = f.do(t, http.MethodGet, "/api/net-worth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	worth := decode(t, rec)
	assert.Equal(t, "300", worth["total_net_worth"])
	assert.Equal(t, "300", worth["invested"])

	rec = f.do(t, http.MethodPost, "/api/contribution-plans", map[string]interface{}{
		"name":      "Broken",
		"amount":    "100",
		"frequency": "monthly",
		"items":     []map[string]interface{}{{"target_asset_id": etf, "type": "percent", "value": "50"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/contribution-plans/run?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScriptEndpoints(t *testing.T) {
	f := setupServer(t)
	source := "function getValue() { return 12.5; }"
	id := f.createAsset(t, "ETF", map[string]interface{}{"kind": "dynamic", "script_source": source})

	rec := f.do(t, http.MethodGet, "/api/assets/"+id+"/value", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// no units held yet
	assert.Equal(t, 0.0, decode(t, rec)["value"])
	assert.Equal(t, 1, f.cache.Len())

	rec = f.do(t, http.MethodPost, "/api/script-cache/invalidate", source)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.cache.Len())

	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/value?bypass=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.cache.Len())

	rec = f.do(t, http.MethodGet, "/api/assets/"+id+"/value?ttl=2h", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "retention")

	rec = f.do(t, http.MethodDelete, "/api/script-cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.cache.Len())

	rec = f.do(t, http.MethodPost, "/api/script-cache/invalidate", "  ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/scripts/run", "module.exports.getValue = async () => 3 * 7;")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 21.0, decode(t, rec)["value"])
	assert.Equal(t, 0, f.cache.Len())

	rec = f.do(t, http.MethodPost, "/api/scripts/run", "function getValue() { return 'abc'; }")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "finite number")
}
