package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/aabubakar17/meetEasy/internal/api/http"
	"github.com/aabubakar17/meetEasy/internal/config"
)

const searchPage = `{"_embedded":{"events":[
	{"id":"tm-1","name":"Jazz at the Barbican","url":"https://tickets/tm-1",
	 "dates":{"start":{"localDate":"2099-06-01","localTime":"19:30:00"}}}
]}}`

func setupApp(t *testing.T) *App {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchPage))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeAPI
	cfg.DataDir = t.TempDir()
	cfg.HTTP.APIAddr = "127.0.0.1:0"
	cfg.Ticketing.BaseURL = upstream.URL
	cfg.Ticketing.APIKey = "test"
	cfg.Featured.Enabled = false

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})
	return a
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(httpapi.UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApp_SearchMergesBothSources(t *testing.T) {
	a := setupApp(t)
	h := a.Handler()
	require.NotNil(t, h)

	rec := do(t, h, http.MethodPost, "/v1/events", httpapi.EventInput{
		Title:     "Jazz Night",
		Location:  "London",
		Category:  "Music",
		EventDate: "2099-06-02",
		EventTime: "20:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/search?keyword=jazz", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp httpapi.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "internal", resp.Results[0].Source)
	assert.Equal(t, "Jazz Night", resp.Results[0].Name)
	assert.Equal(t, "tm-1", resp.Results[1].ID)
	assert.NotEmpty(t, resp.RequestID)

	rec = do(t, h, http.MethodGet, "/v1/search/popular?kind=keyword", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jazz"`)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	a := setupApp(t)
	h := a.Handler()

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, h, http.MethodGet, "/v1/search?keyword=jazz", nil)
	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meeteasy_search_source_status_total")
}

func TestApp_StartTwice(t *testing.T) {
	a := setupApp(t)
	assert.Error(t, a.Start(context.Background()))
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = "ingest"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestApp_PaymentsModeRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModePayments
	cfg.DataDir = t.TempDir()
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
