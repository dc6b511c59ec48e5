package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/crm-records/internal/maintenance"
	"github.com/beekhof/crm-records/internal/records"
	"github.com/beekhof/crm-records/internal/store"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.NewMemStore(nil, nil)
	h := &Handler{
		Clients: records.NewClientService(s),
		Events:  records.NewEventService(s),
		Cleaner: maintenance.NewCleaner(s),
	}
	return NewRouter(h), h
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClientLifecycle(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(r, http.MethodPost, "/clients", map[string]any{"name": "Acme", "email": "hi@acme.test", "status": "active"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = do(r, http.MethodGet, "/clients/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got records.Client
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Acme", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	w = do(r, http.MethodPatch, "/clients/"+created.ID, map[string]any{"phone": "555-0100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodDelete, "/clients/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/clients/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(r, http.MethodPost, "/clients", map[string]any{"name": "No Email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/clients/missing", map[string]any{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "userId is required")

	w = do(r, http.MethodGet, "/events?userId=u1&from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchClients(t *testing.T) {
	r, h := setupTestRouter(t)
	ctx := context.Background()
	for _, name := range []string{"Acme", "Acorn", "Beta", "ac lower"} {
		_, err := h.Clients.Create(ctx, records.Client{Name: name, Email: "x@y.test"})
		require.NoError(t, err)
	}

	w := do(r, http.MethodGet, "/clients/search?q=Ac", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found []records.Client
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	names := make([]string, 0, len(found))
	for _, c := range found {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"Acme", "Acorn"}, names)

	w = do(r, http.MethodGet, "/clients/search?q=Zed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestEventsRoutes(t *testing.T) {
	r, h := setupTestRouter(t)
	ctx := context.Background()
	clientID, err := h.Clients.Create(ctx, records.Client{Name: "Acme", Email: "hi@acme.test"})
	require.NoError(t, err)

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	w := do(r, http.MethodPost, "/events", map[string]any{
		"userId":   "u1",
		"clientId": clientID,
		"title":    "Kickoff",
		"start":    start.Format(time.RFC3339),
		"end":      start.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(r, http.MethodGet, "/clients/"+clientID+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byClient []records.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byClient))
	require.Len(t, byClient, 1)
	assert.Equal(t, "Kickoff", byClient[0].Title)

	w = do(r, http.MethodGet, "/events?userId=u1&from=2025-06-10T00:00:00Z&to=2025-06-11T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byUser []records.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byUser))
	assert.Len(t, byUser, 1)

	w = do(r, http.MethodPatch, "/events/"+created.ID, map[string]any{"title": "Kickoff v2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got records.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Kickoff v2", got.Title)

	w = do(r, http.MethodPatch, "/events/"+created.ID, map[string]any{"end": start.Add(-time.Hour).Format(time.RFC3339)})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(r, http.MethodDelete, "/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/events/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntegrity(t *testing.T) {
	r, h := setupTestRouter(t)
	_, err := h.Clients.Create(context.Background(), records.Client{Name: "Acme", Email: "hi@acme.test"})
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/maintenance/integrity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issues":[]}`, w.Body.String())
}
