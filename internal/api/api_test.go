package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/app"
	"github.com/celerix-dev/celerix-crm/internal/csvio"
	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/session"
	"github.com/celerix-dev/celerix-crm/internal/testutil"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/celerix-dev/celerix-crm/pkg/sdk"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestRouter(t *testing.T, kv sdk.Store) (*gin.Engine, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a := app.New(kv, app.Options{Session: session.Options{LoginDelay: -1}})
	require.NoError(t, a.Start(context.Background()))

	h := &Handler{App: a, Now: func() time.Time { return fixedNow }}
	return NewRouter(h, RouterOptions{MetricsPath: "/metrics", Gatherer: prometheus.NewRegistry()}), a
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, email string) {
	t.Helper()
	w := do(r, http.MethodPost, "/api/session", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSession(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))

	w := do(r, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/session", gin.H{"email": "john@crm.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/session", "invalid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	login(t, r, "john@crm.com")
	w = do(r, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[schema.Identity](t, w)
	assert.Equal(t, "2", id.ID)
	assert.Equal(t, schema.RoleSales, id.Role)

	w = do(r, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClients_Visibility(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))

	login(t, r, "admin@crm.com")
	w := do(r, http.MethodPost, "/api/clients", gin.H{"name": "Admin Co", "email": "a@x.com", "tags": []string{"vip"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	login(t, r, "john@crm.com")
	w = do(r, http.MethodPost, "/api/clients", gin.H{"name": "Sales Co", "email": "s@x.com", "tags": []string{"lead"}})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[schema.Client](t, w)
	assert.Equal(t, "2", created.CreatedBy)

	w = do(r, http.MethodGet, "/api/clients", nil)
	list := decode[[]schema.Client](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Sales Co", list[0].Name)

	w = do(r, http.MethodGet, "/api/clients/tags", nil)
	assert.Equal(t, []string{"lead"}, decode[[]string](t, w))

	login(t, r, "admin@crm.com")
	w = do(r, http.MethodGet, "/api/clients?tag=vip", nil)
	list = decode[[]schema.Client](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Admin Co", list[0].Name)

	w = do(r, http.MethodGet, "/api/clients?search=SALES", nil)
	assert.Len(t, decode[[]schema.Client](t, w), 1)

	login(t, r, "sarah@crm.com")
	w = do(r, http.MethodGet, "/api/clients", nil)
	assert.Empty(t, decode[[]schema.Client](t, w))
}

func TestClients_Permissions(t *testing.T) {
	r, a := setupTestRouter(t, engine.NewMemStore(nil, nil))

	login(t, r, "admin@crm.com")
	w := do(r, http.MethodPost, "/api/clients", gin.H{"name": "Acme", "email": "a@acme.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	adminClient := decode[schema.Client](t, w)

	login(t, r, "sarah@crm.com")
	w = do(r, http.MethodPost, "/api/clients", gin.H{"name": "Nope", "email": "n@x.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	login(t, r, "john@crm.com")
	w = do(r, http.MethodPatch, "/api/clients/"+adminClient.ID, gin.H{"name": "Hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodDelete, "/api/clients/"+adminClient.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodGet, "/api/clients/"+adminClient.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/clients", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	login(t, r, "admin@crm.com")
	w = do(r, http.MethodPatch, "/api/clients/"+adminClient.ID, gin.H{"phone": "555"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "555", decode[schema.Client](t, w).Phone)

	w = do(r, http.MethodPatch, "/api/clients/missing", gin.H{"phone": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/api/clients/"+adminClient.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, a.CRM.ListClients())
}

func TestActivities(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))
	login(t, r, "john@crm.com")

	w := do(r, http.MethodPost, "/api/clients", gin.H{"name": "Acme", "email": "a@acme.com"})
	client := decode[schema.Client](t, w)

	w = do(r, http.MethodPost, "/api/activities", gin.H{"title": "Bad", "type": "party", "date": fixedNow})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/activities", gin.H{
		"title": "Kickoff", "type": "meeting", "date": fixedNow.Add(time.Hour), "clientId": client.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	kickoff := decode[schema.Activity](t, w)

	w = do(r, http.MethodPost, "/api/activities", gin.H{"title": "Call back", "type": "call", "date": fixedNow.Add(-time.Hour)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/activities", nil)
	var list []struct {
		schema.Activity
		ClientName string `json:"clientName"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Kickoff", list[0].Title)
	assert.Equal(t, "Acme", list[0].ClientName)
	assert.Equal(t, "No client", list[1].ClientName)

	w = do(r, http.MethodPatch, "/api/activities/"+kickoff.ID, gin.H{"completed": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[schema.Activity](t, w).Completed)

	login(t, r, "sarah@crm.com")
	w = do(r, http.MethodDelete, "/api/activities/"+kickoff.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	login(t, r, "admin@crm.com")
	w = do(r, http.MethodDelete, "/api/activities/"+kickoff.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodDelete, "/api/activities/"+kickoff.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboard(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))
	login(t, r, "john@crm.com")

	do(r, http.MethodPost, "/api/clients", gin.H{"name": "Acme", "email": "a@acme.com", "tags": []string{"vip"}})
	do(r, http.MethodPost, "/api/activities", gin.H{"title": "Later", "type": "email", "date": fixedNow.Add(24 * time.Hour)})
	do(r, http.MethodPost, "/api/activities", gin.H{"title": "Done", "type": "call", "date": fixedNow.Add(time.Hour), "completed": true})

	w := do(r, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	s := decode[dashboard.Summary](t, w)
	assert.Equal(t, 1, s.TotalClients)
	assert.Equal(t, 2, s.TotalActivities)
	assert.Equal(t, 1, s.Completed)
	require.Len(t, s.Upcoming, 1)
	assert.Equal(t, "Later", s.Upcoming[0].Title)
	assert.Equal(t, 1, s.ClientsByTag["vip"])

	login(t, r, "sarah@crm.com")
	w = do(r, http.MethodGet, "/api/dashboard", nil)
	s = decode[dashboard.Summary](t, w)
	assert.Zero(t, s.TotalClients)
	assert.Zero(t, s.TotalActivities)
}

func TestCSVExportImport(t *testing.T) {
	r, a := setupTestRouter(t, engine.NewMemStore(nil, nil))
	login(t, r, "john@crm.com")

	csv := "Name,Company,Email,Phone,Address,Notes,Tags,Created At\n" +
		"Jane Doe,Acme,jane@acme.com,555,,,\"vip, lead\",2020-01-01\n" +
		"Bob,,bob@b.com,,,,,\n"
	w := do(r, http.MethodPost, "/api/clients/import", csv)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["imported"])

	clients := a.CRM.ListClients()
	require.Len(t, clients, 2)
	assert.Equal(t, []string{"vip", "lead"}, clients[0].Tags)
	assert.Equal(t, "2", clients[0].CreatedBy)

	w = do(r, http.MethodGet, "/api/clients/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clients-2024-03-10.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Company,Email,Phone,Address,Notes,Tags,Created At", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Jane Doe,Acme,jane@acme.com"))

	w = do(r, http.MethodPost, "/api/clients/import", "Name,Email\nCarol,c@c.com\n,missing@x.com\nDan,d@d.com\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Imported int                `json:"imported"`
		Skipped  []csvio.SkippedRow `json:"skipped"`
	}](t, w)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, []csvio.SkippedRow{{Line: 3, Field: "Name"}}, res.Skipped)
	assert.Len(t, a.CRM.ListClients(), 4)

	w = do(r, http.MethodPost, "/api/clients/import", "Name,Email\nAc\"me,a@b.com\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	login(t, r, "sarah@crm.com")
	w = do(r, http.MethodPost, "/api/clients/import", csv)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTheme(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))

	w := do(r, http.MethodGet, "/api/theme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["dark"])

	w = do(r, http.MethodPut, "/api/theme", gin.H{"dark": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/theme", nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["dark"])

	w = do(r, http.MethodPut, "/api/theme", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPersistenceFailureAndRetry(t *testing.T) {
	kv := testutil.NewFaultyStore()
	r, a := setupTestRouter(t, kv)
	login(t, r, "john@crm.com")

	kv.FailWrites(true)
	w := do(r, http.MethodPost, "/api/clients", gin.H{"name": "Acme", "email": "a@acme.com"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, []any{"clients"}, decode[map[string]any](t, w)["pending"])

	// The change is live even though it is not stored.
	assert.Len(t, a.CRM.ListClients(), 1)

	w = do(r, http.MethodPost, "/api/persistence/retry", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	kv.FailWrites(false)
	w = do(r, http.MethodPost, "/api/persistence/retry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode[map[string]any](t, w)["pending"])

	stored, err := sdk.Get[[]schema.Client](context.Background(), kv, sdk.KeyClients)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRoutesAndMetrics(t *testing.T) {
	r, _ := setupTestRouter(t, engine.NewMemStore(nil, nil))

	w := do(r, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodOptions, "/api/clients", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
