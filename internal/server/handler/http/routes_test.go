package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/models"
	"github.com/atinyakov/GlycoKeeper/internal/service"
)

type tokenAuth map[string]string

func (a tokenAuth) Authenticate(token string) (string, error) {
	if id, ok := a[token]; ok {
		return id, nil
	}
	return "", service.ErrInvalidToken
}

type fakeGlycemia struct {
	entries  []models.GlycemiaEntry
	imported []models.NewEntry
	period   chart.Period
	userID   string
}

func (f *fakeGlycemia) Create(_ context.Context, userID string, in models.NewEntry) (*models.GlycemiaEntry, error) {
	f.userID = userID
	e := models.GlycemiaEntry{ID: "e-new", Value: in.Value, MeasuredAt: in.MeasuredAt, Source: models.SourceManual}
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeGlycemia) Import(_ context.Context, userID string, in []models.NewEntry) (int, error) {
	f.imported = append(f.imported, in...)
	return len(in), nil
}

func (f *fakeGlycemia) List(_ context.Context, userID string, p chart.Period) ([]models.GlycemiaEntry, error) {
	f.userID, f.period = userID, p
	return f.entries, nil
}

func (f *fakeGlycemia) Latest(context.Context, string) (*models.GlycemiaEntry, error) {
	if len(f.entries) == 0 {
		return nil, models.ErrNotFound
	}
	return &f.entries[len(f.entries)-1], nil
}

func (f *fakeGlycemia) Stats(_ context.Context, _ string, p chart.Period) (*models.GlycemiaStats, error) {
	f.period = p
	return &models.GlycemiaStats{Period: string(p), Count: len(f.entries)}, nil
}

type fakeDashboard struct {
	snaps map[models.Module]json.RawMessage
}

func (f *fakeDashboard) Module(_ context.Context, _ string, m models.Module) (*models.ModuleSnapshot, error) {
	if !m.Valid() {
		return nil, service.ErrUnknownModule
	}
	data, ok := f.snaps[m]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.ModuleSnapshot{Module: m, Data: data}, nil
}

func (f *fakeDashboard) PutModule(_ context.Context, _ string, m models.Module, data json.RawMessage) (*models.ModuleSnapshot, error) {
	if m == models.ModuleGlucose {
		return nil, service.ErrReadOnlyModule
	}
	f.snaps[m] = data
	return &models.ModuleSnapshot{Module: m, Data: data}, nil
}

func (f *fakeDashboard) ClearModule(_ context.Context, _ string, m models.Module) error {
	delete(f.snaps, m)
	return nil
}

type fakeProfile struct {
	contacts []models.EmergencyContact
}

func (f *fakeProfile) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	return &models.Profile{UserID: userID, TargetMin: 70, TargetMax: 180}, nil
}

func (f *fakeProfile) UpdateProfile(_ context.Context, userID string, p models.Profile) (*models.Profile, error) {
	p.UserID = userID
	return &p, nil
}

func (f *fakeProfile) Contacts(context.Context, string) ([]models.EmergencyContact, error) {
	return f.contacts, nil
}

func (f *fakeProfile) AddContact(_ context.Context, _ string, c models.EmergencyContact) (*models.EmergencyContact, error) {
	c.ID = "c1"
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func (f *fakeProfile) DeleteContact(_ context.Context, _ string, id string) error {
	if id != "c1" {
		return models.ErrNotFound
	}
	f.contacts = nil
	return nil
}

func (f *fakeProfile) Doctor(context.Context, string) (*models.Doctor, error) {
	return nil, models.ErrNotFound
}

func (f *fakeProfile) UpdateDoctor(_ context.Context, _ string, d models.Doctor) (*models.Doctor, error) {
	return &d, nil
}

type fixture struct {
	router   http.Handler
	glycemia *fakeGlycemia
}

func newFixture(t *testing.T, opts RouterOptions) fixture {
	t.Helper()
	g := &fakeGlycemia{}
	h := Handlers{
		Auth:      &AuthHandler{AuthService: &fakeAuthService{resp: okSession}},
		Glycemia:  &GlycemiaHandler{GlycemiaService: g},
		Dashboard: &DashboardHandler{DashboardService: &fakeDashboard{snaps: map[models.Module]json.RawMessage{}}},
		Profile:   &ProfileHandler{ProfileService: &fakeProfile{}},
	}
	return fixture{
		router:   NewRouter(h, tokenAuth{"tok": "alice"}, opts, zap.NewNop()),
		glycemia: g,
	}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	for _, path := range []string{"/glycemia", "/glycemia/latest", "/dashboard/glucose", "/users/me", "/users/me/doctor"} {
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Glycemia(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodGet, "/glycemia/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message"`)

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC).Format(time.RFC3339)
	rec = f.do(http.MethodPost, "/glycemia", `{"value":112,"measured_at":"`+at+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "alice", f.glycemia.userID)

	rec = f.do(http.MethodPost, "/glycemia", `{"value":5,"measured_at":"`+at+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/glycemia?period=week", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chart.Week, f.glycemia.period)
	var entries []models.GlycemiaEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	rec = f.do(http.MethodGet, "/glycemia?period=year", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/glycemia/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chart.Day, f.glycemia.period)

	rec = f.do(http.MethodPost, "/glycemia/cgm", `{"entries":[{"value":100,"measured_at":"`+at+`"},{"value":104,"measured_at":"`+at+`"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":2}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/glycemia/cgm", `{"entries":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_EmptyListIsArray(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	rec := f.do(http.MethodGet, "/glycemia", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_Dashboard(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/dashboard/weather", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/dashboard/medication", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPut, "/dashboard/glucose", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/dashboard/medication", `{oops`).Code)

	rec := f.do(http.MethodPut, "/dashboard/medication", `{"next":"insulin 18:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/dashboard/medication", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.ModuleSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.JSONEq(t, `{"next":"insulin 18:00"}`, string(snap.Data))

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/dashboard/medication", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/dashboard/medication", "").Code)
}

func TestRouter_Profile(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodGet, "/users/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"alice"`)

	rec = f.do(http.MethodPut, "/users/me", `{"first_name":"Alice","diabetes_type":"type1","target_min":80,"target_max":160}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPut, "/users/me", `{"diabetes_type":"type9"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/users/me/contacts", `{"name":"Mum","phone":"+33 6"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/users/me/contacts", `{"name":"NoPhone"}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/users/me/contacts/c1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/users/me/contacts/zz", "").Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/users/me/doctor", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPut, "/users/me/doctor", `{"name":"Dr Grey","email":"grey@clinic.org"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/users/me/doctor", `{"name":"Dr Grey","email":"nope"}`).Code)
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	f := newFixture(t, RouterOptions{AuthRateLimit: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{service.ErrUnknownModule, http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrInvalidToken, http.StatusUnauthorized},
		{service.ErrReadOnlyModule, http.StatusMethodNotAllowed},
		{service.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
		assert.NotContains(t, rec.Body.String(), "boom")
	}
}
