package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/catalog"
	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/database"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/identity"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testTokens = map[string]string{
	"cust-token":    "cust-1",
	"admin-token":   "admin-1",
	"tech1-token":   "tech-user-1",
	"tech2-token":   "tech-user-2",
	"pending-token": "tech-user-3",
	"ghost-token":   "nobody",
}

func newTestEndpoints(t *testing.T) (*Endpoints, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: "cust-1", Name: "Asha", Phone: "+91100", Role: models.RoleCustomer},
		{ID: "admin-1", Name: "Ops", Role: models.RoleAdmin},
		{ID: "tech-user-1", Name: "Ravi", Role: models.RoleTechnician},
		{ID: "tech-user-2", Name: "Meena", Role: models.RoleTechnician},
		{ID: "tech-user-3", Name: "Karan", Role: models.RoleCustomer},
	} {
		require.NoError(t, db.UpsertUser(ctx, u))
	}
	for _, tech := range []*models.Technician{
		{ID: "tech-1", UserID: "tech-user-1", Name: "Ravi", Category: "appliance", Status: models.TechnicianApproved},
		{ID: "tech-2", UserID: "tech-user-2", Name: "Meena", Category: "appliance", Status: models.TechnicianApproved},
		{ID: "tech-3", UserID: "tech-user-3", Name: "Karan", Category: "appliance", Status: models.TechnicianPending},
	} {
		require.NoError(t, db.CreateTechnician(ctx, tech))
	}

	cat, err := catalog.New([]*models.Service{{
		ID:       "ac-repair",
		Name:     "AC Repair",
		Category: "appliance",
		IsActive: true,
		Packages: []models.ServicePackage{
			{Tier: "basic", Price: 349},
			{Tier: "standard", Price: 499},
			{Tier: "premium", Price: 899},
		},
	}})
	require.NoError(t, err)

	auth := identity.NewAuthenticator(identity.NewStaticVerifier(testTokens), db, &logger)
	bookings := service.NewBookingService(db, db, cat, service.Policy{}, &logger)
	techs := service.NewTechnicianService(db, nil, &logger)
	users := service.NewUserService(db, db, &logger)
	return NewEndpoints(auth, bookings, techs, users, cat, &logger), db
}

type apiClient struct {
	t  *testing.T
	ts *httptest.Server
}

func newTestAPI(t *testing.T, cfg config.APIConfig) (*apiClient, *database.DB) {
	t.Helper()
	endpoints, db := newTestEndpoints(t)
	srv := NewHTTPServer(cfg, endpoints, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &apiClient{t: t, ts: ts}, db
}

func (c *apiClient) do(method, path, token string, body any) (int, Result) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.ts.URL+path, reader)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var res Result
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

// bookingID creates and pays for a booking as the customer.
func (c *apiClient) confirmedBooking() string {
	c.t.Helper()
	code, res := c.do(http.MethodPost, "/api/v1/bookings", "cust-token", map[string]string{
		"service_id":     "ac-repair",
		"package_tier":   "standard",
		"scheduled_date": "2026-11-02",
		"scheduled_time": "10:30",
		"address":        "12 MG Road",
	})
	require.Equal(c.t, http.StatusCreated, code, res.Error)
	id := res.Data.(map[string]any)["booking_id"].(string)

	code, res = c.do(http.MethodPost, "/api/v1/bookings/"+id+"/payment", "cust-token", map[string]string{
		"payment_method":    "upi",
		"payment_reference": "txn-1",
	})
	require.Equal(c.t, http.StatusOK, code, res.Error)
	return id
}

func TestHTTPBookingFlow(t *testing.T) {
	api, _ := newTestAPI(t, config.APIConfig{})

	code, res := api.do(http.MethodPost, "/api/v1/bookings", "cust-token", map[string]string{
		"service_id":     "ac-repair",
		"package_tier":   "standard",
		"scheduled_date": "2026-11-02",
		"scheduled_time": "10:30",
		"address":        "12 MG Road",
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, res.Success)
	created := res.Data.(map[string]any)
	booking := created["booking"].(map[string]any)
	assert.Equal(t, 499.0, booking["amount"])
	assert.Equal(t, string(models.StatusPendingPayment), booking["status"])
	id := created["booking_id"].(string)

	code, res = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/payment", "cust-token", map[string]string{"payment_method": "upi"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(models.StatusConfirmed), res.Data.(map[string]any)["status"])

	code, res = api.do(http.MethodGet, "/api/v1/jobs/open", "tech1-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Data, 1)

	code, res = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/claim", "tech1-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Job accepted", res.Message)
	assert.Equal(t, "tech-1", res.Data.(map[string]any)["technician_id"])

	code, res = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/claim", "tech2-token", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeAlreadyAssigned, res.Code)

	code, _ = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/start", "tech1-token", nil)
	require.Equal(t, http.StatusOK, code)

	code, res = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/complete", "tech1-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(models.StatusCompleted), res.Data.(map[string]any)["status"])

	code, res = api.do(http.MethodPost, "/api/v1/bookings/"+id+"/cancel", "cust-token", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.KindConflict, res.Kind)

	code, res = api.do(http.MethodGet, "/api/v1/bookings/"+id, "cust-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 499.0, res.Data.(map[string]any)["amount"])
}

func TestHTTPErrorMapping(t *testing.T) {
	api, _ := newTestAPI(t, config.APIConfig{})
	id := api.confirmedBooking()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   domain.Kind
		code   string
	}{
		{"missing token", http.MethodGet, "/api/v1/bookings", "", nil, http.StatusUnauthorized, domain.KindUnauthorized, domain.CodeInvalidToken},
		{"unknown token", http.MethodGet, "/api/v1/bookings", "nope", nil, http.StatusUnauthorized, domain.KindUnauthorized, domain.CodeInvalidToken},
		{"no profile", http.MethodGet, "/api/v1/bookings", "ghost-token", nil, http.StatusForbidden, domain.KindUnauthorized, ""},
		{"unapproved claim", http.MethodPost, "/api/v1/bookings/" + id + "/claim", "pending-token", nil, http.StatusForbidden, domain.KindUnauthorized, domain.CodeNotApproved},
		{"missing booking", http.MethodPost, "/api/v1/bookings/missing/claim", "tech1-token", nil, http.StatusNotFound, domain.KindNotFound, ""},
		{"bad tier", http.MethodPost, "/api/v1/bookings", "cust-token", map[string]string{
			"service_id": "ac-repair", "package_tier": "gold", "scheduled_date": "2026-11-02", "scheduled_time": "10:30", "address": "x",
		}, http.StatusBadRequest, domain.KindValidation, ""},
		{"unknown field", http.MethodPost, "/api/v1/bookings", "cust-token", map[string]string{"amount": "1"}, http.StatusBadRequest, domain.KindValidation, ""},
		{"admin only", http.MethodGet, "/api/v1/admin/stats", "cust-token", nil, http.StatusForbidden, domain.KindUnauthorized, ""},
		{"bad limit", http.MethodGet, "/api/v1/notifications?limit=x", "cust-token", nil, http.StatusBadRequest, domain.KindValidation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := api.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, code)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, tt.kind, res.Kind)
			if tt.code != "" {
				assert.Equal(t, tt.code, res.Code)
			}
		})
	}
}

func TestHTTPConcurrentClaims(t *testing.T) {
	api, db := newTestAPI(t, config.APIConfig{})
	id := api.confirmedBooking()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []int
	)
	for _, token := range []string{"tech1-token", "tech2-token", "tech1-token", "tech2-token"} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			code, _ := api.do(http.MethodPost, "/api/v1/bookings/"+id+"/claim", token, nil)
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
		}(token)
	}
	wg.Wait()

	won := 0
	for _, c := range codes {
		if c == http.StatusOK {
			won++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, won)

	b, err := db.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, b.Status)
	assert.NotEmpty(t, b.TechnicianID)
}

func TestHTTPAdminRoutes(t *testing.T) {
	api, _ := newTestAPI(t, config.APIConfig{})
	id := api.confirmedBooking()

	code, res := api.do(http.MethodPost, "/api/v1/bookings/"+id+"/assign", "admin-token", map[string]string{"technician_id": "tech-2"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "tech-2", res.Data.(map[string]any)["technician_id"])

	code, res = api.do(http.MethodPost, "/api/v1/technicians/tech-3/status", "admin-token", map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "approved", res.Data.(map[string]any)["status"])

	code, res = api.do(http.MethodGet, "/api/v1/admin/stats", "admin-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, res.Data.(map[string]any)["total"])

	code, res = api.do(http.MethodGet, "/api/v1/admin/bookings", "admin-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Data, 1)

	req, err := http.NewRequest(http.MethodGet, api.ts.URL+"/api/v1/admin/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer admin-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHTTPProfileAndServices(t *testing.T) {
	api, _ := newTestAPI(t, config.APIConfig{})

	code, res := api.do(http.MethodGet, "/api/v1/services", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Data, 1)

	code, res = api.do(http.MethodPatch, "/api/v1/me", "cust-token", map[string]string{"name": "Asha K"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "Asha K", res.Data.(map[string]any)["name"])

	code, res = api.do(http.MethodGet, "/api/v1/me", "cust-token", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Asha K", res.Data.(map[string]any)["name"])

	code, _ = api.do(http.MethodGet, "/api/v1/notifications?limit=5", "cust-token", nil)
	assert.Equal(t, http.StatusOK, code)

	code, res = api.do(http.MethodPost, "/api/v1/notifications/missing/read", "cust-token", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, domain.KindNotFound, res.Kind)
}

func TestHTTPAPIKeyEnforced(t *testing.T) {
	api, _ := newTestAPI(t, config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys:      []config.APIClientKey{{Key: "web-key", Name: "web"}},
		},
	})

	code, res := api.do(http.MethodGet, "/api/v1/services", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_api_key", res.Code)

	resp, err := http.Get(api.ts.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		res  Result
		want int
	}{
		{Result{Success: true}, http.StatusOK},
		{failure(domain.Validation("address", "is required")), http.StatusBadRequest},
		{failure(domain.NotFound("booking", "b1")), http.StatusNotFound},
		{failure(domain.ErrNotApproved), http.StatusForbidden},
		{failure(domain.ErrInvalidToken), http.StatusUnauthorized},
		{failure(domain.ErrAlreadyAssigned), http.StatusConflict},
		{failure(domain.RateLimited("slow down")), http.StatusTooManyRequests},
		{failure(domain.Upstream("load booking", io.ErrUnexpectedEOF)), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpStatus(tt.res), tt.res.Error)
	}
}

func TestFailureHidesUpstreamCause(t *testing.T) {
	res := failure(domain.Upstream("load booking", io.ErrUnexpectedEOF))
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindUpstream, res.Kind)
	assert.NotContains(t, res.Error, "unexpected EOF")
}
