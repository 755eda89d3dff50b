package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/identity"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"

	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer exposes the entry points as a JSON API.
type HTTPServer struct {
	cfg       config.APIConfig
	endpoints *Endpoints
	server    *http.Server
	auth      *HTTPAuth
	handler   http.Handler
	log       zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, endpoints *Endpoints, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, endpoints: endpoints, log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := http.NewServeMux()
	srv.route(api, "GET /api/v1/services", "list_services", srv.handleListServices)
	srv.route(api, "POST /api/v1/bookings", "create_booking", srv.handleCreateBooking)
	srv.route(api, "GET /api/v1/bookings", "list_user_bookings", srv.handleListUserBookings)
	srv.route(api, "GET /api/v1/bookings/{id}", "get_booking", srv.handleGetBooking)
	srv.route(api, "POST /api/v1/bookings/{id}/payment", "confirm_payment", srv.handleConfirmPayment)
	srv.route(api, "POST /api/v1/bookings/{id}/verify-payment", "verify_payment", srv.handleVerifyPayment)
	srv.route(api, "POST /api/v1/bookings/{id}/claim", "accept_job", srv.handleAcceptJob)
	srv.route(api, "POST /api/v1/bookings/{id}/assign", "assign_technician", srv.handleAssignTechnician)
	srv.route(api, "POST /api/v1/bookings/{id}/start", "start_service", srv.handleStartService)
	srv.route(api, "POST /api/v1/bookings/{id}/complete", "complete_job", srv.handleCompleteJob)
	srv.route(api, "POST /api/v1/bookings/{id}/cancel", "cancel_booking", srv.handleCancelBooking)
	srv.route(api, "POST /api/v1/bookings/{id}/reschedule", "reschedule_booking", srv.handleRescheduleBooking)
	srv.route(api, "GET /api/v1/jobs/open", "list_open_jobs", srv.handleListOpenJobs)
	srv.route(api, "GET /api/v1/jobs/mine", "list_technician_jobs", srv.handleListTechnicianJobs)
	srv.route(api, "POST /api/v1/technicians", "apply_technician", srv.handleApplyTechnician)
	srv.route(api, "GET /api/v1/technicians", "list_technicians", srv.handleListTechnicians)
	srv.route(api, "POST /api/v1/technicians/{id}/status", "approve_technician", srv.handleApproveTechnician)
	srv.route(api, "GET /api/v1/admin/bookings", "list_all_bookings", srv.handleListAllBookings)
	srv.route(api, "GET /api/v1/admin/stats", "get_stats", srv.handleGetStats)
	srv.route(api, "GET /api/v1/admin/export", "export_bookings", srv.handleExport)
	srv.route(api, "GET /api/v1/me", "get_profile", srv.handleGetProfile)
	srv.route(api, "PATCH /api/v1/me", "update_profile", srv.handleUpdateProfile)
	srv.route(api, "GET /api/v1/notifications", "list_notifications", srv.handleListNotifications)
	srv.route(api, "POST /api/v1/notifications/{id}/read", "mark_notification_read", srv.handleMarkNotificationRead)
	mux.Handle("/api/", srv.auth.Wrap(api))

	srv.handler = srv.loggingMiddleware(mux)
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(recorder, r)
		metrics.IncHTTP(name, strconv.Itoa(recorder.status))
		metrics.ObserveRequest("http", name, start)
	})
}

func bearer(r *http.Request) string {
	return identity.BearerToken(r.Header.Get("Authorization"))
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, s.endpoints.ListServices())
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var draft models.BookingDraft
	if !decodeBody(w, r, &draft) {
		return
	}
	res := s.endpoints.CreateBooking(r.Context(), bearer(r), draft)
	if res.Success {
		writeJSON(w, http.StatusCreated, res)
		return
	}
	writeResult(w, res)
}

func (s *HTTPServer) handleListUserBookings(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.ListUserBookings(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.GetBooking(r.Context(), bearer(r), r.PathValue("id")))
}

func (s *HTTPServer) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method    string `json:"payment_method"`
		Reference string `json:"payment_reference"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.ConfirmPayment(r.Context(), bearer(r), r.PathValue("id"), body.Method, body.Reference))
}

func (s *HTTPServer) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.VerifyPayment(r.Context(), bearer(r), r.PathValue("id")))
}

func (s *HTTPServer) handleAcceptJob(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.AcceptJob(r.Context(), bearer(r), r.PathValue("id")))
}

func (s *HTTPServer) handleAssignTechnician(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TechnicianID string `json:"technician_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.AssignTechnician(r.Context(), bearer(r), r.PathValue("id"), body.TechnicianID))
}

func (s *HTTPServer) handleStartService(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.StartService(r.Context(), bearer(r), r.PathValue("id")))
}

func (s *HTTPServer) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.CompleteJob(r.Context(), bearer(r), r.PathValue("id")))
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.CancelBooking(r.Context(), bearer(r), r.PathValue("id"), body.Reason))
}

func (s *HTTPServer) handleRescheduleBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"scheduled_date"`
		Time string `json:"scheduled_time"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.RescheduleBooking(r.Context(), bearer(r), r.PathValue("id"), body.Date, body.Time))
}

func (s *HTTPServer) handleListOpenJobs(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.ListOpenJobs(r.Context(), bearer(r), r.URL.Query().Get("category")))
}

func (s *HTTPServer) handleListTechnicianJobs(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.ListTechnicianJobs(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleApplyTechnician(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	res := s.endpoints.ApplyTechnician(r.Context(), bearer(r), body.Name, body.Phone, body.Category)
	if res.Success {
		writeJSON(w, http.StatusCreated, res)
		return
	}
	writeResult(w, res)
}

func (s *HTTPServer) handleListTechnicians(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.ListTechnicians(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleApproveTechnician(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.TechnicianStatus `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.ApproveTechnician(r.Context(), bearer(r), r.PathValue("id"), body.Status))
}

func (s *HTTPServer) handleListAllBookings(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.ListAllBookings(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.GetStats(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	data, res := s.endpoints.ExportBookings(r.Context(), bearer(r))
	if !res.Success {
		writeResult(w, res)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, time.Now().UTC().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.GetProfile(r.Context(), bearer(r)))
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body service.ProfileUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.endpoints.UpdateProfile(r.Context(), bearer(r), body))
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeResult(w, failure(domain.Validation("limit", "must be a non-negative integer")))
			return
		}
		limit = n
	}
	writeResult(w, s.endpoints.ListNotifications(r.Context(), bearer(r), limit))
}

func (s *HTTPServer) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.endpoints.MarkNotificationRead(r.Context(), bearer(r), r.PathValue("id")))
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeResult(w, failure(domain.Validation("body", "invalid JSON body")))
		return false
	}
	return true
}

// httpStatus maps a result onto a status code.
func httpStatus(res Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case domain.CodeInvalidToken:
		return http.StatusUnauthorized
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	switch res.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, res Result) {
	writeJSON(w, httpStatus(res), res)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
