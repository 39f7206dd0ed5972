package httpserver

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
	"github.com/fairyhunter13/intake-qa-agent/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Intake     *usecase.IntakeService
	RedisCheck func(ctx context.Context) error
	DBCheck    func(ctx context.Context) error
	KafkaCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, intake *usecase.IntakeService, redisCheck, dbCheck, kafkaCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Intake: intake, RedisCheck: redisCheck, DBCheck: dbCheck, KafkaCheck: kafkaCheck}
}

// completedBody is the success response: status plus the promoted QA fields.
type completedBody struct {
	Status string `json:"status"`
	domain.Decision
}

// failedBody still carries a best-effort Decision with safe defaults so the
// caller never receives a malformed payload.
type failedBody struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType,omitempty"`
	domain.Decision
}

// IntakeHandler processes one CRM webhook delivery.
func (s *Server) IntakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		body, err := io.ReadAll(r.Body)
		if err != nil {
			observability.DeliveriesTotal.WithLabelValues(domain.StatusIgnoredInvalidWebhook).Inc()
			writeJSON(w, http.StatusOK, map[string]string{"status": domain.StatusIgnoredInvalidWebhook})
			return
		}

		res := s.Intake.Process(r.Context(), body)
		observability.DeliveriesTotal.WithLabelValues(res.Status).Inc()

		lg := LoggerFrom(r)
		switch res.Status {
		case domain.StatusCompleted:
			lg.Info("intake qa completed", "from_cache", res.FromCache, "qa_status", res.Decision.Status, "qa_risk", res.Decision.RiskLevel)
			writeJSON(w, http.StatusOK, completedBody{Status: res.Status, Decision: *res.Decision})
		case domain.StatusFailed:
			lg.Error("intake qa failed", "error", res.Err, "error_type", res.ErrType)
			writeJSON(w, http.StatusInternalServerError, failedBody{Status: res.Status, Error: res.Err, ErrorType: res.ErrType, Decision: *res.Decision})
		default:
			lg.Info("delivery not actionable", "status", res.Status)
			writeJSON(w, http.StatusOK, map[string]string{"status": res.Status})
		}
	}
}

// NotFoundHandler answers unknown paths with the structured error envelope
// instead of chi's plain-text default.
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, domain.ErrNotFound, map[string]string{"path": r.URL.Path})
	}
}

// HealthHandler reports liveness with a timestamp.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadyzHandler probes the optional backing services that are configured.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		probe := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		probe("redis", s.RedisCheck)
		probe("db", s.DBCheck)
		probe("kafka", s.KafkaCheck)

		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
