package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// IntakeResult is what one processed delivery yields. HTTPStatus and the
// body-shaping fields are consumed by the HTTP adapter.
type IntakeResult struct {
	Status    string
	Decision  *domain.Decision
	Err       string
	ErrType   string
	FromCache bool
}

// Failed reports whether the result represents a decision-service failure.
func (r IntakeResult) Failed() bool { return r.Status == domain.StatusFailed }

// IntakeService runs the full pipeline for one delivery: classify, enrich,
// normalize, render, decide, cache, sink. Sinks (CRM write-back, audit,
// events) are best-effort and never affect the webhook response.
type IntakeService struct {
	Cfg      config.Config
	Policy   config.Policy
	Renderer Renderer
	AI       domain.DecisionClient
	Cache    domain.DecisionCache
	CRM      domain.CRMClient
	Audit    domain.DecisionAuditRepo
	Events   domain.DecisionPublisher

	locks keyedMutex
}

// NewIntakeService constructs an IntakeService. CRM, Audit and Events may be
// nil; the pipeline skips the corresponding sink.
func NewIntakeService(cfg config.Config, pol config.Policy, ai domain.DecisionClient, cache domain.DecisionCache, crm domain.CRMClient, audit domain.DecisionAuditRepo, events domain.DecisionPublisher) *IntakeService {
	return &IntakeService{
		Cfg:      cfg,
		Policy:   pol,
		Renderer: NewRenderer(pol),
		AI:       ai,
		Cache:    cache,
		CRM:      crm,
		Audit:    audit,
		Events:   events,
	}
}

// Process handles one raw webhook body end to end.
func (s *IntakeService) Process(ctx context.Context, body []byte) IntakeResult {
	d, err := domain.DecodeDelivery(body)
	if err != nil {
		return IntakeResult{Status: domain.StatusIgnoredInvalidWebhook}
	}

	outcome := Classify(d, s.Policy)
	if outcome != OutcomeActionable {
		return IntakeResult{Status: outcome.Status()}
	}

	// The CRM redelivers the same logical event aggressively; the per-key
	// lock ensures two concurrent deliveries for one activity id resolve to
	// a single decision-service call.
	if d.ActivityID != "" {
		unlock := s.locks.Lock(d.ActivityID)
		defer unlock()

		if s.Cache != nil {
			if cached, ok, cerr := s.Cache.Get(ctx, d.ActivityID); cerr != nil {
				slog.Warn("dedup cache get failed", slog.String("activity_id", d.ActivityID), slog.Any("error", cerr))
			} else if ok {
				return IntakeResult{Status: domain.StatusCompleted, Decision: &cached, FromCache: true}
			}
		}
	}

	s.enrichLead(ctx, &d)

	rec := Normalize(d)
	report := s.Renderer.Render(rec)

	raw, err := s.AI.Decide(ctx, report)
	if err != nil {
		slog.Error("decision service call failed",
			slog.String("activity_id", d.ActivityID),
			slog.Any("error", err))
		return IntakeResult{Status: domain.StatusFailed, Decision: ptrDecision(DefaultDecision()), Err: err.Error(), ErrType: errType(err)}
	}
	dec := ShapeDecision(raw)

	if d.ActivityID != "" && s.Cache != nil {
		if cerr := s.Cache.Set(ctx, d.ActivityID, dec, s.Cfg.DedupTTL); cerr != nil {
			slog.Warn("dedup cache set failed", slog.String("activity_id", d.ActivityID), slog.Any("error", cerr))
		}
	}

	s.sink(ctx, d, dec)
	return IntakeResult{Status: domain.StatusCompleted, Decision: &dec}
}

// enrichLead fills the Lead container from the CRM when the delivery carries
// a lead id but no identity data. Failure degrades to sentinels downstream.
func (s *IntakeService) enrichLead(ctx context.Context, d *domain.Delivery) {
	if s.CRM == nil || d.LeadID == "" || len(d.Lead) > 0 {
		return
	}
	fields, err := s.CRM.GetLead(ctx, d.LeadID)
	if err != nil {
		slog.Warn("lead enrichment failed", slog.String("lead_id", d.LeadID), slog.Any("error", err))
		return
	}
	d.Lead = fields
}

func (s *IntakeService) sink(ctx context.Context, d domain.Delivery, dec domain.Decision) {
	if s.CRM != nil && s.Cfg.CRMWritebackOn && d.ActivityID != "" {
		fields := map[string]string{
			"mx_QA_Status":         dec.Status,
			"mx_QA_Risk_Level":     dec.RiskLevel,
			"mx_QA_Summary":        dec.Summary,
			"mx_QA_Key_Findings":   strings.Join(dec.KeyFindings, "; "),
			"mx_QA_Concerns":       strings.Join(dec.Concerns, "; "),
			"mx_QA_Advisory_Notes": dec.Advisory,
		}
		if err := s.CRM.UpdateActivityFields(ctx, d.ActivityID, fields); err != nil {
			slog.Warn("crm write-back failed", slog.String("activity_id", d.ActivityID), slog.Any("error", err))
		}
	}
	if s.Audit != nil {
		rec := domain.AuditRecord{
			ID:         uuid.New().String(),
			ActivityID: d.ActivityID,
			LeadID:     d.LeadID,
			Decision:   dec,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.Audit.Upsert(ctx, rec); err != nil {
			slog.Warn("decision audit upsert failed", slog.String("activity_id", d.ActivityID), slog.Any("error", err))
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishDecision(ctx, d.ActivityID, dec); err != nil {
			slog.Warn("decision event publish failed", slog.String("activity_id", d.ActivityID), slog.Any("error", err))
		}
	}
}

func errType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamFailure):
		return "UPSTREAM_ERROR"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return "SCHEMA_INVALID"
	default:
		return "INTERNAL"
	}
}

func ptrDecision(d domain.Decision) *domain.Decision { return &d }

// keyedMutex serializes work per key without holding a global lock for the
// duration of the request.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
