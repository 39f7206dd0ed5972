package postgres

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// DecisionRepo persists completed QA decisions for audit. One row per
// activity id; redeliveries overwrite in place.
type DecisionRepo struct{ Pool PgxPool }

// NewDecisionRepo constructs a DecisionRepo with the given pool.
func NewDecisionRepo(p PgxPool) *DecisionRepo { return &DecisionRepo{Pool: p} }

const listSep = "\x1f" // unit separator; never appears in finding text

// Upsert inserts or updates the audit row for the record's activity id.
func (r *DecisionRepo) Upsert(ctx domain.Context, rec domain.AuditRecord) error {
	tracer := otel.Tracer("repo.decisions")
	ctx, span := tracer.Start(ctx, "decisions.Upsert")
	defer span.End()
	q := `INSERT INTO qa_decisions (id, activity_id, lead_id, qa_status, qa_risk_level, qa_summary, qa_key_findings, qa_concerns, qa_advisory_notes, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (activity_id)
	DO UPDATE SET qa_status=EXCLUDED.qa_status, qa_risk_level=EXCLUDED.qa_risk_level, qa_summary=EXCLUDED.qa_summary, qa_key_findings=EXCLUDED.qa_key_findings, qa_concerns=EXCLUDED.qa_concerns, qa_advisory_notes=EXCLUDED.qa_advisory_notes`
	_, err := r.Pool.Exec(ctx, q,
		rec.ID, rec.ActivityID, rec.LeadID,
		rec.Decision.Status, rec.Decision.RiskLevel, rec.Decision.Summary,
		strings.Join(rec.Decision.KeyFindings, listSep),
		strings.Join(rec.Decision.Concerns, listSep),
		rec.Decision.Advisory, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("op=decision.upsert: %w", err)
	}
	return nil
}

// GetByActivityID loads the audit row for an activity id.
func (r *DecisionRepo) GetByActivityID(ctx domain.Context, activityID string) (domain.AuditRecord, error) {
	tracer := otel.Tracer("repo.decisions")
	ctx, span := tracer.Start(ctx, "decisions.GetByActivityID")
	defer span.End()
	q := `SELECT id, activity_id, lead_id, qa_status, qa_risk_level, qa_summary, qa_key_findings, qa_concerns, qa_advisory_notes, created_at FROM qa_decisions WHERE activity_id=$1`
	row := r.Pool.QueryRow(ctx, q, activityID)
	var rec domain.AuditRecord
	var findings, concerns string
	if err := row.Scan(&rec.ID, &rec.ActivityID, &rec.LeadID,
		&rec.Decision.Status, &rec.Decision.RiskLevel, &rec.Decision.Summary,
		&findings, &concerns, &rec.Decision.Advisory, &rec.CreatedAt); err != nil {
		return domain.AuditRecord{}, fmt.Errorf("op=decision.get: %w", err)
	}
	rec.Decision.KeyFindings = splitList(findings)
	rec.Decision.Concerns = splitList(concerns)
	return rec, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, listSep)
}
