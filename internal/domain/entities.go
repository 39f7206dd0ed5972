// Package domain holds the core entities and ports of the intake QA service.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Webhook response status codes returned to the CRM.
const (
	StatusAcknowledged          = "ACKNOWLEDGED"
	StatusIgnoredNonIntakeEvent = "IGNORED_NON_INTAKE_EVENT"
	StatusIgnoredInvalidWebhook = "IGNORED_INVALID_WEBHOOK"
	StatusAcknowledgedEmpty     = "ACKNOWLEDGED_EMPTY_PAYLOAD"
	StatusInsufficientData      = "INSUFFICIENT_DATA"
	StatusCompleted             = "INTAKE_QA_COMPLETED"
	StatusFailed                = "INTAKE_QA_FAILED"
)

// SummaryBudget caps QA_Summary and QA_Advisory_Notes, counted in runes.
// The system prompt asks the model for a little less than this so the clamp
// rarely has to cut mid-sentence.
const SummaryBudget = 200

// QA status enumeration produced by the decision service.
const (
	QAStatusPass   = "PASS"
	QAStatusReview = "REVIEW"
	QAStatusFail   = "FAIL"
)

// QA risk level enumeration.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Sentinels substituted for absent or blank upstream fields. Every normalized
// field holds either a trimmed non-empty value or one of these; never "".
const (
	NotProvided    = "Not provided"
	NotSpecified   = "Not specified"
	NotSubmitted   = "Document not submitted"
	NotApplicable  = "Not applicable"
	DefaultFinding = "Application received for review."
)

// Delivery is one inbound webhook call from the CRM after envelope decoding.
// Field values inside the containers remain loosely typed; normalization is
// the usecase layer's job.
type Delivery struct {
	EventName  string
	EventCode  string
	ActivityID string
	LeadID     string
	CreatedOn  string
	Current    map[string]any
	Data       map[string]any
	Lead       map[string]any
	// KeyCount is the number of top-level keys seen in the raw body. Used to
	// tell a bare ping from a malformed-but-substantial delivery.
	KeyCount int
}

// HasContainer reports whether any of the known data containers is present.
func (d Delivery) HasContainer() bool {
	return d.Current != nil || d.Data != nil || d.Lead != nil
}

// ContainersEmpty reports whether all present containers carry no fields.
func (d Delivery) ContainersEmpty() bool {
	return len(d.Current) == 0 && len(d.Data) == 0 && len(d.Lead) == 0
}

// LeadProfile is the identity grouping of an ApplicantRecord.
type LeadProfile struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	BirthDate string
	Country   string
}

// ActivityDetails is the application grouping of an ApplicantRecord.
type ActivityDetails struct {
	Program            string
	Specialization     string
	IntakeTerm         string
	Citizenship        string
	ResidencyStatus    string
	HighSchoolName     string
	HighSchoolGrade    string
	HighSchoolYear     string
	CollegeName        string
	CollegeMajor       string
	CollegeGPA         string
	CollegeYear        string
	DegreeName         string
	DegreeUniversity   string
	DegreeYear         string
	FinancialAidStatus string
	EnglishTestType    string
	EnglishTestScore   string
	DeclarationAgreed  string
}

// DocumentVariants holds the five document-review outcomes already mapped
// from their variant codes to descriptive sentences.
type DocumentVariants struct {
	HighSchoolTranscript string
	CollegeTranscript    string
	DegreeCertificate    string
	FAFSAAck             string
	EnglishProficiency   string
}

// ApplicantRecord is the canonical, fully-defaulted view of one delivery.
// Constructed once per request and never mutated afterwards.
type ApplicantRecord struct {
	ActivityID string
	LeadID     string
	Lead       LeadProfile
	Activity   ActivityDetails
	Variants   DocumentVariants
}

// Decision is the structured verdict relayed back to the caller.
// Summary and Advisory are clamped to a fixed character budget ending on a
// sentence boundary; KeyFindings is never empty.
type Decision struct {
	Status      string   `json:"QA_Status" validate:"required,oneof=PASS REVIEW FAIL"`
	RiskLevel   string   `json:"QA_Risk_Level" validate:"required,oneof=LOW MEDIUM HIGH"`
	Summary     string   `json:"QA_Summary"`
	KeyFindings []string `json:"QA_Key_Findings"`
	Concerns    []string `json:"QA_Concerns"`
	Advisory    string   `json:"QA_Advisory_Notes"`
}

// AuditRecord is one persisted decision for the optional audit trail.
type AuditRecord struct {
	ID         string
	ActivityID string
	LeadID     string
	Decision   Decision
	CreatedAt  time.Time
}

// DecisionClient is the boundary to the external text-completion service.
// Decide returns the raw (uncleaned) model reply for the rendered report.
type DecisionClient interface {
	Decide(ctx Context, contextReport string) (string, error)
}

// DecisionCache deduplicates repeated deliveries for the same activity id.
// Set must only be called with successful decisions; failed or timed-out
// results are never cached.
type DecisionCache interface {
	Get(ctx Context, activityID string) (Decision, bool, error)
	Set(ctx Context, activityID string, d Decision, ttl time.Duration) error
}

// CRMClient covers the CRM HTTP API calls this service consumes.
type CRMClient interface {
	// GetLead fetches lead fields by lead id for enrichment.
	GetLead(ctx Context, leadID string) (map[string]any, error)
	// UpdateActivityFields writes the QA verdict back onto the activity.
	UpdateActivityFields(ctx Context, activityID string, fields map[string]string) error
}

// DecisionPublisher publishes completed decisions for downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx Context, activityID string, d Decision) error
}

// DecisionAuditRepo persists completed decisions for audit/retention.
type DecisionAuditRepo interface {
	Upsert(ctx Context, rec AuditRecord) error
}

// Context aliases context.Context so ports stay terse.
type Context = context.Context
