// Package usecase contains application business logic services.
package usecase

import (
	"strings"

	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// Outcome is the receiver's verdict on one delivery.
type Outcome int

const (
	// OutcomeActionable means the delivery carries a processable intake event.
	OutcomeActionable Outcome = iota
	// OutcomePing means a sync/automation heartbeat or a signal-free body.
	OutcomePing
	// OutcomeNonIntake means a genuine CRM event of a different type.
	OutcomeNonIntake
	// OutcomeEmptyPayload means data containers are present but carry nothing.
	OutcomeEmptyPayload
	// OutcomeInsufficient means too few recognized fields to evaluate.
	OutcomeInsufficient
)

// Status maps an outcome to its webhook response status code.
func (o Outcome) Status() string {
	switch o {
	case OutcomePing:
		return domain.StatusAcknowledged
	case OutcomeNonIntake:
		return domain.StatusIgnoredNonIntakeEvent
	case OutcomeEmptyPayload:
		return domain.StatusAcknowledgedEmpty
	case OutcomeInsufficient:
		return domain.StatusInsufficientData
	default:
		return domain.StatusCompleted
	}
}

// Labels the CRM sends for non-event heartbeats.
var pingLabels = []string{"ping", "sync", "heartbeat", "test", "webhooktest"}

func isPingLabel(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, p := range pingLabels {
		if label == p {
			return true
		}
	}
	return false
}

// Classify decides whether a decoded delivery is worth processing. The rules
// run in precedence order and every non-actionable outcome must stay
// side-effect-free for the caller.
func Classify(d domain.Delivery, p config.Policy) Outcome {
	hasDiscriminator := d.EventName != "" || d.EventCode != ""
	isIntake := containsFold(p.ActionableLabels, d.EventName) ||
		containsExact(p.ActionableCodes, d.EventCode)

	if hasDiscriminator && !isIntake {
		if isPingLabel(d.EventName) {
			return OutcomePing
		}
		// Deliveries that are nothing but a discriminator are heartbeats in
		// practice, whatever the label says.
		if !d.HasContainer() && d.KeyCount <= 2 {
			return OutcomePing
		}
		return OutcomeNonIntake
	}

	// Intake-labeled, or a legacy delivery with no discriminator at all.
	if !d.HasContainer() {
		if isIntake && d.KeyCount > 1 {
			// Recognized intake event that arrived without any data container.
			return OutcomeInsufficient
		}
		return OutcomePing
	}
	if d.ContainersEmpty() {
		return OutcomeEmptyPayload
	}
	if p.RequireActivityID && d.ActivityID == "" {
		return OutcomeInsufficient
	}
	if recognizedFieldCount(d) < p.MinRecognizedFields {
		return OutcomeInsufficient
	}
	return OutcomeActionable
}

func containsFold(set []string, v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func containsExact(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
