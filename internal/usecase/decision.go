package usecase

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// ShapeDecision turns a cleaned decision-service reply into a well-formed
// Decision. A reply that does not parse is treated as an empty object and
// every field falls back to its default; shaping never errors.
func ShapeDecision(cleaned string) domain.Decision {
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		raw = map[string]any{}
	}

	d := domain.Decision{
		Status:      strings.ToUpper(strings.TrimSpace(domain.ScalarString(raw["QA_Status"]))),
		RiskLevel:   strings.ToUpper(strings.TrimSpace(domain.ScalarString(raw["QA_Risk_Level"]))),
		Summary:     ClampSentence(strings.TrimSpace(domain.ScalarString(raw["QA_Summary"])), domain.SummaryBudget),
		KeyFindings: coerceStringList(raw["QA_Key_Findings"]),
		Concerns:    coerceStringList(raw["QA_Concerns"]),
		Advisory:    ClampSentence(strings.TrimSpace(domain.ScalarString(raw["QA_Advisory_Notes"])), domain.SummaryBudget),
	}
	if err := getValidator().Var(d.Status, "required,oneof=PASS REVIEW FAIL"); err != nil {
		d.Status = domain.QAStatusReview
	}
	if err := getValidator().Var(d.RiskLevel, "required,oneof=LOW MEDIUM HIGH"); err != nil {
		d.RiskLevel = domain.RiskMedium
	}
	if len(d.KeyFindings) == 0 {
		d.KeyFindings = []string{domain.DefaultFinding}
	}
	return d
}

// DefaultDecision is the safe body carried on failed requests so callers
// never receive a malformed payload.
func DefaultDecision() domain.Decision {
	return domain.Decision{
		Status:      domain.QAStatusReview,
		RiskLevel:   domain.RiskMedium,
		KeyFindings: []string{domain.DefaultFinding},
		Concerns:    []string{},
	}
}

// ClampSentence limits s to budget characters, cutting at the last sentence
// terminator within budget; when none exists the cut ends with an ellipsis.
// The budget counts runes, never bytes, so multibyte text is cut on rune
// boundaries and the result is always valid UTF-8.
func ClampSentence(s string, budget int) string {
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:budget])
	if idx := strings.LastIndexAny(cut, ".!?"); idx >= 0 {
		return cut[:idx+1]
	}
	return string(runes[:budget-3]) + "..."
}

func coerceStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(domain.ScalarString(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
