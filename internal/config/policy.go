// Package config provides configuration loading utilities.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy captures the deployment-tunable decisions the webhook revisions
// disagreed on: which event discriminators count as actionable, which
// citizenships/countries are exempt from English proficiency, and the
// instruction text handed to the decision service.
type Policy struct {
	// Actionability: a delivery is actionable when its event label matches
	// ActionableLabels OR its numeric event code matches ActionableCodes.
	// RequireActivityID additionally demands a non-empty activity id.
	ActionableLabels  []string `yaml:"actionable_labels"`
	ActionableCodes   []string `yaml:"actionable_codes"`
	RequireActivityID bool     `yaml:"require_activity_id"`

	// MinRecognizedFields is the threshold below which a delivery with data
	// containers is classified INSUFFICIENT_DATA instead of processed.
	MinRecognizedFields int `yaml:"min_recognized_fields"`

	// ExemptCitizenships and ExemptCountries suppress the English
	// proficiency section at render time.
	ExemptCitizenships []string `yaml:"exempt_citizenships"`
	ExemptCountries    []string `yaml:"exempt_countries"`

	// SystemPrompt overrides the built-in decision instruction text when set.
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultPolicy returns the policy used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		ActionableLabels:    []string{"IntakeApplication", "Application Intake"},
		ActionableCodes:     []string{"210", "212"},
		RequireActivityID:   false,
		MinRecognizedFields: 3,
		ExemptCitizenships:  []string{"US Citizen", "U.S. Citizen"},
		ExemptCountries:     []string{"United States", "USA", "United States of America"},
	}
}

// LoadPolicy reads a policy YAML file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("op=config.LoadPolicy: %w", err)
	}
	var file Policy
	if err := yaml.Unmarshal(b, &file); err != nil {
		return Policy{}, fmt.Errorf("op=config.LoadPolicy: parse %s: %w", path, err)
	}
	if len(file.ActionableLabels) > 0 {
		p.ActionableLabels = file.ActionableLabels
	}
	if len(file.ActionableCodes) > 0 {
		p.ActionableCodes = file.ActionableCodes
	}
	// RequireActivityID is a plain bool in YAML; a file that sets any
	// actionability knob owns the flag.
	if len(file.ActionableLabels) > 0 || len(file.ActionableCodes) > 0 {
		p.RequireActivityID = file.RequireActivityID
	}
	if file.MinRecognizedFields > 0 {
		p.MinRecognizedFields = file.MinRecognizedFields
	}
	if len(file.ExemptCitizenships) > 0 {
		p.ExemptCitizenships = file.ExemptCitizenships
	}
	if len(file.ExemptCountries) > 0 {
		p.ExemptCountries = file.ExemptCountries
	}
	if strings.TrimSpace(file.SystemPrompt) != "" {
		p.SystemPrompt = file.SystemPrompt
	}
	return p, nil
}

// IsExempt reports whether the given citizenship or country falls in the
// English-proficiency exemption set. Matching is case-insensitive.
func (p Policy) IsExempt(citizenship, country string) bool {
	return containsFold(p.ExemptCitizenships, citizenship) || containsFold(p.ExemptCountries, country)
}

func containsFold(set []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
