package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// Renderer serializes an ApplicantRecord into the plain-text context report
// consumed by the decision service. Rendering is deterministic and does no
// I/O; the only conditional is the English-proficiency exemption.
type Renderer struct {
	policy config.Policy
}

// NewRenderer constructs a Renderer bound to the given policy.
func NewRenderer(p config.Policy) Renderer { return Renderer{policy: p} }

const exemptionNote = "Applicant is exempt from English proficiency requirements based on citizenship or country of residence."

// Render produces the sectioned context report. When the applicant falls in
// the exemption set, the English proficiency section states the exemption and
// carries no test or variant content; downstream instructions key off whether
// that section is substantively present.
func (r Renderer) Render(rec domain.ApplicantRecord) string {
	var b strings.Builder

	section(&b, "APPLICANT PROFILE",
		kv("Name", strings.TrimSpace(rec.Lead.FirstName+" "+rec.Lead.LastName)),
		kv("Email", rec.Lead.Email),
		kv("Phone", rec.Lead.Phone),
		kv("Date of Birth", rec.Lead.BirthDate),
		kv("Country", rec.Lead.Country),
	)
	section(&b, "PROGRAM SELECTION",
		kv("Program", rec.Activity.Program),
		kv("Specialization", rec.Activity.Specialization),
		kv("Intake Term", rec.Activity.IntakeTerm),
	)
	section(&b, "CITIZENSHIP & RESIDENCY",
		kv("Citizenship", rec.Activity.Citizenship),
		kv("Residency Status", rec.Activity.ResidencyStatus),
	)
	section(&b, "ACADEMIC RECORD",
		kv("High School", rec.Activity.HighSchoolName),
		kv("High School Grade", rec.Activity.HighSchoolGrade),
		kv("High School Year", rec.Activity.HighSchoolYear),
		kv("College", rec.Activity.CollegeName),
		kv("College Major", rec.Activity.CollegeMajor),
		kv("College GPA", rec.Activity.CollegeGPA),
		kv("College Year", rec.Activity.CollegeYear),
		kv("Degree", rec.Activity.DegreeName),
		kv("Degree University", rec.Activity.DegreeUniversity),
		kv("Degree Year", rec.Activity.DegreeYear),
	)
	section(&b, "FINANCIAL AID",
		kv("Financial Aid Status", rec.Activity.FinancialAidStatus),
		kv("FAFSA Acknowledgement", rec.Variants.FAFSAAck),
	)

	if r.policy.IsExempt(rec.Activity.Citizenship, rec.Lead.Country) {
		section(&b, "ENGLISH PROFICIENCY", exemptionNote)
	} else {
		section(&b, "ENGLISH PROFICIENCY",
			kv("Test Type", rec.Activity.EnglishTestType),
			kv("Test Score", rec.Activity.EnglishTestScore),
			kv("Test Review", rec.Variants.EnglishProficiency),
		)
	}

	section(&b, "DECLARATION",
		kv("Declaration Agreed", rec.Activity.DeclarationAgreed),
	)
	section(&b, "DOCUMENT REVIEW",
		"High School Transcript:\n"+rec.Variants.HighSchoolTranscript,
		"College Transcript:\n"+rec.Variants.CollegeTranscript,
		"Degree Certificate:\n"+rec.Variants.DegreeCertificate,
	)

	return strings.TrimRight(b.String(), "\n")
}

func section(b *strings.Builder, heading string, lines ...string) {
	fmt.Fprintf(b, "=== %s ===\n", heading)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func kv(label, value string) string { return label + ": " + value }
