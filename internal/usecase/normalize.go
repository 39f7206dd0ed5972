package usecase

import (
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
	"github.com/fairyhunter13/intake-qa-agent/pkg/textx"
)

// The CRM renamed its custom fields several times over the system's lifetime.
// Each canonical field therefore probes an ordered list of historical key
// names; the first non-empty trimmed value wins, otherwise the sentinel.
// Containers are probed newest-scheme-first: Current, then Data, then Lead.
type fieldSpec struct {
	canon    string
	keys     []string
	sentinel string
}

var fieldCatalog = []fieldSpec{
	// Lead identity
	{canon: "first_name", keys: []string{"FirstName", "mx_First_Name"}, sentinel: domain.NotProvided},
	{canon: "last_name", keys: []string{"LastName", "mx_Last_Name"}, sentinel: domain.NotProvided},
	{canon: "email", keys: []string{"EmailAddress", "mx_Email", "Email"}, sentinel: domain.NotProvided},
	{canon: "phone", keys: []string{"Phone", "Mobile", "mx_Phone"}, sentinel: domain.NotProvided},
	{canon: "birth_date", keys: []string{"DateOfBirth", "mx_Date_Of_Birth", "mx_DOB"}, sentinel: domain.NotSpecified},
	{canon: "country", keys: []string{"mx_Country", "Country"}, sentinel: domain.NotSpecified},
	// Program selection
	{canon: "program", keys: []string{"mx_Program", "mx_Program_Name", "mx_Custom_5"}, sentinel: domain.NotProvided},
	{canon: "specialization", keys: []string{"mx_Specialization", "mx_Custom_6"}, sentinel: domain.NotProvided},
	{canon: "intake_term", keys: []string{"mx_Intake_Term", "mx_Intake", "mx_Custom_7"}, sentinel: domain.NotSpecified},
	// Citizenship & residency
	{canon: "citizenship", keys: []string{"mx_Citizenship", "mx_Custom_1"}, sentinel: domain.NotSpecified},
	{canon: "residency_status", keys: []string{"mx_Residency_Status", "mx_Custom_3"}, sentinel: domain.NotSpecified},
	// Academic record
	{canon: "high_school_name", keys: []string{"mx_High_School_Name", "mx_Custom_10"}, sentinel: domain.NotProvided},
	{canon: "high_school_grade", keys: []string{"mx_High_School_Grade", "mx_Custom_11"}, sentinel: domain.NotProvided},
	{canon: "high_school_year", keys: []string{"mx_High_School_Year", "mx_Custom_12"}, sentinel: domain.NotSpecified},
	{canon: "college_name", keys: []string{"mx_College_Name", "mx_Custom_13"}, sentinel: domain.NotProvided},
	{canon: "college_major", keys: []string{"mx_College_Major", "mx_Custom_14"}, sentinel: domain.NotProvided},
	{canon: "college_gpa", keys: []string{"mx_College_GPA", "mx_Custom_15"}, sentinel: domain.NotProvided},
	{canon: "college_year", keys: []string{"mx_College_Year", "mx_Custom_16"}, sentinel: domain.NotSpecified},
	{canon: "degree_name", keys: []string{"mx_Degree_Name", "mx_Custom_17"}, sentinel: domain.NotProvided},
	{canon: "degree_university", keys: []string{"mx_Degree_University", "mx_Custom_18"}, sentinel: domain.NotProvided},
	{canon: "degree_year", keys: []string{"mx_Degree_Year", "mx_Custom_19"}, sentinel: domain.NotSpecified},
	// Financial aid & declarations
	{canon: "financial_aid_status", keys: []string{"mx_FAFSA_Status", "mx_Financial_Aid_Status", "mx_Custom_20"}, sentinel: domain.NotProvided},
	{canon: "english_test_type", keys: []string{"mx_English_Test_Type", "mx_Custom_21"}, sentinel: domain.NotProvided},
	{canon: "english_test_score", keys: []string{"mx_English_Test_Score", "mx_Custom_22"}, sentinel: domain.NotProvided},
	{canon: "declaration_agreed", keys: []string{"mx_Declaration_Agreed", "mx_Declaration", "mx_Custom_23"}, sentinel: domain.NotProvided},
}

// Variant-code source keys.
var variantKeys = []string{
	"mx_High_School_Transcript_Variant",
	"mx_College_Transcript_Variant",
	"mx_Degree_Certificate_Variant",
	"mx_FAFSA_Ack_Variant",
	"mx_English_Proficiency_Variant",
}

// Document-review variant catalogs. The sentences are locked upstream
// content; an unrecognized or absent code never errors, it maps to the
// sentinel instead.
var highSchoolTranscript = map[string]string{
	"V1": "Strong academic performance with consistently high grades.",
	"V2": "Average academic performance with no major disciplinary issues.",
	"V3": "Below average academic performance with multiple low-scoring subjects.",
	"V4": "High school transcript missing or incomplete.",
}

var collegeTranscript = map[string]string{
	"V1": "GPA: 3.6 / 4.0\nBacklogs: 0\nGap Years: 0",
	"V2": "GPA: 3.0 / 4.0\nBacklogs: 1\nGap Years: 0",
	"V3": "GPA: 2.2 / 4.0\nBacklogs: 5\nGap Years: 2",
	"V4": "GPA: 1.9 / 4.0\nBacklogs: 7\nGap Years: 3",
}

var degreeCertificate = map[string]string{
	"V1": "Degree completed and verified.",
	"V2": "Degree certificate present but university or year mismatch detected.",
	"V3": "Provisional degree certificate submitted; final certificate pending.",
	"V4": "Degree certificate missing.",
}

var fafsaAck = map[string]string{
	"Positive": "Financial aid application approved.",
	"Negative": "No financial aid approval on record.",
}

var englishProficiency = map[string]string{
	"Positive": "Required English proficiency test cleared.",
	"Negative": "Required English proficiency test not cleared.",
}

// probe walks the delivery's containers newest-first and returns the first
// non-empty sanitized value for any of the candidate keys.
func probe(d domain.Delivery, keys []string) string {
	for _, container := range []map[string]any{d.Current, d.Data, d.Lead} {
		if container == nil {
			continue
		}
		for _, k := range keys {
			v, ok := container[k]
			if !ok {
				continue
			}
			if s := textx.NormalizeSpace(domain.ScalarString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func probeOr(d domain.Delivery, keys []string, sentinel string) string {
	if v := probe(d, keys); v != "" {
		return v
	}
	return sentinel
}

func mapVariant(code string, catalog map[string]string, sentinel string) string {
	if s, ok := catalog[code]; ok {
		return s
	}
	return sentinel
}

// recognizedFieldCount counts how many catalog fields (including variant
// codes) the delivery actually carries. Feeds the insufficient-data check.
func recognizedFieldCount(d domain.Delivery) int {
	n := 0
	for _, f := range fieldCatalog {
		if probe(d, f.keys) != "" {
			n++
		}
	}
	for _, k := range variantKeys {
		if probe(d, []string{k}) != "" {
			n++
		}
	}
	return n
}

// Normalize derives the canonical ApplicantRecord from a delivery. It is
// deterministic and total: malformed or missing input always lands on a
// sentinel, never an error.
func Normalize(d domain.Delivery) domain.ApplicantRecord {
	vals := make(map[string]string, len(fieldCatalog))
	for _, f := range fieldCatalog {
		vals[f.canon] = probeOr(d, f.keys, f.sentinel)
	}
	return domain.ApplicantRecord{
		ActivityID: d.ActivityID,
		LeadID:     d.LeadID,
		Lead: domain.LeadProfile{
			FirstName: vals["first_name"],
			LastName:  vals["last_name"],
			Email:     vals["email"],
			Phone:     vals["phone"],
			BirthDate: vals["birth_date"],
			Country:   vals["country"],
		},
		Activity: domain.ActivityDetails{
			Program:            vals["program"],
			Specialization:     vals["specialization"],
			IntakeTerm:         vals["intake_term"],
			Citizenship:        vals["citizenship"],
			ResidencyStatus:    vals["residency_status"],
			HighSchoolName:     vals["high_school_name"],
			HighSchoolGrade:    vals["high_school_grade"],
			HighSchoolYear:     vals["high_school_year"],
			CollegeName:        vals["college_name"],
			CollegeMajor:       vals["college_major"],
			CollegeGPA:         vals["college_gpa"],
			CollegeYear:        vals["college_year"],
			DegreeName:         vals["degree_name"],
			DegreeUniversity:   vals["degree_university"],
			DegreeYear:         vals["degree_year"],
			FinancialAidStatus: vals["financial_aid_status"],
			EnglishTestType:    vals["english_test_type"],
			EnglishTestScore:   vals["english_test_score"],
			DeclarationAgreed:  vals["declaration_agreed"],
		},
		Variants: domain.DocumentVariants{
			HighSchoolTranscript: mapVariant(probe(d, []string{"mx_High_School_Transcript_Variant"}), highSchoolTranscript, domain.NotSubmitted),
			CollegeTranscript:    mapVariant(probe(d, []string{"mx_College_Transcript_Variant"}), collegeTranscript, domain.NotSubmitted),
			DegreeCertificate:    mapVariant(probe(d, []string{"mx_Degree_Certificate_Variant"}), degreeCertificate, domain.NotSubmitted),
			FAFSAAck:             mapVariant(probe(d, []string{"mx_FAFSA_Ack_Variant"}), fafsaAck, domain.NotApplicable),
			EnglishProficiency:   mapVariant(probe(d, []string{"mx_English_Proficiency_Variant"}), englishProficiency, domain.NotApplicable),
		},
	}
}
