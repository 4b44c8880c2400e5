// Package sharecodec turns assessment results into URL-safe share tokens and back.
//
// Tokens are base64 of the JSON payload with the URL-unsafe characters remapped.
// They are not signed or encrypted: anyone holding a token can read and forge
// it, so a token must never be treated as a credential.
package sharecodec

// OrganizationData describes the organization that took the assessment
type OrganizationData struct {
	OrganizationName string `json:"organizationName"`
	Industry         string `json:"industry"`
	EmployeeCount    string `json:"employeeCount"`
}

// ShareableAssessmentData is the payload carried by a share link
type ShareableAssessmentData struct {
	Answers          map[string]float64 `json:"answers"`
	OrganizationData *OrganizationData  `json:"organizationData"`
	CompletedAt      string             `json:"completedAt"`
}

// Validate checks that both required sections are present
func (d *ShareableAssessmentData) Validate() error {
	if d.Answers == nil {
		return &ValidationError{Field: "answers"}
	}
	if d.OrganizationData == nil {
		return &ValidationError{Field: "organizationData"}
	}
	return nil
}
