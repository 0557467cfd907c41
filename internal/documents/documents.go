package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Contact struct {
	Email    string   `json:"email" validate:"omitempty,email"`
	Phone    string   `json:"phone,omitempty"`
	Location string   `json:"location,omitempty"`
	Links    []string `json:"links,omitempty" validate:"omitempty,dive,url"`
}

type Experience struct {
	Company    string   `json:"company" validate:"required"`
	Role       string   `json:"role" validate:"required"`
	Period     string   `json:"period" validate:"required"`
	Highlights []string `json:"highlights" validate:"min=1,max=5,dive,required"`
}

type Education struct {
	Institution string `json:"institution" validate:"required"`
	Degree      string `json:"degree" validate:"required"`
	Period      string `json:"period,omitempty"`
}

// CV is the structured CV a writer agent must produce in the render variant.
type CV struct {
	FullName            string       `json:"full_name" validate:"required"`
	Headline            string       `json:"headline" validate:"required"`
	Contact             Contact      `json:"contact"`
	ProfessionalSummary string       `json:"professional_summary" validate:"min=50,max=300"`
	Experience          []Experience `json:"experience" validate:"min=1,max=3,dive"`
	Skills              []string     `json:"skills" validate:"min=1,max=20,dive,required"`
	Education           []Education  `json:"education,omitempty" validate:"dive"`
}

type CoverLetter struct {
	Recipient      string   `json:"recipient" validate:"required"`
	CompanyName    string   `json:"company_name" validate:"required"`
	JobTitle       string   `json:"job_title" validate:"required"`
	Greeting       string   `json:"greeting" validate:"required"`
	Opening        string   `json:"opening" validate:"min=50,max=600"`
	BodyParagraphs []string `json:"body_paragraphs" validate:"min=1,max=4,dive,min=50,max=1200"`
	Closing        string   `json:"closing" validate:"min=20,max=600"`
	Signature      string   `json:"signature" validate:"required"`
}

// DecodeCV strictly decodes and validates a CV. Unknown fields are rejected.
func DecodeCV(data []byte) (CV, error) {
	var cv CV
	if err := decodeStrict(bytes.NewReader(data), &cv); err != nil {
		return CV{}, fmt.Errorf("invalid CV JSON: %w", err)
	}
	if err := Validate(cv); err != nil {
		return CV{}, err
	}
	return cv, nil
}

func DecodeCoverLetter(data []byte) (CoverLetter, error) {
	var cl CoverLetter
	if err := decodeStrict(bytes.NewReader(data), &cl); err != nil {
		return CoverLetter{}, fmt.Errorf("invalid cover letter JSON: %w", err)
	}
	if err := Validate(cl); err != nil {
		return CoverLetter{}, err
	}
	return cl, nil
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON document")
	}
	return nil
}

// SanitizeFilename makes a company name or job title safe to embed in a file
// name: reserved characters are removed, spaces become underscores and
// non-ASCII runes are dropped.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
		case r == ' ':
			b.WriteRune('_')
		case r > 127:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
