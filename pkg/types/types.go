package types

import "time"

// =============== Extraction TYPES ===============
type JobPosting struct {
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type JobAnalysis struct {
	Responsibilities []string `json:"responsibilities"`
	Qualifications   []string `json:"qualifications"`
	OtherDetails     []string `json:"other_details"`
}

type FileOrganizationInfo struct {
	CompanyName string `json:"company_name"`
	JobTitle    string `json:"job_title"`
}

type CompanyDetails struct {
	FullCompanyName string `json:"full_company_name"`
	Location        string `json:"location"`
	CompanyCulture  string `json:"company_culture"`
}

// JobRecord is the output of the first stage and the context every later
// stage works from.
type JobRecord struct {
	Posting  JobPosting           `json:"job_posting"`
	Analysis JobAnalysis          `json:"job_analysis"`
	FileInfo FileOrganizationInfo `json:"file_organization_info"`
	Company  CompanyDetails       `json:"company_details"`
}

// =============== Evaluation TYPES ===============
type Evaluation struct {
	Score       *int     `json:"score,omitempty"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// =============== Output TYPES ===============
type RenderedArtifact struct {
	CVPDF           string `json:"cv_pdf,omitempty"`
	CVJPEG          string `json:"cv_jpeg,omitempty"`
	CoverLetterPDF  string `json:"cover_letter_pdf,omitempty"`
	CoverLetterJPEG string `json:"cover_letter_jpeg,omitempty"`
}

type Variant string

const (
	VariantReview Variant = "review"
	VariantRender Variant = "render"
)

func (v Variant) Valid() bool {
	return v == VariantReview || v == VariantRender
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	JobURL    string    `json:"job_url"`
	Variant   Variant   `json:"variant"`
	Title     string    `json:"title,omitempty"`
	Company   string    `json:"company,omitempty"`
	Score     *int      `json:"score,omitempty"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
