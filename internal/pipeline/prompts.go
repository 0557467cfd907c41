package pipeline

import (
	"fmt"

	"github.com/drukpa1455/crewai-job/internal/agent"
	"github.com/drukpa1455/crewai-job/internal/tools"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

// Stage names double as task names and metric labels.
const (
	StageExtract     = "extract_job"
	StageCV          = "write_cv"
	StageCoverLetter = "write_cover_letter"
	StageEvaluate    = "evaluate"
	StageRender      = "render"
)

func (p *Pipeline) newAgent(role, goal, backstory string, reg tools.Registry) *agent.Agent {
	return &agent.Agent{
		Role:          role,
		Goal:          goal,
		Backstory:     backstory,
		Tools:         reg,
		LLM:           p.llm,
		MaxIterations: p.cfg.MaxToolRounds,
		CallTimeout:   p.cfg.LLMTimeout,
	}
}

func (p *Pipeline) jobAnalyst() *agent.Agent {
	return p.newAgent(
		"Job Description Crawler",
		"Extract and analyze job posting information",
		`You are an expert at analyzing job postings and extracting key information.
You focus on essential requirements, qualifications, responsibilities and company details.`,
		tools.NewRegistry(tools.WebpageContents(p.fetcher)),
	)
}

func (p *Pipeline) cvWriter(reg tools.Registry) *agent.Agent {
	return p.newAgent(
		"CV/Resume Writer",
		"Modify CV to align with job requirements while maintaining authenticity",
		`You are an experienced CV writer who tailors CVs to specific job requirements.
You stay honest: you reorganize and emphasize relevant skills and experience, you never invent them.`,
		reg,
	)
}

func (p *Pipeline) coverLetterWriter(reg tools.Registry) *agent.Agent {
	return p.newAgent(
		"Cover Letter Writer",
		"Create compelling cover letters that highlight relevant qualifications",
		`You are a professional cover letter writer.
You connect the candidate's experience with the job requirements in a genuine tone and use company research to personalize each letter.`,
		reg,
	)
}

func (p *Pipeline) recruiter() *agent.Agent {
	return p.newAgent(
		"Hiring Manager",
		"Evaluate application materials and provide constructive feedback",
		`You are an experienced hiring manager who has reviewed thousands of applications.
You give specific feedback and a fair score based on how well an application matches the job.`,
		tools.NewRegistry(tools.ReadTextFile()),
	)
}

func extractTask(a *agent.Agent, posting types.JobPosting, postingJSON string) *agent.Task {
	return &agent.Task{
		Name: StageExtract,
		Description: fmt.Sprintf(`Analyze the job posting at %s. It has already been fetched:

%s

Focus on required skills, qualifications, responsibilities and company culture.
Return ONLY a JSON object with this structure:
{
  "job_analysis": {
    "responsibilities": [],
    "qualifications": [],
    "other_details": []
  },
  "company_details": {
    "full_company_name": "",
    "location": "",
    "company_culture": ""
  }
}`, posting.URL, postingJSON),
		ExpectedOutput: "A JSON object containing the job analysis and company details",
		Agent:          a,
	}
}

func reviewCVTask(a *agent.Agent, cvPath, outPath string, deps ...*agent.Task) *agent.Task {
	return &agent.Task{
		Name: StageCV,
		Description: fmt.Sprintf(`Using the job details provided, tailor the CV at %s.

Steps:
1. Read the CV with read_text_file from %s
2. Modify the content to align with the job requirements from the job record
3. Keep it plain text with professional formatting
4. Save it with write_text_file to %s

Emphasize relevant skills and experiences.
Do not fabricate or add new information.`, cvPath, cvPath, outPath),
		ExpectedOutput: "A confirmation that the tailored CV has been saved to " + outPath,
		Agent:          a,
		Context:        deps,
	}
}

func reviewCoverLetterTask(a *agent.Agent, letterPath, outPath string, deps ...*agent.Task) *agent.Task {
	return &agent.Task{
		Name: StageCoverLetter,
		Description: fmt.Sprintf(`Using the job details provided, tailor the cover letter at %s.

Steps:
1. Read the cover letter with read_text_file from %s
2. Update the company name, job title and addressing from the company details
3. Connect the candidate's experience with the job requirements and the company culture
4. Keep it plain text with professional formatting
5. Save it with write_text_file to %s

Maintain authenticity and enthusiasm.`, letterPath, letterPath, outPath),
		ExpectedOutput: "A confirmation that the tailored cover letter has been saved to " + outPath,
		Agent:          a,
		Context:        deps,
	}
}

const cvSchema = `{
  "full_name": "string",
  "headline": "string",
  "contact": {"email": "string", "phone": "string", "location": "string", "links": ["url"]},
  "professional_summary": "string, 50 to 300 characters",
  "experience": [
    {"company": "string", "role": "string", "period": "string", "highlights": ["1 to 5 strings"]}
  ],
  "skills": ["1 to 20 strings"],
  "education": [{"institution": "string", "degree": "string", "period": "string"}]
}
"experience" holds 1 to 3 entries, the most relevant ones.`

const coverLetterSchema = `{
  "recipient": "string",
  "company_name": "string",
  "job_title": "string",
  "greeting": "string",
  "opening": "string, 50 to 600 characters",
  "body_paragraphs": ["1 to 4 paragraphs, each 50 to 1200 characters"],
  "closing": "string, 20 to 600 characters",
  "signature": "string"
}`

func renderCVTask(a *agent.Agent, cvPath string, deps ...*agent.Task) *agent.Task {
	return &agent.Task{
		Name: StageCV,
		Description: fmt.Sprintf(`Using the job details provided, tailor the CV at %s.
Read it with read_text_file, then rewrite it for this job as structured data.
Do not fabricate or add new information.

Return ONLY a JSON object matching this schema, with no other keys:
%s`, cvPath, cvSchema),
		ExpectedOutput: "A JSON object with the tailored CV",
		Agent:          a,
		Context:        deps,
	}
}

func renderCoverLetterTask(a *agent.Agent, letterPath string, deps ...*agent.Task) *agent.Task {
	return &agent.Task{
		Name: StageCoverLetter,
		Description: fmt.Sprintf(`Using the job details provided, tailor the cover letter at %s.
Read it with read_text_file, then rewrite it for this job and company as structured data.

Return ONLY a JSON object matching this schema, with no other keys:
%s`, letterPath, coverLetterSchema),
		ExpectedOutput: "A JSON object with the tailored cover letter",
		Agent:          a,
		Context:        deps,
	}
}

func evaluateTask(a *agent.Agent, cvOut, letterOut string, deps ...*agent.Task) *agent.Task {
	return &agent.Task{
		Name: StageEvaluate,
		Description: fmt.Sprintf(`Review the tailored CV and cover letter against the job requirements.

Steps:
1. Use the job analysis from the job record
2. Read both files with read_text_file: %s and %s
3. Score the application from 0 to 100
4. Give specific feedback and suggestions for improvement

Return a JSON object: {"score": 0-100, "feedback": "string", "suggestions": ["string"]}`, cvOut, letterOut),
		ExpectedOutput: "A detailed evaluation report with score and specific feedback",
		Agent:          a,
		Context:        deps,
	}
}

func readOnly() tools.Registry {
	return tools.NewRegistry(tools.ReadTextFile())
}

func readWrite(log *tools.WriteLog) tools.Registry {
	return tools.NewRegistry(tools.ReadTextFile(), tools.WriteTextFile(log))
}
