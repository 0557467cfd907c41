package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/drukpa1455/crewai-job/internal/agent"
	"github.com/drukpa1455/crewai-job/internal/cleaner"
	"github.com/drukpa1455/crewai-job/internal/documents"
	"github.com/drukpa1455/crewai-job/internal/llm"
	"github.com/drukpa1455/crewai-job/internal/metrics"
	"github.com/drukpa1455/crewai-job/internal/render"
	"github.com/drukpa1455/crewai-job/internal/scrape"
	"github.com/drukpa1455/crewai-job/internal/tools"
	"github.com/drukpa1455/crewai-job/pkg/logger"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

// ErrRunInProgress is returned when another run holds the output directory.
var ErrRunInProgress = errors.New("another run is already in progress")

const lockFile = ".applycrew.lock"

var clean = cleaner.NewCleaner()

type RunStore interface {
	SaveRun(ctx context.Context, r types.Run) error
}

type Config struct {
	CVPath          string
	CoverLetterPath string
	OutputDir       string
	Variant         types.Variant
	MaxToolRounds   int
	LLMTimeout      time.Duration
}

type Pipeline struct {
	cfg      Config
	llm      llm.Client
	fetcher  tools.PostingFetcher
	renderer tools.DocumentRenderer
	store    RunStore
	metrics  metrics.Sink
}

type Option func(*Pipeline)

func WithStore(s RunStore) Option      { return func(p *Pipeline) { p.store = s } }
func WithMetrics(m metrics.Sink) Option { return func(p *Pipeline) { p.metrics = m } }

func New(cfg Config, client llm.Client, fetcher tools.PostingFetcher, renderer tools.DocumentRenderer, opts ...Option) *Pipeline {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if !cfg.Variant.Valid() {
		cfg.Variant = types.VariantReview
	}
	p := &Pipeline{
		cfg:      cfg,
		llm:      client,
		fetcher:  fetcher,
		renderer: renderer,
		metrics:  metrics.Noop{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ForVariant returns a copy of p that runs the given variant.
func (p *Pipeline) ForVariant(v types.Variant) *Pipeline {
	c := *p
	if v.Valid() {
		c.cfg.Variant = v
	}
	return &c
}

// Result is everything a run produced. Fields for the other variant stay
// empty.
type Result struct {
	Run         types.Run               `json:"run"`
	Record      types.JobRecord         `json:"job_record"`
	CV          *documents.CV           `json:"cv,omitempty"`
	CoverLetter *documents.CoverLetter  `json:"cover_letter,omitempty"`
	Evaluation  *types.Evaluation       `json:"evaluation,omitempty"`
	Rendered    *types.RenderedArtifact `json:"rendered,omitempty"`
	Final       string                  `json:"final"`
}

// Run executes the four stages for one job URL. Every run is recorded in the
// store, whether it succeeds or not.
func (p *Pipeline) Run(ctx context.Context, jobURL string) (res *Result, err error) {
	res = &Result{Run: types.Run{
		ID:        uuid.NewString(),
		JobURL:    strings.TrimSpace(jobURL),
		Variant:   p.cfg.Variant,
		CreatedAt: time.Now().UTC(),
	}}
	ctx = logger.WithRunID(ctx, res.Run.ID)

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return res, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(p.cfg.OutputDir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return res, ErrRunInProgress
	}
	defer lock.Unlock()

	start := time.Now()
	slog.InfoContext(ctx, "starting job application run",
		"component", "pipeline",
		"variant", string(p.cfg.Variant),
		"url", res.Run.JobURL)
	defer func() {
		p.finish(ctx, res, err, time.Since(start))
	}()

	// Stage 1 scrapes deterministically; the agent only analyses the result.
	fetchStart := time.Now()
	posting, err := p.fetcher.Fetch(ctx, res.Run.JobURL)
	p.metrics.ScrapeCompleted(countPlaceholders(posting), err)
	if err != nil {
		p.metrics.StageCompleted(StageExtract, time.Since(fetchStart), err)
		return res, fmt.Errorf("job extraction failed: %w", err)
	}
	res.Run.Title, res.Run.Company = posting.Title, posting.Company
	postingJSON, _ := json.MarshalIndent(posting, "", "  ")

	extract := extractTask(p.jobAnalyst(), posting, string(postingJSON))
	crew := &agent.Crew{
		OnTaskDone: func(t *agent.Task, d time.Duration, err error) {
			p.metrics.StageCompleted(t.Name, d, err)
			p.metrics.LLMTokens(t.Name, t.Usage.TotalTokens)
		},
	}

	fi := types.FileOrganizationInfo{
		CompanyName: documents.SanitizeFilename(posting.Company),
		JobTitle:    documents.SanitizeFilename(posting.Title),
	}
	cvOut := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("CV_%s_%s.txt", fi.CompanyName, fi.JobTitle))
	letterOut := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("Cover_Letter_%s_%s.txt", fi.CompanyName, fi.JobTitle))

	written := tools.NewWriteLog()
	var cvTask, letterTask, evalTask *agent.Task
	switch p.cfg.Variant {
	case types.VariantRender:
		cvTask = renderCVTask(p.cvWriter(readOnly()), p.cfg.CVPath, extract)
		letterTask = renderCoverLetterTask(p.coverLetterWriter(readOnly()), p.cfg.CoverLetterPath, extract)
		crew.Tasks = []*agent.Task{extract, cvTask, letterTask}
	default:
		cvTask = reviewCVTask(p.cvWriter(readWrite(written)), p.cfg.CVPath, cvOut, extract)
		letterTask = reviewCoverLetterTask(p.coverLetterWriter(readWrite(written)), p.cfg.CoverLetterPath, letterOut, extract)
		evalTask = evaluateTask(p.recruiter(), cvOut, letterOut, extract, cvTask, letterTask)
		crew.Tasks = []*agent.Task{extract, cvTask, letterTask, evalTask}
	}

	crew.AfterTask = func(ctx context.Context, t *agent.Task) error {
		switch t {
		case extract:
			rec, err := buildRecord(t.Output, posting, fi)
			if err != nil {
				return err
			}
			res.Record = rec
			canonical, _ := json.MarshalIndent(rec, "", "  ")
			t.Output = string(canonical)
		case cvTask:
			if p.cfg.Variant == types.VariantRender {
				cv, err := documents.DecodeCV([]byte(jsonOnly(t.Output)))
				if err != nil {
					return fmt.Errorf("CV writer output rejected: %w", err)
				}
				res.CV = &cv
				return nil
			}
			return p.ensureWritten(ctx, res, written, cvOut, t.Output)
		case letterTask:
			if p.cfg.Variant == types.VariantRender {
				cl, err := documents.DecodeCoverLetter([]byte(jsonOnly(t.Output)))
				if err != nil {
					return fmt.Errorf("cover letter writer output rejected: %w", err)
				}
				res.CoverLetter = &cl
				return nil
			}
			return p.ensureWritten(ctx, res, written, letterOut, t.Output)
		case evalTask:
			ev := ParseEvaluation(t.Output)
			res.Evaluation = &ev
			res.Run.Score = ev.Score
		}
		return nil
	}

	final, err := crew.Kickoff(ctx)
	if err != nil {
		return res, err
	}
	res.Final = final

	if p.cfg.Variant == types.VariantRender {
		if err := p.renderDocuments(ctx, res); err != nil {
			return res, err
		}
		res.Final = fmt.Sprintf("Rendered %s, %s, %s and %s",
			res.Rendered.CVPDF, res.Rendered.CVJPEG, res.Rendered.CoverLetterPDF, res.Rendered.CoverLetterJPEG)
	}
	return res, nil
}

// renderDocuments runs the render_document tool for both documents. Both
// renders are attempted even when the first one fails.
func (p *Pipeline) renderDocuments(ctx context.Context, res *Result) error {
	start := time.Now()
	reg := tools.NewRegistry(tools.RenderDocument(p.renderer))

	var errs []string
	art := &types.RenderedArtifact{}
	for _, doc := range []struct {
		template, output string
		data         any
		pdf, jpeg    *string
	}{
		{render.CVTemplate, "cv", res.CV, &art.CVPDF, &art.CVJPEG},
		{render.CoverLetterTemplate, "cover_letter", res.CoverLetter, &art.CoverLetterPDF, &art.CoverLetterJPEG},
	} {
		data, err := json.Marshal(doc.data)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", doc.template, err))
			continue
		}
		payload := reg.Call(ctx, "render_document", map[string]string{
			"template":    doc.template,
			"data":        string(data),
			"output_name": doc.output,
		})
		ok := gjson.Get(payload, "success").Bool()
		p.metrics.RenderCompleted(doc.template, ok)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: %s", doc.template, gjson.Get(payload, "error").String()))
			continue
		}
		*doc.pdf = gjson.Get(payload, "pdf_path").String()
		*doc.jpeg = gjson.Get(payload, "jpeg_path").String()
		res.Run.Outputs = append(res.Run.Outputs, *doc.pdf, *doc.jpeg)
	}

	var err error
	if len(errs) > 0 {
		err = fmt.Errorf("rendering failed: %s", strings.Join(errs, "; "))
	}
	p.metrics.StageCompleted(StageRender, time.Since(start), err)
	if err != nil {
		return err
	}
	res.Rendered = art
	return nil
}

// ensureWritten falls back to writing the agent's answer when the agent
// did not save the file itself during this run. A file left by an earlier
// run is overwritten.
func (p *Pipeline) ensureWritten(ctx context.Context, res *Result, written *tools.WriteLog, path, answer string) error {
	if !written.Wrote(path) {
		if strings.TrimSpace(answer) == "" {
			return fmt.Errorf("agent neither wrote %s nor returned its content", path)
		}
		slog.WarnContext(ctx, "agent did not write its output, saving final answer",
			"component", "pipeline", "path", path)
		if err := os.WriteFile(path, []byte(answer+"\n"), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	res.Run.Outputs = append(res.Run.Outputs, path)
	return nil
}

func (p *Pipeline) finish(ctx context.Context, res *Result, err error, elapsed time.Duration) {
	res.Run.Status = types.RunSucceeded
	if err != nil {
		res.Run.Status = types.RunFailed
		res.Run.Error = err.Error()
		slog.ErrorContext(ctx, "run failed", "component", "pipeline", "error", err, "duration_ms", elapsed.Milliseconds())
	} else {
		slog.InfoContext(ctx, "run finished", "component", "pipeline",
			"duration_ms", elapsed.Milliseconds(), "outputs", len(res.Run.Outputs))
	}
	p.metrics.RunCompleted(string(p.cfg.Variant), elapsed, err)
	if p.store != nil {
		// Record even when the caller's context is already cancelled.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := p.store.SaveRun(sctx, res.Run); serr != nil {
			slog.ErrorContext(ctx, "failed to record run", "component", "pipeline", "error", serr)
		}
	}
}

// buildRecord merges the analyst's JSON with the scraped posting and the
// sanitized file names, which always win over what the model returned.
func buildRecord(answer string, posting types.JobPosting, fi types.FileOrganizationInfo) (types.JobRecord, error) {
	js, ok := clean.ExtractJSON(answer)
	if !ok || !gjson.Get(js, "@this").IsObject() {
		return types.JobRecord{}, fmt.Errorf("job analyst did not return a JSON object")
	}
	var rec types.JobRecord
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		return types.JobRecord{}, fmt.Errorf("decode job record: %w", err)
	}
	rec.Posting = posting
	rec.FileInfo = fi
	if rec.Company.FullCompanyName == "" && !scrape.IsPlaceholder(posting.Company) {
		rec.Company.FullCompanyName = posting.Company
	}
	if rec.Company.Location == "" && !scrape.IsPlaceholder(posting.Location) {
		rec.Company.Location = posting.Location
	}
	return rec, nil
}

func jsonOnly(answer string) string {
	js, _ := clean.ExtractJSON(answer)
	return js
}

func countPlaceholders(p types.JobPosting) int {
	n := 0
	for _, v := range []string{p.Title, p.Company, p.Location, p.Description} {
		if scrape.IsPlaceholder(v) {
			n++
		}
	}
	return n
}
