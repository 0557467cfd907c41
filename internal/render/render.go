package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	CVTemplate          = "cv.html"
	CoverLetterTemplate = "cover_letter.html"
)

// Converter turns a self-contained HTML page into a PDF and a JPEG of its
// first page.
type Converter interface {
	Convert(ctx context.Context, html string) (pdf []byte, jpeg []byte, err error)
}

// Result is what a render reports back. It is also the payload of the
// render_document tool, so its JSON shape is stable.
type Result struct {
	Success  bool   `json:"success"`
	PDFPath  string `json:"pdf_path,omitempty"`
	JPEGPath string `json:"jpeg_path,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (r Result) JSON() string {
	b, _ := json.Marshal(r)
	return string(b)
}

type Renderer struct {
	TemplateDir string
	OutputDir   string
	Converter   Converter
	Timeout     time.Duration
}

func New(templateDir, outputDir string, conv Converter, timeout time.Duration) *Renderer {
	return &Renderer{
		TemplateDir: templateDir,
		OutputDir:   outputDir,
		Converter:   conv,
		Timeout:     timeout,
	}
}

// Render fills the named template with data and writes <outputName>.pdf and
// <outputName>.jpg into the output directory. Failures, including panics in
// the converter, are reported in the Result.
func (r *Renderer) Render(ctx context.Context, templateName string, data any, outputName string) (res Result) {
	logger := slog.With("component", "render", "template", templateName)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res = Result{Success: false, Error: fmt.Sprintf("render panicked: %v", p)}
		}
		if res.Success {
			logger.InfoContext(ctx, "document rendered",
				"pdf", res.PDFPath,
				"jpeg", res.JPEGPath,
				"duration_ms", time.Since(start).Milliseconds())
		} else {
			logger.ErrorContext(ctx, "document render failed", "error", res.Error)
		}
	}()

	html, err := r.execute(templateName, data)
	if err != nil {
		return Result{Error: err.Error()}
	}
	if r.Converter == nil {
		return Result{Error: "no HTML converter configured"}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	pdf, jpeg, err := r.Converter.Convert(ctx, html)
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to convert %s: %v", templateName, err)}
	}

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create output directory: %v", err)}
	}
	base := filepath.Join(r.OutputDir, strings.TrimSuffix(outputName, filepath.Ext(outputName)))
	pdfPath, jpegPath := base+".pdf", base+".jpg"
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return Result{Error: fmt.Sprintf("failed to write PDF: %v", err)}
	}
	if err := os.WriteFile(jpegPath, jpeg, 0644); err != nil {
		return Result{Error: fmt.Sprintf("failed to write JPEG: %v", err)}
	}
	return Result{Success: true, PDFPath: pdfPath, JPEGPath: jpegPath}
}

func (r *Renderer) execute(templateName string, data any) (string, error) {
	if templateName != filepath.Base(templateName) {
		return "", fmt.Errorf("invalid template name %q", templateName)
	}
	path := filepath.Join(r.TemplateDir, templateName)
	tmpl, err := template.New(templateName).ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}
