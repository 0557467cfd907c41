package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/drukpa1455/crewai-job/internal/documents"
	"github.com/drukpa1455/crewai-job/internal/llm"
	"github.com/drukpa1455/crewai-job/internal/render"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

// Tool is a function an agent may call. Run never returns a Go error: every
// failure is reported to the model as text.
type Tool struct {
	llm.ToolSpec
	Run func(ctx context.Context, args map[string]string) string
}

type Registry map[string]Tool

func NewRegistry(ts ...Tool) Registry {
	r := make(Registry, len(ts))
	for _, t := range ts {
		r[t.Name] = t
	}
	return r
}

func (r Registry) Specs() []llm.ToolSpec {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	specs := make([]llm.ToolSpec, 0, len(r))
	for _, n := range names {
		specs = append(specs, r[n].ToolSpec)
	}
	return specs
}

// Call runs the named tool. Unknown names produce an error string.
func (r Registry) Call(ctx context.Context, name string, args map[string]string) string {
	t, ok := r[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}
	return t.Run(ctx, args)
}

func ReadTextFile() Tool {
	return Tool{
		ToolSpec: llm.ToolSpec{
			Name:        "read_text_file",
			Description: "Reads a text file and returns the content",
			Params:      []llm.Param{{Name: "file_path", Description: "Path of the file to read"}},
		},
		Run: func(_ context.Context, args map[string]string) string {
			data, err := os.ReadFile(args["file_path"])
			if err != nil {
				return fmt.Sprintf("Error reading file: %v", err)
			}
			return string(data)
		},
	}
}

// WriteLog remembers which files write_text_file saved. A nil *WriteLog
// records nothing.
type WriteLog struct {
	mu    sync.Mutex
	paths map[string]bool
}

func NewWriteLog() *WriteLog {
	return &WriteLog{paths: map[string]bool{}}
}

// Wrote reports whether path was written through the tool.
func (l *WriteLog) Wrote(path string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paths[logKey(path)]
}

func (l *WriteLog) record(path string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths[logKey(path)] = true
}

func logKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// WriteTextFile saves content to a file. Successful writes are recorded in
// log when it is non-nil.
func WriteTextFile(log *WriteLog) Tool {
	return Tool{
		ToolSpec: llm.ToolSpec{
			Name:        "write_text_file",
			Description: "Writes content to a text file, creating parent directories as needed",
			Params: []llm.Param{
				{Name: "file_path", Description: "Path of the file to write"},
				{Name: "content", Description: "Full text to write"},
			},
		},
		Run: func(_ context.Context, args map[string]string) string {
			path := args["file_path"]
			if path == "" {
				return "Error writing file: file_path is empty"
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Sprintf("Error writing file: %v", err)
			}
			if err := os.WriteFile(path, []byte(args["content"]), 0644); err != nil {
				return fmt.Sprintf("Error writing file: %v", err)
			}
			log.record(path)
			slog.Debug("tool wrote file", "component", "tools", "path", path, "bytes", len(args["content"]))
			return fmt.Sprintf("Successfully wrote to %s", path)
		},
	}
}

// PostingFetcher is the part of the scraper the webpage tool needs.
type PostingFetcher interface {
	Fetch(ctx context.Context, url string) (types.JobPosting, error)
}

func WebpageContents(f PostingFetcher) Tool {
	return Tool{
		ToolSpec: llm.ToolSpec{
			Name:        "get_webpage_contents",
			Description: "Reads the webpage with a given URL and returns the job posting as JSON",
			Params:      []llm.Param{{Name: "url", Description: "URL of the job posting"}},
		},
		Run: func(ctx context.Context, args map[string]string) string {
			p, err := f.Fetch(ctx, args["url"])
			if err != nil {
				return fmt.Sprintf("Error fetching webpage: %v", err)
			}
			out := "{}"
			for _, kv := range [][2]string{
				{"title", p.Title},
				{"company", p.Company},
				{"location", p.Location},
				{"description", p.Description},
			} {
				out, _ = sjson.Set(out, kv[0], kv[1])
			}
			return out
		},
	}
}

// DocumentRenderer is satisfied by *render.Renderer.
type DocumentRenderer interface {
	Render(ctx context.Context, templateName string, data any, outputName string) render.Result
}

func RenderDocument(r DocumentRenderer) Tool {
	return Tool{
		ToolSpec: llm.ToolSpec{
			Name:        "render_document",
			Description: "Renders an HTML template with JSON data to a PDF and a JPEG preview",
			Params: []llm.Param{
				{Name: "template", Description: "Template file name, e.g. cv.html"},
				{Name: "data", Description: "JSON object used to fill the template"},
				{Name: "output_name", Description: "Base name of the output files"},
			},
		},
		Run: func(ctx context.Context, args map[string]string) string {
			data := strings.TrimSpace(args["data"])
			if !gjson.Valid(data) {
				return failure("data is not valid JSON")
			}
			name := args["output_name"]
			if name == "" {
				name = strings.TrimSuffix(args["template"], filepath.Ext(args["template"]))
			}
			doc, err := decodeFor(args["template"], []byte(data))
			if err != nil {
				return failure(err.Error())
			}
			return r.Render(ctx, args["template"], doc, name).JSON()
		},
	}
}

// decodeFor validates data against the schema of the known templates. Other
// templates get the raw JSON value.
func decodeFor(templateName string, data []byte) (any, error) {
	switch templateName {
	case render.CVTemplate:
		return documents.DecodeCV(data)
	case render.CoverLetterTemplate:
		return documents.DecodeCoverLetter(data)
	}
	return gjson.ParseBytes(data).Value(), nil
}

func failure(msg string) string {
	out, _ := sjson.Set(`{"success":false}`, "error", msg)
	return out
}
