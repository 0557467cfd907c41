package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drukpa1455/crewai-job/internal/config"
	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

var (
	runVariant     string
	runCVPath      string
	runLetterPath  string
	runOutputDir   string
	runProvider    string
	runStrict      bool
	runTemplateDir string
)

var runCmd = &cobra.Command{
	Use:   "run [job-url]",
	Short: "Tailor the CV and cover letter to one job posting",
	Long: `Run the four-stage crew against a job posting.

Without a URL argument you are prompted for one.

Example:
  applycrew run https://boards.greenhouse.io/acme/jobs/123
  applycrew run --variant render https://boards.greenhouse.io/acme/jobs/123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runVariant, "variant", "", "review (text files and a score) or render (PDF and JPEG)")
	runCmd.Flags().StringVar(&runCVPath, "cv", "", "input CV text file")
	runCmd.Flags().StringVar(&runLetterPath, "cover-letter", "", "input cover letter text file")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "output directory")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "LLM provider: openai or gemini")
	runCmd.Flags().StringVar(&runTemplateDir, "templates", "", "HTML template directory for the render variant")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "fail when the posting title or company cannot be found")
}

func runOverrides(cfg *config.Config) {
	if runVariant != "" {
		cfg.Variant = types.Variant(strings.ToLower(runVariant))
	}
	if runCVPath != "" {
		cfg.CVPath = runCVPath
	}
	if runLetterPath != "" {
		cfg.CoverLetterPath = runLetterPath
	}
	if runOutputDir != "" {
		cfg.OutputDir = runOutputDir
	}
	if runProvider != "" {
		cfg.LLMProvider = strings.ToLower(runProvider)
	}
	if runTemplateDir != "" {
		cfg.TemplateDir = runTemplateDir
	}
	if runStrict {
		cfg.StrictExtraction = true
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runOverrides)
	if err != nil {
		return err
	}
	ctx, stop := runContext(cmd)
	defer stop()

	jobURL := ""
	if len(args) == 1 {
		jobURL = args[0]
	} else {
		jobURL, err = promptURL(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nStarting job application process...")
	fmt.Fprintf(out, "Job URL: %s\n", jobURL)
	fmt.Fprintf(out, "Variant: %s\n", cfg.Variant)
	fmt.Fprintf(out, "Input CV Path: %s\n", cfg.CVPath)
	fmt.Fprintf(out, "Input Cover Letter Path: %s\n", cfg.CoverLetterPath)
	fmt.Fprintf(out, "Output Directory: %s\n", cfg.OutputDir)
	if cfg.Variant == types.VariantReview {
		fmt.Fprintln(out, "Note: Modified files will be saved as .txt files in the output directory")
	}
	fmt.Fprintln(out)

	res, err := p.Run(ctx, jobURL)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

// promptURL asks for a URL until a non-empty line is given.
func promptURL(in io.Reader, out io.Writer) (string, error) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nPlease enter the job posting URL: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("no job URL provided")
		}
		if u := strings.TrimSpace(sc.Text()); u != "" {
			return u, nil
		}
	}
}

func printResult(out io.Writer, res *pipeline.Result) {
	fmt.Fprintln(out, "\nFinal Result:")
	fmt.Fprintln(out, res.Final)
	if len(res.Run.Outputs) > 0 {
		fmt.Fprintln(out, "\nFiles:")
		for _, f := range res.Run.Outputs {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	if res.Evaluation != nil && res.Evaluation.Score != nil {
		fmt.Fprintf(out, "\nScore: %d/100\n", *res.Evaluation.Score)
	}
}

// runContext is shared by commands that only need cancellation on signals.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
