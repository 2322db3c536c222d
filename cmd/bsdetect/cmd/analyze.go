package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/japaniel/bsdetect/pkg/analysis"
	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/batch"
	"github.com/japaniel/bsdetect/pkg/lexicon"
)

type analyzeOptions struct {
	text    string
	files   []string
	urls    []string
	docURLs []string
	mime    string
	lang    string
	workers int
	asJSON  bool
}

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	o := &analyzeOptions{}
	c := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze text, files or URLs",
		Long: "Analyze pasted text (--text, or '-' for stdin), local documents (--file), " +
			"web pages (--url) or remote documents (--doc-url). Several inputs run concurrently.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, o)
		},
	}
	c.Flags().StringVar(&o.text, "text", "", "text to analyze; '-' reads stdin")
	c.Flags().StringArrayVar(&o.files, "file", nil, "document to analyze (pdf, docx, doc, txt); repeatable")
	c.Flags().StringArrayVar(&o.urls, "url", nil, "web page to analyze; repeatable")
	c.Flags().StringArrayVar(&o.docURLs, "doc-url", nil, "remote document (http, https or data URL); repeatable")
	c.Flags().StringVar(&o.mime, "mime", "", "MIME type for --file and --doc-url inputs")
	c.Flags().StringVar(&o.lang, "lang", "en", "language: no or en")
	c.Flags().IntVar(&o.workers, "workers", 0, "concurrent analyses (default from config)")
	c.Flags().BoolVar(&o.asJSON, "json", false, "print results as JSON")
	return c
}

type analyzeOutput struct {
	Input  string           `json:"input"`
	Result *analysis.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, opts *globalOptions, o *analyzeOptions) error {
	lang, err := lexicon.ParseLanguage(o.lang)
	if err != nil {
		return err
	}
	text := o.text
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if text == "" && len(o.files) == 0 && len(o.urls) == 0 && len(o.docURLs) == 0 {
		return errors.New("nothing to analyze: pass --text, --file, --url or --doc-url")
	}

	a, closeApp, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()
	svc := a.service

	var tasks []batch.Task
	if text != "" {
		tasks = append(tasks, batch.Task{Name: "text", Run: func(ctx context.Context) (*analysis.Result, error) {
			return svc.AnalyzeText(ctx, text, lang)
		}})
	}
	for _, path := range o.files {
		path := path
		tasks = append(tasks, batch.Task{Name: path, Run: func(ctx context.Context) (*analysis.Result, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return svc.AnalyzeUpload(ctx, filepath.Base(path), data, o.mime, lang)
		}})
	}
	for _, u := range o.urls {
		u := u
		tasks = append(tasks, batch.Task{Name: u, Run: func(ctx context.Context) (*analysis.Result, error) {
			return svc.AnalyzeURL(ctx, u, lang)
		}})
	}
	for _, u := range o.docURLs {
		u := u
		tasks = append(tasks, batch.Task{Name: shortName(u), Run: func(ctx context.Context) (*analysis.Result, error) {
			return svc.AnalyzeDocument(ctx, u, o.mime, lang)
		}})
	}

	workers := o.workers
	if workers <= 0 {
		workers = a.cfg.Analysis.Workers
	}
	runner := &batch.Runner{Workers: workers, Logger: a.logger.Named("batch")}
	outcomes := runner.Run(cmd.Context(), tasks)

	out := cmd.OutOrStdout()
	failed := 0
	results := make([]analyzeOutput, 0, len(outcomes))
	for _, oc := range outcomes {
		item := analyzeOutput{Input: oc.Name, Result: oc.Result}
		if oc.Err != nil {
			failed++
			item.Result = nil
			item.Error = apperr.Message(oc.Err, string(lang))
		}
		results = append(results, item)
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			printResult(out, r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(outcomes))
	}
	return nil
}

func printResult(w io.Writer, r analyzeOutput) {
	fmt.Fprintf(w, "== %s\n", r.Input)
	if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
		return
	}
	res := r.Result
	fmt.Fprintf(w, "score: %d (%s)\n", res.Score, res.Band)
	if len(res.Buzzwords) > 0 {
		fmt.Fprintf(w, "buzzwords: %s\n", strings.Join(res.Buzzwords, ", "))
	}
	if res.Explanation != "" {
		fmt.Fprintf(w, "explanation: %s\n", res.Explanation)
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	fmt.Fprintf(w, "id: %s\n", res.ID)
}

// shortName keeps data URLs out of the output.
func shortName(u string) string {
	if len(u) > 5 && strings.EqualFold(u[:5], "data:") {
		meta, _, _ := strings.Cut(u, ",")
		return meta + ",..."
	}
	return u
}
