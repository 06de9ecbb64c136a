package main

import (
	"fmt"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/evaluator"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/spf13/cobra"
)

type challengeResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Passed bool   `json:"passed"`
	Hint   string `json:"hint,omitempty"`
}

type checkReport struct {
	Kind       domain.ContentKind `json:"kind"`
	Slug       string             `json:"slug"`
	Challenges []challengeResult  `json:"challenges"`
	Completed  []string           `json:"completed"`
	Percentage int                `json:"percentage"`
}

// codeSource picks the buffers of a command: authored code or local files.
type codeSource struct {
	htmlPath, cssPath string
	solution, starter bool
}

func (s *codeSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.htmlPath, "html", "", "HTML file")
	cmd.Flags().StringVar(&s.cssPath, "css", "", "CSS file")
	cmd.Flags().BoolVar(&s.solution, "solution", false, "Use the authored solution instead of files")
	cmd.Flags().BoolVar(&s.starter, "starter", false, "Use the starter code instead of files")
	cmd.MarkFlagsMutuallyExclusive("solution", "starter")
}

func (s *codeSource) code(entry *domain.Entry) (domain.Code, error) {
	switch {
	case s.solution:
		if !entry.HasSolution() {
			return domain.Code{}, fmt.Errorf("%s %q has no solution", entry.Kind, entry.Slug)
		}
		return entry.Solution, nil
	case s.starter:
		return entry.Starter, nil
	}
	html, err := readFile(s.htmlPath)
	if err != nil {
		return domain.Code{}, err
	}
	css, err := readFile(s.cssPath)
	if err != nil {
		return domain.Code{}, err
	}
	return domain.Code{HTML: html, CSS: css}, nil
}

func newCheckCommand(opts *options) *cobra.Command {
	var (
		kindName string
		slug     string
		timeout  time.Duration
		failFast bool
		src      codeSource
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate HTML/CSS files against the challenges of a lesson or project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseContentKind(kindName)
			if err != nil {
				return err
			}
			c, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			entry, err := c.Entry(kind, slug)
			if err != nil {
				return err
			}
			code, err := src.code(entry)
			if err != nil {
				return err
			}

			report := evaluate(evaluator.New(timeout), entry, code)
			if opts.outputFormat == "table" {
				out := cmd.OutOrStdout()
				for _, ch := range report.Challenges {
					mark := "✗"
					if ch.Passed {
						mark = "✓"
					}
					fmt.Fprintf(out, "%s %-8s %s\n", mark, ch.ID, ch.Title)
				}
				fmt.Fprintf(out, "%d%% (%d/%d)\n", report.Percentage, len(report.Completed), len(report.Challenges))
			} else if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if failFast && len(report.Completed) < len(report.Challenges) {
				return fmt.Errorf("%d of %d challenges incomplete", len(report.Challenges)-len(report.Completed), len(report.Challenges))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "lesson", "lesson or project")
	cmd.Flags().StringVar(&slug, "slug", "", "Lesson or project slug")
	cmd.Flags().DurationVar(&timeout, "regex-timeout", 50*time.Millisecond, "Match timeout per regular expression")
	cmd.Flags().BoolVar(&failFast, "fail", false, "Exit with an error unless every challenge passes")
	src.register(cmd)
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func evaluate(eval *evaluator.Evaluator, entry *domain.Entry, code domain.Code) checkReport {
	report := checkReport{
		Kind:       entry.Kind,
		Slug:       entry.Slug,
		Challenges: make([]challengeResult, 0, len(entry.Challenges)),
		Completed:  eval.All(entry.Challenges, code.HTML, code.CSS),
	}
	passed := make(map[string]bool, len(report.Completed))
	for _, id := range report.Completed {
		passed[id] = true
	}
	for _, ch := range entry.Challenges {
		res := challengeResult{ID: ch.ID, Title: ch.Title, Passed: passed[ch.ID]}
		if !res.Passed {
			res.Hint = ch.Hint
		}
		report.Challenges = append(report.Challenges, res)
	}
	report.Percentage = progress.Percentage(len(report.Completed), len(entry.Challenges))
	return report
}
