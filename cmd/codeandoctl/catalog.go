package main

import (
	"fmt"
	"strings"

	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/domain"
	"github.com/spf13/cobra"
)

type listItem struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Order       int      `json:"order"`
	DurationMin int      `json:"duration_min"`
	Tags        []string `json:"tags"`
	Challenges  int      `json:"challenges"`
	HasSolution bool     `json:"has_solution"`
}

func newListCommand(opts *options, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseContentKind(use)
			if err != nil {
				return err
			}
			c, err := opts.loadCatalog()
			if err != nil {
				return err
			}

			entries := c.Entries(kind)
			items := make([]listItem, 0, len(entries))
			for _, e := range entries {
				items = append(items, listItem{
					Slug:        e.Slug,
					Title:       e.Title,
					Order:       e.Order,
					DurationMin: e.DurationMin,
					Tags:        e.Tags,
					Challenges:  len(e.Challenges),
					HasSolution: e.HasSolution(),
				})
			}

			if opts.outputFormat != "table" {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s %-28s %-4s %-24s %s\n", "#", "SLUG", "CH", "TAGS", "TITLE")
			for _, it := range items {
				fmt.Fprintf(out, "%-4d %-28s %-4d %-24s %s\n", it.Order, it.Slug, it.Challenges, strings.Join(it.Tags, ","), it.Title)
			}
			return nil
		},
	}
}

func newValidateCommand(opts *options) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate a content directory",
		Long: `Loads every YAML file of the directory and reports structural errors
(duplicate slugs or challenge IDs, unknown check types). Invalid regular
expressions are reported as warnings; with --strict they fail the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.contentDir = args[0]
			}
			c, err := opts.loadCatalog()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			warnings := catalog.Lint(c)
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %v\n", w)
			}
			fmt.Fprintf(out, "ok: %d lessons, %d projects\n", len(c.Lessons()), len(c.Projects()))
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d lint warnings", len(warnings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat lint warnings as errors")
	return cmd
}
