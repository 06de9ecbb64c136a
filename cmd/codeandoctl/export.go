package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/export"
	"github.com/ashureev/codeando/internal/share"
	"github.com/spf13/cobra"
)

func newExportCommand(opts *options) *cobra.Command {
	var (
		kindName string
		slug     string
		outPath  string
		src      codeSource
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a ZIP with index.html, styles.css and README.txt",
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

			if outPath == "" {
				outPath = export.FileName(kind, slug)
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			werr := export.WriteZip(f, export.Bundle{
				Title: entry.Title,
				Slug:  entry.Slug,
				Kind:  kind,
				HTML:  code.HTML,
				CSS:   code.CSS,
				Now:   time.Now(),
			})
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				return fmt.Errorf("write %s: %w", outPath, werr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "lesson", "lesson or project")
	cmd.Flags().StringVar(&slug, "slug", "", "Lesson or project slug")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default: codeando-<slug>.zip)")
	src.register(cmd)
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func newShareCommand() *cobra.Command {
	var (
		base              string
		htmlPath, cssPath string
	)
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print a playground share link for local HTML/CSS files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			html, err := readFile(htmlPath)
			if err != nil {
				return err
			}
			css, err := readFile(cssPath)
			if err != nil {
				return err
			}
			link, err := share.URL(base, domain.Code{HTML: html, CSS: css})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "http://localhost:5173/playground", "Playground URL")
	cmd.Flags().StringVar(&htmlPath, "html", "", "HTML file")
	cmd.Flags().StringVar(&cssPath, "css", "", "CSS file")
	return cmd
}
