// codeandoctl inspects and checks CodeAndo content from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ashureev/codeando/content"
	"github.com/ashureev/codeando/internal/catalog"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

type options struct {
	contentDir   string
	outputFormat string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "codeandoctl",
		Short: "CodeAndo CLI - list, validate and check lessons and projects",
		Long: `codeandoctl works on the lesson and project catalog without a running server.
Output is JSON by default; use -o table for a human-readable listing.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.contentDir, "content", "c", os.Getenv("CONTENT_DIR"), "Content directory (default: embedded catalog)")
	rootCmd.PersistentFlags().StringVarP(&opts.outputFormat, "output", "o", "json", "Output format: json, table")

	rootCmd.AddCommand(newListCommand(opts, "lessons", "List lessons in catalog order"))
	rootCmd.AddCommand(newListCommand(opts, "projects", "List projects in catalog order"))
	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))
	rootCmd.AddCommand(newShareCommand())

	return rootCmd
}

// loadCatalog opens the configured content directory, or the embedded catalog.
func (o *options) loadCatalog() (*catalog.Catalog, error) {
	var fsys fs.FS = content.FS
	if o.contentDir != "" {
		dir, err := catalog.DirFS(o.contentDir)
		if err != nil {
			return nil, err
		}
		fsys = dir
	}
	return catalog.Load(fsys)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func readFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
