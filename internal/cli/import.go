package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docnav/internal/ingest"
	"github.com/dgallion1/docnav/internal/parser"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a document into the store",
		Long: `Parse a text, markdown, CSV, HTML, PDF or DOCX file and store it as a
new document. Prints the import job, including the new document id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEnv(cmd, func(e *env) error {
				return runImport(cmd, e, args[0], title)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (default: first heading)")
	return cmd
}

func runImport(cmd *cobra.Command, e *env, path, title string) error {
	if !parser.IsSupportedExtension(path) {
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > e.cfg.MaxUploadBytes {
		return fmt.Errorf("%s is larger than %d bytes", path, e.cfg.MaxUploadBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	parserOpts := parser.Options{PDFFallbackPdftotext: e.cfg.PDFFallbackPdftotext}
	worker := ingest.NewWorker(e.store, nil, e.cfg.Chunking(), parserOpts, e.log)
	job := ingest.NewJob(uuid.NewString(), filepath.Base(path), title, data)
	worker.Process(cmd.Context(), job)

	snap := job.Snapshot()
	if snap.Status == ingest.StatusFailed {
		return fmt.Errorf("import %s: %s", path, strings.Join(snap.Progress.Errors, "; "))
	}
	return printJSON(cmd, snap)
}
