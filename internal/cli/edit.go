package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docnav/internal/edits"
)

func newEditCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <doc> <edits.json>",
		Short: "Apply an edit batch to a document",
		Long: `Apply the operations in edits.json as one batch. The file holds either a
JSON array of operations or an object with an "edits" array. Use - to read
from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readEditBatch(cmd, args[1])
			if err != nil {
				return err
			}
			return g.withEnv(cmd, func(e *env) error {
				res, err := e.nav.ApplyEdits(cmd.Context(), args[0], edits.DecodeEntries(raw))
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func readEditBatch(cmd *cobra.Command, path string) ([]json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read edits: %w", err)
	}

	data = bytes.TrimSpace(data)
	var raw []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse edits: %w", err)
		}
		return raw, nil
	}
	var body struct {
		Edits []json.RawMessage `json:"edits"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse edits: %w", err)
	}
	if body.Edits == nil {
		return nil, fmt.Errorf("parse edits: missing \"edits\" array")
	}
	return body.Edits, nil
}
