package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/service"
)

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEnv(cmd, func(e *env) error {
				ids, err := e.store.ListKnownIdentifiers(cmd.Context(), collab.ScopeDocuments)
				if err != nil {
					return fmt.Errorf("list documents: %w", err)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", id.ID, id.LastModifiedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func newOutlineCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <doc>",
		Short: "Print a document's heading outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEnv(cmd, func(e *env) error {
				out, err := e.nav.ReadOutline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newChunkCmd(g *globalFlags) *cobra.Command {
	var (
		contextWindow int
		strategy      string
	)
	cmd := &cobra.Command{
		Use:   "chunk <doc> <index>",
		Short: "Print one chunk of a document",
		Long: `Print the chunk at index, plus --context neighbors on each side.
Out of range indexes are clamped to the nearest chunk.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chunk index %q", args[1])
			}
			if contextWindow < 0 {
				return fmt.Errorf("--context must be non-negative")
			}
			s := chunker.Strategy(strategy)
			if s != chunker.StrategySemantic && s != chunker.StrategyFixed {
				return fmt.Errorf("unknown strategy %q (use semantic or fixed)", strategy)
			}
			return g.withEnv(cmd, func(e *env) error {
				out, err := e.nav.ReadChunk(cmd.Context(), args[0], index, contextWindow, s)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().IntVarP(&contextWindow, "context", "c", 0, "neighboring chunks on each side")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(chunker.StrategySemantic), "semantic or fixed")
	return cmd
}

func newRangeCmd(g *globalFlags) *cobra.Command {
	var (
		from, to   int
		req        anchor.RangeRequest
		format     string
		occurrence int
	)
	cmd := &cobra.Command{
		Use:   "range <doc>",
		Short: "Print a span of a document",
		Long: `Print the span between two positions or text anchors. Anchors win over
positions; a missing anchor falls back to the document edge with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("from") {
				req.From = &from
			}
			if cmd.Flags().Changed("to") {
				req.To = &to
			}
			if occurrence < 1 {
				return fmt.Errorf("--occurrence must be at least 1")
			}
			req.OccurrenceIndex = occurrence
			if format != service.FormatText && format != service.FormatJSON {
				return fmt.Errorf("unknown format %q (use text or json)", format)
			}
			return g.withEnv(cmd, func(e *env) error {
				out, err := e.nav.ReadRange(cmd.Context(), args[0], req, format)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&from, "from", 0, "start position")
	f.IntVar(&to, "to", 0, "end position")
	f.StringVar(&req.AfterText, "after", "", "start right after this text")
	f.StringVar(&req.BeforeText, "before", "", "end right before this text")
	f.IntVar(&occurrence, "occurrence", 1, "1-based occurrence of the anchors")
	f.StringVar(&format, "format", service.FormatText, "text or json")
	return cmd
}
