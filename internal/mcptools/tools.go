// Package mcptools exposes the document operations as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/edits"
	"github.com/dgallion1/docnav/internal/service"
)

// OutlineInput is the read_outline argument.
type OutlineInput struct {
	DocumentID string `json:"documentId" jsonschema:"document identifier; a truncated id is matched to a known document"`
}

// ChunkInput is the read_chunk argument.
type ChunkInput struct {
	DocumentID string `json:"documentId" jsonschema:"document identifier"`
	Index      int    `json:"index" jsonschema:"0-based chunk index; out of range values are clamped"`
	Context    int    `json:"context,omitempty" jsonschema:"neighboring chunks to include on each side"`
	Strategy   string `json:"strategy,omitempty" jsonschema:"semantic (default) or fixed"`
}

// RangeInput is the read_range argument.
type RangeInput struct {
	DocumentID      string `json:"documentId" jsonschema:"document identifier"`
	From            *int   `json:"from,omitempty" jsonschema:"start position"`
	To              *int   `json:"to,omitempty" jsonschema:"end position"`
	AfterText       string `json:"afterText,omitempty" jsonschema:"start right after this text"`
	BeforeText      string `json:"beforeText,omitempty" jsonschema:"end right before this text"`
	OccurrenceIndex int    `json:"occurrenceIndex,omitempty" jsonschema:"1-based occurrence of the anchors"`
	Format          string `json:"format,omitempty" jsonschema:"text (default) or json"`
}

// EditsInput is the apply_edits argument. Entries stay raw so a malformed
// one is rejected on its own instead of failing the call.
type EditsInput struct {
	DocumentID string            `json:"documentId" jsonschema:"document identifier"`
	Edits      []json.RawMessage `json:"edits" jsonschema:"edit operations applied as one batch"`
}

const editEntryDescription = "one edit operation: an object with type (replace, add_mark, remove_mark, " +
	"replace_mark, add_paragraph, insert) and its fields: findText, replaceText, contextBefore, contextAfter, " +
	"occurrenceIndex, maxOccurrences, replaceAll, text, markType, oldMarkType, newMarkType, content, " +
	"paragraphType, headingLevel, afterText, beforeText, insertText, position"

// editsInputSchema leaves batch entries unconstrained; each entry is checked
// by the edit validator.
func editsInputSchema() *jsonschema.Schema {
	s, err := jsonschema.For[EditsInput](&jsonschema.ForOptions{
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeFor[json.RawMessage](): {Description: editEntryDescription},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("apply_edits input schema: %v", err))
	}
	return s
}

// NewServer builds an MCP server with every document tool registered.
func NewServer(nav *service.Navigator, version string, log *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "docnav", Version: version}, nil)
	Register(srv, nav, log)
	return srv
}

// Handler serves srv over streamable HTTP.
func Handler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}

// Register adds the document tools to srv.
func Register(srv *mcp.Server, nav *service.Navigator, log *slog.Logger) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_outline",
		Description: "List a document's headings with the chunk index holding each one.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in OutlineInput) (*mcp.CallToolResult, service.OutlineResult, error) {
		out, err := nav.ReadOutline(ctx, in.DocumentID)
		if err != nil {
			log.Debug("read_outline failed", "doc_id", in.DocumentID, "error", err)
		}
		return nil, out, err
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_chunk",
		Description: "Read one chunk of a document, optionally with neighboring chunks for context.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ChunkInput) (*mcp.CallToolResult, service.ChunkResult, error) {
		strategy := chunker.Strategy(in.Strategy)
		switch strategy {
		case "", chunker.StrategySemantic, chunker.StrategyFixed:
		default:
			return nil, service.ChunkResult{}, fmt.Errorf("unknown strategy %q (use semantic or fixed)", in.Strategy)
		}
		out, err := nav.ReadChunk(ctx, in.DocumentID, in.Index, in.Context, strategy)
		if err != nil {
			log.Debug("read_chunk failed", "doc_id", in.DocumentID, "error", err)
		}
		return nil, out, err
	})

	// The json format returns document nodes, which nest recursively, so the
	// output is left untyped.
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "read_range",
		Description: "Read the text between two positions or two text anchors. format=json returns the overlapping blocks.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RangeInput) (*mcp.CallToolResult, any, error) {
		format := in.Format
		switch format {
		case "":
			format = service.FormatText
		case service.FormatText, service.FormatJSON:
		default:
			return nil, nil, fmt.Errorf("unknown format %q (use text or json)", in.Format)
		}
		out, err := nav.ReadRange(ctx, in.DocumentID, anchor.RangeRequest{
			From:            in.From,
			To:              in.To,
			AfterText:       in.AfterText,
			BeforeText:      in.BeforeText,
			OccurrenceIndex: in.OccurrenceIndex,
		}, format)
		if err != nil {
			log.Debug("read_range failed", "doc_id", in.DocumentID, "error", err)
			return nil, nil, err
		}
		return nil, out, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name: "apply_edits",
		Description: "Apply a batch of text-anchored edits (replace, add_mark, remove_mark, replace_mark, " +
			"add_paragraph, insert) in one commit. Rejected entries are reported and skipped.",
		InputSchema: editsInputSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in EditsInput) (*mcp.CallToolResult, service.EditResult, error) {
		out, err := nav.ApplyEdits(ctx, in.DocumentID, edits.DecodeEntries(in.Edits))
		if err != nil {
			log.Debug("apply_edits failed", "doc_id", in.DocumentID, "error", err)
		}
		return nil, out, err
	})
}
