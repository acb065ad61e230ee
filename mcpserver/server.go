// Package mcpserver exposes the query engine over the Model Context
// Protocol, so MCP-capable agents can interrogate the dataset with the
// same descriptor contract the chat front-end uses.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/csvchat/csvchat/chart"
	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/narrate"
	"github.com/csvchat/csvchat/output"
	"github.com/csvchat/csvchat/planner"
	"github.com/csvchat/csvchat/query"
)

const serverName = "csvchat"

// Version is stamped at build time.
var Version = "dev"

// Server wires the dataset and engine into MCP tools.
type Server struct {
	table     *dataset.Table
	engine    *query.Engine
	sanitizer *planner.Sanitizer
	relaxer   *planner.Relaxer
	builder   *chart.Builder
}

// New builds a server over a loaded dataset.
func New(table *dataset.Table, aliases query.Aliases) *Server {
	engine := query.NewEngine(aliases)
	return &Server{
		table:     table,
		engine:    engine,
		sanitizer: planner.NewSanitizer(aliases),
		relaxer:   planner.NewRelaxer(engine),
		builder:   chart.NewBuilder(engine),
	}
}

// Build registers the tools on a fresh MCP server.
func (s *Server) Build() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dataset_info",
		Description: "Describe the loaded dataset: row count plus column names and types.",
	}, s.datasetInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name: "run_query",
		Description: "Run a query descriptor against the dataset. The descriptor is a JSON object " +
			"with select, filters, time_window, group_by, aggregations, order_by, and limit. " +
			"Column aliases are resolved and over-restrictive revenue/churn thresholds are relaxed automatically.",
	}, s.runQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name: "chart_command",
		Description: "Turn an 'X against Y' style command into a bar chart spec over the dataset: " +
			"aggregated data plus the x and y keys to plot it by.",
	}, s.chartCommand)

	mcp.AddTool(server, &mcp.Tool{
		Name: "narrate_query",
		Description: "Run a query descriptor and summarize the result as insight bullets " +
			"and suggested retention actions.",
	}, s.narrateQuery)

	return server
}

// Run serves MCP over stdio until the context is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Build().Run(ctx, &mcp.StdioTransport{})
}

func toolError(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

type datasetInfoInput struct{}

type columnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type datasetInfoOutput struct {
	Rows    int          `json:"rows"`
	Columns []columnInfo `json:"columns"`
}

func (s *Server) datasetInfo(_ context.Context, _ *mcp.CallToolRequest, _ datasetInfoInput) (*mcp.CallToolResult, any, error) {
	info := datasetInfoOutput{Rows: s.table.Len()}
	for _, col := range s.table.Columns {
		info.Columns = append(info.Columns, columnInfo{Name: col, Type: s.table.Type(col).String()})
	}
	text := fmt.Sprintf("%d rows, %d columns", info.Rows, len(info.Columns))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, info, nil
}

type runQueryInput struct {
	// Descriptor is a JSON object string rather than a nested object so
	// loosely-typed clients can pass it through verbatim.
	Descriptor string `json:"descriptor" jsonschema:"query descriptor as a JSON object string"`
}

type runQueryOutput struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Relaxed string                   `json:"relaxed,omitempty"`
}

// execDescriptor parses, sanitizes, and runs a descriptor, relaxing
// thresholds when the strict result is empty.
func (s *Server) execDescriptor(raw string) (*dataset.Table, string, error) {
	var d query.Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, "", fmt.Errorf("invalid descriptor: %w", err)
	}

	p := &planner.Plan{Steps: []planner.Step{{Tool: planner.ToolQuery, Query: &d}}}
	s.sanitizer.Sanitize(p, s.table.Schema())

	result, err := s.engine.Execute(s.table, &d)
	if err != nil {
		return nil, "", err
	}

	relaxedNote := ""
	if s.relaxer.NeedsRelax(result, &d) {
		relaxed, cuts, err := s.relaxer.Relax(s.table, &d)
		if err != nil {
			return nil, "", err
		}
		retried, err := s.engine.Execute(s.table, relaxed)
		if err != nil {
			return nil, "", err
		}
		if len(retried.Rows) > 0 {
			result = retried
			relaxedNote = "no exact matches; thresholds relaxed to " + cuts.String()
		}
	}
	return result, relaxedNote, nil
}

func (s *Server) runQuery(_ context.Context, _ *mcp.CallToolRequest, in runQueryInput) (*mcp.CallToolResult, any, error) {
	result, relaxedNote, err := s.execDescriptor(in.Descriptor)
	if err != nil {
		return toolError("query failed: %v", err), nil, nil
	}

	out := runQueryOutput{Columns: result.Columns, Relaxed: relaxedNote}
	for _, row := range result.Rows {
		visible := make(map[string]interface{}, len(result.Columns))
		for _, col := range result.Columns {
			if v := row[col]; v != nil {
				visible[col] = dataset.FormatValue(v)
			} else {
				visible[col] = nil
			}
		}
		out.Rows = append(out.Rows, visible)
	}

	var buf bytes.Buffer
	if err := output.NewCSVFormatter(&buf).Format(result); err != nil {
		return toolError("failed to render result: %v", err), nil, nil
	}
	text := buf.String()
	if text == "" {
		text = "no rows matched"
	}
	if relaxedNote != "" {
		text = relaxedNote + "\n" + text
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

type chartCommandInput struct {
	Command string `json:"command" jsonschema:"chart command such as 'revenue against segment'"`
}

func (s *Server) chartCommand(_ context.Context, _ *mcp.CallToolRequest, in chartCommandInput) (*mcp.CallToolResult, any, error) {
	plot, args, ok := s.builder.Prepare(s.table, nil, in.Command)
	if !ok {
		return toolError("not a chart command: %q", in.Command), nil, nil
	}

	agg, yKey := chart.BuildBarAgg(plot, args.X, args.Y)
	if yKey == "" || len(agg.Rows) == 0 {
		return toolError("nothing to chart for %q", in.Command), nil, nil
	}

	spec := chart.Spec{X: args.X, YKey: yKey, Title: args.Title, Data: agg}
	text := fmt.Sprintf("%s: %d bars of %s by %s", args.Title, len(agg.Rows), yKey, args.X)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, spec, nil
}

type narrateQueryInput struct {
	Descriptor string `json:"descriptor" jsonschema:"query descriptor as a JSON object string"`
}

type narrateQueryOutput struct {
	Bullets []string `json:"bullets"`
	Actions []string `json:"actions"`
}

func (s *Server) narrateQuery(_ context.Context, _ *mcp.CallToolRequest, in narrateQueryInput) (*mcp.CallToolResult, any, error) {
	result, _, err := s.execDescriptor(in.Descriptor)
	if err != nil {
		return toolError("query failed: %v", err), nil, nil
	}

	n := narrate.Summarize(result)
	if n.Empty() {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No rows matched. Try relaxing filters."}},
		}, narrateQueryOutput{}, nil
	}

	var buf bytes.Buffer
	buf.WriteString("Insights\n")
	for _, b := range n.Bullets {
		buf.WriteString("- " + b + "\n")
	}
	buf.WriteString("Suggested actions\n")
	for _, a := range n.Actions {
		buf.WriteString("- " + a + "\n")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: buf.String()}},
	}, narrateQueryOutput{Bullets: n.Bullets, Actions: n.Actions}, nil
}
