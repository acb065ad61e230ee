package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/csvchat/csvchat/chart"
	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/mcpserver"
	"github.com/csvchat/csvchat/narrate"
	"github.com/csvchat/csvchat/output"
	"github.com/csvchat/csvchat/planner"
	"github.com/csvchat/csvchat/query"
)

var (
	queryFlag   = flag.String("q", "", "Query descriptor JSON (e.g., '{\"select\":[\"company_name\"],\"limit\":5}')")
	askFlag     = flag.String("ask", "", "One-shot natural language question, planned via Ollama")
	chatFlag    = flag.Bool("chat", false, "Interactive chat mode")
	mcpFlag     = flag.Bool("mcp", false, "Serve the dataset over MCP on stdio")
	formatFlag  = flag.String("f", "table", "Output format: table, json, csv")
	schemaFlag  = flag.Bool("schema", false, "Show schema information instead of data")
	enrichFlag  = flag.Bool("enrich", false, "Synthesize churn risk, service usage, and feedback columns before querying")
	seedFlag    = flag.Int64("seed", 7, "Random seed for -enrich")
	aliasesFlag = flag.String("aliases", "", "YAML file with extra column aliases")
	ollamaURL   = flag.String("ollama-url", "", "Ollama chat endpoint (default $OLLAMA_URL or "+planner.DefaultOllamaURL+")")
	ollamaModel = flag.String("ollama-model", "", "Ollama model name (default $OLLAMA_MODEL or "+planner.DefaultOllamaModel+")")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <data.csv|data.parquet>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Query a subscription/churn dataset with descriptors or natural language.\n\n")
		fmt.Fprintf(os.Stderr, "IMPORTANT: All flags must come BEFORE the file argument.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s churn.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -q '{\"group_by\":[\"segment\"],\"aggregations\":{\"churn\":\"mean\"}}' churn.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -ask \"top 5 companies by revenue\" churn.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -chat churn.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mcp churn.csv\n", os.Args[0])
	}

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: missing dataset file argument\n\n")
		flag.Usage()
		os.Exit(1)
	}
	filename := flag.Arg(0)

	table, err := dataset.Load(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error: file '%s' not found\n", filename)
			fmt.Fprintf(os.Stderr, "Please check the file path and try again.\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	if *enrichFlag {
		if err := dataset.ValidateRequired(table); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		table = dataset.Enrich(table, *seedFlag)
	}

	aliases := query.DefaultAliases()
	if *aliasesFlag != "" {
		aliases, err = query.LoadAliases(*aliasesFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *schemaFlag {
		printSchema(table)
		return
	}

	if *mcpFlag {
		if err := mcpserver.New(table, aliases).Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app := newApp(table, aliases)

	switch {
	case *queryFlag != "":
		var d query.Descriptor
		if err := json.Unmarshal([]byte(*queryFlag), &d); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing descriptor: %v\n\n", err)
			fmt.Fprintf(os.Stderr, "Descriptor format: {\"select\":[...],\"filters\":[...],\"group_by\":[...],\"aggregations\":{...},\"order_by\":[...],\"limit\":N}\n")
			os.Exit(1)
		}
		if err := app.runDescriptor(&d); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *askFlag != "":
		app.answer(context.Background(), *askFlag)
	case *chatFlag:
		app.chatLoop(context.Background())
	default:
		// No query: dump the dataset.
		if err := app.render(table); err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
	}
}

func printSchema(t *dataset.Table) {
	for _, col := range t.Columns {
		fmt.Printf("%s: %s\n", col, t.Type(col))
	}
	fmt.Printf("\n%d rows\n", t.Len())
}

// app holds the pieces the interactive modes share.
type app struct {
	table     *dataset.Table
	engine    *query.Engine
	sanitizer *planner.Sanitizer
	relaxer   *planner.Relaxer
	builder   *chart.Builder
	ollama    *planner.OllamaClient
	lastTable *dataset.Table
}

func newApp(table *dataset.Table, aliases query.Aliases) *app {
	engine := query.NewEngine(aliases)
	ollama := planner.NewOllamaClient()
	if *ollamaURL != "" {
		ollama.URL = *ollamaURL
	}
	if *ollamaModel != "" {
		ollama.Model = *ollamaModel
	}
	return &app{
		table:     table,
		engine:    engine,
		sanitizer: planner.NewSanitizer(aliases),
		relaxer:   planner.NewRelaxer(engine),
		builder:   chart.NewBuilder(engine),
		ollama:    ollama,
	}
}

func (a *app) render(t *dataset.Table) error {
	formatter, ok := output.New(*formatFlag, os.Stdout)
	if !ok {
		return fmt.Errorf("unsupported format %q (supported: table, json, csv)", *formatFlag)
	}
	return formatter.Format(t)
}

// runDescriptor sanitizes and executes one descriptor, relaxing thresholds
// when the strict result is empty.
func (a *app) runDescriptor(d *query.Descriptor) error {
	if d == nil {
		d = &query.Descriptor{}
	}
	p := &planner.Plan{Steps: []planner.Step{{Tool: planner.ToolQuery, Query: d}}}
	a.sanitizer.Sanitize(p, a.table.Schema())

	result, err := a.engine.Execute(a.table, d)
	if err != nil {
		return err
	}

	if a.relaxer.NeedsRelax(result, d) {
		relaxed, cuts, err := a.relaxer.Relax(a.table, d)
		if err != nil {
			return err
		}
		retried, err := a.engine.Execute(a.table, relaxed)
		if err != nil {
			return err
		}
		if len(retried.Rows) > 0 {
			fmt.Printf("No exact matches. Thresholds relaxed to: %s\n", cuts)
			result = retried
		}
	}

	if len(result.Rows) == 0 {
		fmt.Println("No results found for this query.")
		return nil
	}
	a.lastTable = result
	return a.render(result)
}

// answer handles one question: chart commands directly, everything else
// through the planner with the canned fallback.
func (a *app) answer(ctx context.Context, text string) {
	if plot, args, ok := a.builder.Prepare(a.table, a.lastTable, text); ok {
		a.renderChart(plot, args)
		return
	}

	plan, err := a.ollama.Plan(ctx, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Planning failed (%v), using fallback plan.\n", err)
	}
	if !plan.HasQuery() {
		plan = planner.FallbackPlan()
	}
	a.sanitizer.Sanitize(plan, a.table.Schema())
	a.runPlan(plan)
}

func (a *app) runPlan(plan *planner.Plan) {
	for _, step := range plan.Steps {
		switch step.Tool {
		case planner.ToolQuery:
			if err := a.runDescriptor(step.Query); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
		case planner.ToolChart:
			if a.lastTable == nil || len(a.lastTable.Rows) == 0 {
				continue
			}
			args := step.Chart
			if args == nil {
				args = &planner.ChartArgs{}
			}
			x := args.X
			if x == "" {
				if a.lastTable.HasColumn(query.ColCompanyName) {
					x = query.ColCompanyName
				} else if len(a.lastTable.Columns) > 0 {
					x = a.lastTable.Columns[0]
				}
			}
			a.renderChart(a.lastTable, &chart.Args{X: x, Y: args.Y, Title: args.Title})
		case planner.ToolNarrate:
			a.printNarration(narrate.Summarize(a.lastTable))
		}
	}
}

// renderChart prints a bar chart as rows of hashes, scaled to a terminal
// width.
func (a *app) renderChart(plot *dataset.Table, args *chart.Args) {
	agg, yKey := chart.BuildBarAgg(plot, args.X, args.Y)
	if yKey == "" || len(agg.Rows) == 0 {
		fmt.Println("Nothing to chart.")
		return
	}
	if args.Title != "" {
		fmt.Println(args.Title)
	}

	maxVal := 0.0
	labelWidth := 0
	for _, row := range agg.Rows {
		if f, ok := dataset.ToFloat(row[yKey]); ok && f > maxVal {
			maxVal = f
		}
		if l := len(dataset.FormatValue(row[args.X])); l > labelWidth {
			labelWidth = l
		}
	}

	const barWidth = 40
	for _, row := range agg.Rows {
		f, _ := dataset.ToFloat(row[yKey])
		n := 0
		if maxVal > 0 {
			n = int(f / maxVal * barWidth)
		}
		fmt.Printf("%-*s | %s %s\n", labelWidth, dataset.FormatValue(row[args.X]),
			strings.Repeat("#", n), dataset.FormatValue(row[yKey]))
	}
}

func (a *app) printNarration(n narrate.Narration) {
	if n.Empty() {
		fmt.Println("No rows matched. Try relaxing filters.")
		return
	}
	fmt.Println("Insights:")
	for _, b := range n.Bullets {
		fmt.Printf("- %s\n", b)
	}
	fmt.Println("Suggested actions:")
	for _, act := range n.Actions {
		fmt.Printf("- %s\n", act)
	}
}

func (a *app) chatLoop(ctx context.Context) {
	fmt.Println("Ask me about sales, churn, or revenue analytics. Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}
		a.answer(ctx, text)
	}
}
