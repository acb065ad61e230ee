// Package planner turns free-form analytics questions into executable
// query plans. Plans arrive from an LLM as loose JSON, get sanitized
// against the dataset schema, and fall back to a canned plan or relaxed
// thresholds when the model output is unusable or over-restrictive.
package planner

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/csvchat/csvchat/query"
)

// Tool names a plan step can carry.
const (
	ToolQuery   = "query"
	ToolChart   = "chart"
	ToolNarrate = "narrate"
)

// Plan is an ordered list of tool steps. ID is assigned at parse time so
// logs can correlate a plan with its execution.
type Plan struct {
	ID    string `json:"id,omitempty"`
	Steps []Step `json:"steps"`
}

// Step is one tool invocation. Exactly one of Query, Chart, or Narrate is
// set, matching Tool.
type Step struct {
	Tool    string
	Query   *query.Descriptor
	Chart   *ChartArgs
	Narrate *NarrateArgs
}

// ChartArgs configures a chart step.
type ChartArgs struct {
	Kind  string `json:"kind,omitempty"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Title string `json:"title,omitempty"`
}

// NarrateArgs configures a narration step.
type NarrateArgs struct {
	Focus string `json:"focus,omitempty"`
}

// UnmarshalJSON decodes a {"tool": ..., "args": {...}} step. Steps with an
// unknown tool keep their name but carry no arguments; missing args decode
// as zero-valued arguments.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tool string          `json:"tool"`
		Args json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode plan step: %w", err)
	}

	*s = Step{Tool: raw.Tool}
	if len(raw.Args) == 0 {
		raw.Args = []byte("{}")
	}

	switch raw.Tool {
	case ToolQuery:
		s.Query = &query.Descriptor{}
		if err := json.Unmarshal(raw.Args, s.Query); err != nil {
			return fmt.Errorf("failed to decode query args: %w", err)
		}
	case ToolChart:
		s.Chart = &ChartArgs{}
		if err := json.Unmarshal(raw.Args, s.Chart); err != nil {
			return fmt.Errorf("failed to decode chart args: %w", err)
		}
	case ToolNarrate:
		s.Narrate = &NarrateArgs{}
		if err := json.Unmarshal(raw.Args, s.Narrate); err != nil {
			return fmt.Errorf("failed to decode narrate args: %w", err)
		}
	}
	return nil
}

// MarshalJSON renders the step back into the wire shape.
func (s Step) MarshalJSON() ([]byte, error) {
	var args interface{}
	switch {
	case s.Query != nil:
		args = s.Query
	case s.Chart != nil:
		args = s.Chart
	case s.Narrate != nil:
		args = s.Narrate
	default:
		args = struct{}{}
	}
	return json.Marshal(struct {
		Tool string      `json:"tool"`
		Args interface{} `json:"args"`
	}{Tool: s.Tool, Args: args})
}

// ParsePlan decodes a plan from JSON and stamps it with a fresh ID.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	p.ID = uuid.NewString()
	return &p, nil
}

// HasQuery reports whether any step runs the query tool.
func (p *Plan) HasQuery() bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		if s.Tool == ToolQuery && s.Query != nil {
			return true
		}
	}
	return false
}
