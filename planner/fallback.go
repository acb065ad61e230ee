package planner

import (
	"github.com/google/uuid"

	"github.com/csvchat/csvchat/query"
)

// FallbackPlan is the canned plan used when planning fails or produces no
// query step: top five companies by all-time revenue with their churn
// risk, charted and narrated.
func FallbackPlan() *Plan {
	return &Plan{
		ID: uuid.NewString(),
		Steps: []Step{
			{
				Tool: ToolQuery,
				Query: &query.Descriptor{
					Select:     query.Refs(query.ColCompanyName, query.ColPeriodRevenue, query.ColChurnProbability),
					TimeWindow: DefaultTimeWindow(),
					GroupBy:    query.Refs(query.ColCompanyName),
					Aggregations: map[string]query.AggKind{
						query.ColPeriodRevenue: query.AggSum,
					},
					OrderBy:  []query.OrderBy{{Col: query.Ref(query.ColPeriodRevenue), Desc: true}},
					Limit:    5,
					Computed: true,
				},
			},
			{
				Tool: ToolChart,
				Chart: &ChartArgs{
					X:     query.ColCompanyName,
					Y:     query.ColPeriodRevenue,
					Title: "Top 5 by revenue",
				},
			},
			{
				Tool:    ToolNarrate,
				Narrate: &NarrateArgs{Focus: "default retention insights"},
			},
		},
	}
}
