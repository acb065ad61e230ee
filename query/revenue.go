package query

import (
	"math"
	"time"

	"github.com/csvchat/csvchat/dataset"
)

// Default time window applied when the revenue metric is requested without
// an explicit window: effectively all time, so the derived column is always
// deterministic and non-null when its source columns exist.
const (
	defaultWindowStart = "2000-01-01"
	defaultWindowEnd   = "2100-01-01"
)

// averageMonthDays converts an overlap in days to whole months.
const averageMonthDays = 30.4

// wantsPeriodRevenue reports whether the descriptor references the derived
// revenue column in select, aggregations, or order_by.
func wantsPeriodRevenue(d *Descriptor) bool {
	for _, ref := range d.Select {
		if ref.Name() == ColPeriodRevenue {
			return true
		}
	}
	if _, ok := d.Aggregations[ColPeriodRevenue]; ok {
		return true
	}
	for _, ob := range d.OrderBy {
		if ob.Col.Name() == ColPeriodRevenue {
			return true
		}
	}
	return false
}

// materializePeriodRevenue conditionally adds the overlap_months and
// period_revenue_usd columns. The table must already carry contract_start,
// contract_end, and mrr_usd; otherwise it is returned unchanged and later
// references to the revenue column resolve to nothing.
func materializePeriodRevenue(t *dataset.Table, d *Descriptor) *dataset.Table {
	if !d.Computed && !wantsPeriodRevenue(d) {
		return t
	}
	schema := t.Schema()
	if !schema[ColContractStart] || !schema[ColContractEnd] || !schema[ColMRR] {
		return t
	}

	ws, we := windowDates(d.TimeWindow)

	out := t.CloneRows()
	out.Columns = append(out.Columns, ColOverlapMonths, ColPeriodRevenue)
	out.Types[ColOverlapMonths] = dataset.Numeric
	out.Types[ColPeriodRevenue] = dataset.Numeric

	for _, row := range out.Rows {
		cs, csOK := row[ColContractStart].(time.Time)
		ce, ceOK := row[ColContractEnd].(time.Time)
		months := 0
		if csOK && ceOK {
			months = overlapMonths(cs, ce, ws, we)
		}
		row[ColOverlapMonths] = float64(months)

		if mrr, ok := dataset.ToFloat(row[ColMRR]); ok {
			row[ColPeriodRevenue] = round2(mrr * float64(months))
		} else {
			row[ColPeriodRevenue] = nil
		}
	}
	return out
}

// windowDates parses the descriptor's window, falling back to the maximal
// default when either end is missing or unparseable.
func windowDates(tw *TimeWindow) (time.Time, time.Time) {
	var ws, we time.Time
	var wsOK, weOK bool
	if tw != nil {
		ws, wsOK = dataset.ParseDate(tw.Start)
		we, weOK = dataset.ParseDate(tw.End)
	}
	if !wsOK || !weOK {
		ws, _ = dataset.ParseDate(defaultWindowStart)
		we, _ = dataset.ParseDate(defaultWindowEnd)
	}
	return ws, we
}

// overlapMonths counts the whole months of overlap between the contract
// range and the query window: zero when the ranges are disjoint, else the
// inclusive day count divided by the average month length, rounded up.
func overlapMonths(cs, ce, ws, we time.Time) int {
	start := cs
	if ws.After(start) {
		start = ws
	}
	end := ce
	if we.Before(end) {
		end = we
	}
	if end.Before(start) {
		return 0
	}
	days := end.Sub(start).Hours()/24 + 1
	return int(math.Ceil(days / averageMonthDays))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
