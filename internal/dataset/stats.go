package dataset

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

const (
	PreviewRows   = 10
	ContextSample = 1000
	exampleValues = 3
	topValues     = 5
)

// BuildPreview computes statistics over every row and keeps the first PreviewRows rows.
func BuildPreview(t *Table) Preview {
	p := Preview{
		Columns:     slices.Clone(t.Columns),
		PreviewRows: make([]map[string]any, 0, min(len(t.Rows), PreviewRows)),
		ColumnStats: make(map[string]ColumnStat, len(t.Columns)),
		TotalRows:   len(t.Rows),
	}
	for _, row := range t.Rows[:min(len(t.Rows), PreviewRows)] {
		m := make(map[string]any, len(t.Columns))
		for c, name := range t.Columns {
			m[name] = row[c]
		}
		p.PreviewRows = append(p.PreviewRows, m)
	}
	for c, name := range t.Columns {
		p.ColumnStats[name] = columnStat(t, c)
	}
	return p
}

func columnStat(t *Table, c int) ColumnStat {
	st := ColumnStat{DataType: t.Types[c]}

	distinct := make(map[any]int)
	var order []any
	var nums []float64
	for _, row := range t.Rows {
		v := row[c]
		if v == nil {
			st.NullCount++
			continue
		}
		st.Count++
		if _, ok := distinct[v]; !ok {
			order = append(order, v)
		}
		distinct[v]++
		if f, ok := toFloat(v); ok {
			nums = append(nums, f)
		}
	}
	unique := len(distinct)
	st.UniqueCount = &unique

	switch st.DataType {
	case TypeInt, TypeFloat:
		if len(nums) > 0 {
			fillNumeric(&st, nums)
		}
	case TypeObject, TypeBool:
		st.MostCommon = mostCommon(order, distinct)
	}
	return st
}

func fillNumeric(st *ColumnStat, nums []float64) {
	sorted := slices.Clone(nums)
	slices.Sort(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	var sum float64
	for _, v := range nums {
		sum += v
	}
	mean := sum / float64(len(nums))

	var median float64
	if n := len(sorted); n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	st.MinValue, st.MaxValue, st.Mean, st.Median = &lo, &hi, &mean, &median

	// Sample standard deviation; undefined for a single value.
	if len(nums) > 1 {
		var ss float64
		for _, v := range nums {
			ss += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(ss / float64(len(nums)-1))
		st.StdDev = &sd
	}
}

// mostCommon ranks values by frequency; ties keep first-seen order.
func mostCommon(order []any, counts map[any]int) []MostCommon {
	if len(order) == 0 {
		return nil
	}
	ranked := slices.Clone(order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	out := make([]MostCommon, 0, topValues)
	for _, v := range ranked[:min(len(ranked), topValues)] {
		out = append(out, MostCommon{Value: formatValue(v), Count: counts[v]})
	}
	return out
}

// BuildContext describes the first ContextSample rows for a prompt, using the
// full-table statistics for ranges and missing values.
func BuildContext(name string, t *Table, stats map[string]ColumnStat) *Context {
	ctx := &Context{Name: name, Rows: len(t.Rows)}
	sample := t.Rows[:min(len(t.Rows), ContextSample)]

	for c, col := range t.Columns {
		cc := ColumnContext{Name: col, Type: t.Types[c]}
		for _, row := range sample {
			if row[c] == nil {
				continue
			}
			cc.ExampleValues = append(cc.ExampleValues, row[c])
			if len(cc.ExampleValues) == exampleValues {
				break
			}
		}
		if st, ok := stats[col]; ok {
			cc.Min, cc.Max, cc.Mean = st.MinValue, st.MaxValue, st.Mean
			if st.NullCount > 0 {
				ctx.Missing = append(ctx.Missing, Missing{
					Column:     col,
					Count:      st.NullCount,
					Percentage: float64(st.NullCount) / float64(st.Count+st.NullCount) * 100,
				})
			}
		}
		ctx.Columns = append(ctx.Columns, cc)
	}
	return ctx
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return FormatNumber(x)
	}
	return fmt.Sprint(v)
}

// FormatNumber renders a float the way users expect to read it back: integral
// values keep a trailing ".0".
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprint(f)
}

// FormatCell renders one cell for display.
func FormatCell(v any) string {
	if v == nil {
		return ""
	}
	return formatValue(v)
}
