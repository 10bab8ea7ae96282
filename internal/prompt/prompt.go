// Package prompt assembles the text sent to a language model for one question.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

// Build returns the full prompt: role instruction, optional dataset section,
// the question, then the response format for category.
func Build(question string, ctx *dataset.Context, category query.Category) string {
	var b strings.Builder
	b.WriteString(Instruction(category))
	b.WriteString("\n\n")
	if ctx != nil {
		b.WriteString(DatasetSection(ctx))
		b.WriteString("\n\n")
	}
	b.WriteString("USER QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(Format(category))
	return b.String()
}

// Instruction is the system role text; unknown categories get the general one.
func Instruction(category query.Category) string {
	if s, ok := instructions[category]; ok {
		return s
	}
	return generalInstruction
}

// Format is the requested response layout.
func Format(category query.Category) string {
	if s, ok := formats[category]; ok {
		return s
	}
	return defaultFormat
}

// DatasetSection describes the dataset's shape, schema and missing values.
func DatasetSection(ctx *dataset.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DATASET INFORMATION:\nName: %s\nRows: %d\nColumns: %d\n\nSCHEMA:", ctx.Name, ctx.Rows, len(ctx.Columns))

	for _, col := range ctx.Columns {
		parts := []string{fmt.Sprintf("- %s (%s):", col.Name, col.Type)}
		if len(col.ExampleValues) > 0 {
			examples := make([]string, len(col.ExampleValues))
			for i, v := range col.ExampleValues {
				examples[i] = dataset.FormatCell(v)
			}
			parts = append(parts, "[Example values: "+strings.Join(examples, ", ")+"]")
		}
		if col.Min != nil && col.Max != nil {
			r := fmt.Sprintf("[Range: %s-%s", dataset.FormatNumber(*col.Min), dataset.FormatNumber(*col.Max))
			if col.Mean != nil {
				r += fmt.Sprintf(", Mean: %.2f", *col.Mean)
			}
			parts = append(parts, r+"]")
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, " "))
	}

	if len(ctx.Missing) > 0 {
		b.WriteString("\n\nDATA QUALITY:")
		for _, m := range ctx.Missing {
			fmt.Fprintf(&b, "\n- Missing values: %d missing values in '%s' column (%.1f%%)", m.Count, m.Column, m.Percentage)
		}
	}
	return b.String()
}
