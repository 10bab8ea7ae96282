package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	providerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

const questionWidth = 60

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.Local()
	switch {
	case t.YearDay() == now.YearDay() && t.Year() == now.Year():
		return t.Format("Today 15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 02 15:04")
	}
	return t.Format("2006-01-02")
}

// renderRecord prints one question and its answer.
func renderRecord(w io.Writer, rec query.Record) {
	fmt.Fprintln(w, titleStyle.Render("Q: ")+rec.Question)
	meta := providerStyle.Render(string(rec.Provider)) + "  " + idStyle.Render(rec.QueryID)
	if rec.DatasetID != "" {
		meta += "  " + idStyle.Render("dataset "+rec.DatasetID)
	}
	fmt.Fprintln(w, meta)
	fmt.Fprintln(w, answerStyle.Render(rec.Answer))
}

func renderRecords(w io.Writer, records []query.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No queries in this session"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d quer%s", len(records), plural(len(records), "y", "ies"))))

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Question")+"\t"+titleStyle.Render("Provider")+"\t"+titleStyle.Render("When"))
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			idStyle.Render(rec.QueryID),
			truncate(rec.Question, questionWidth),
			providerStyle.Render(string(rec.Provider)),
			dateStyle.Render(formatTime(rec.CreatedAt, now)),
		)
	}
	tw.Flush()
}

func renderSummary(w io.Writer, s *dataset.Summary) {
	fmt.Fprintln(w, headerStyle.Render(s.Name)+"  "+idStyle.Render(s.DatasetID))
	fmt.Fprintf(w, "%s, %d rows, %d columns\n\n", strings.ToUpper(s.FileType), s.RowCount, len(s.Columns))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("Column")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Nulls")+"\t"+titleStyle.Render("Unique")+"\t"+titleStyle.Render("Range"))
	for _, col := range s.Columns {
		stat := s.Preview.ColumnStats[col]
		rng := "-"
		if stat.MinValue != nil && stat.MaxValue != nil {
			rng = dataset.FormatNumber(*stat.MinValue) + " - " + dataset.FormatNumber(*stat.MaxValue)
		}
		unique := "-"
		if stat.UniqueCount != nil {
			unique = fmt.Sprint(*stat.UniqueCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", col, stat.DataType, stat.NullCount, unique, rng)
	}
	tw.Flush()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
