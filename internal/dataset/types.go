// Package dataset ingests uploaded tabular files and derives the statistics,
// preview and prompt context used to answer questions about them.
package dataset

import "time"

// Column types, named after the dtype strings the web client already displays.
const (
	TypeInt    = "int64"
	TypeFloat  = "float64"
	TypeBool   = "bool"
	TypeObject = "object"
)

// MostCommon is one entry of a categorical column's value histogram.
type MostCommon struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnStat summarises one column. Numeric fields are nil for non-numeric columns.
type ColumnStat struct {
	DataType    string       `json:"data_type"`
	Count       int          `json:"count"`
	NullCount   int          `json:"null_count"`
	UniqueCount *int         `json:"unique_count"`
	MinValue    *float64     `json:"min_value"`
	MaxValue    *float64     `json:"max_value"`
	Mean        *float64     `json:"mean"`
	Median      *float64     `json:"median"`
	StdDev      *float64     `json:"std_dev"`
	MostCommon  []MostCommon `json:"most_common"`
}

// Preview is the first rows of a dataset plus per-column statistics.
type Preview struct {
	Columns     []string              `json:"columns"`
	PreviewRows []map[string]any      `json:"preview_rows"`
	ColumnStats map[string]ColumnStat `json:"column_stats"`
	TotalRows   int                   `json:"total_rows"`
}

// Summary is the wire shape returned by upload and lookup.
type Summary struct {
	DatasetID string   `json:"dataset_id"`
	Name      string   `json:"name"`
	FileType  string   `json:"file_type"`
	Columns   []string `json:"columns"`
	RowCount  int      `json:"row_count"`
	Preview   Preview  `json:"preview"`
}

// ColumnContext describes one column to the language model.
type ColumnContext struct {
	Name          string
	Type          string
	ExampleValues []any
	Min           *float64
	Max           *float64
	Mean          *float64
}

// Missing reports nulls in one column.
type Missing struct {
	Column     string
	Count      int
	Percentage float64
}

// Context is the dataset description embedded in prompts.
type Context struct {
	Name    string
	Rows    int
	Columns []ColumnContext
	Missing []Missing
}

// Dataset is one registered upload.
type Dataset struct {
	ID               string
	OriginalFilename string
	Path             string
	Size             int64
	UploadedAt       time.Time
	Summary          Summary
	Context          *Context
}
