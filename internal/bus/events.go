package bus

import "time"

const (
	SubjectQueryAnswered   = "insight.query.answered"
	SubjectQueryFailed     = "insight.query.failed"
	SubjectDatasetUploaded = "insight.dataset.uploaded"
	SubjectDatasetDeleted  = "insight.dataset.deleted"
	SubjectHistoryCleared  = "insight.history.cleared"
)

// QueryAnswered is emitted after a question is answered and stored.
type QueryAnswered struct {
	QueryID        string    `json:"query_id"`
	SessionID      string    `json:"session_id"`
	DatasetID      string    `json:"dataset_id,omitempty"`
	Category       string    `json:"query_type,omitempty"`
	Primary        string    `json:"primary_provider"`
	Provider       string    `json:"llm_provider"`
	FallbackUsed   bool      `json:"fallback_used"`
	ProcessingTime float64   `json:"processing_time"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueryFailed is emitted when every attempted provider failed.
type QueryFailed struct {
	SessionID string    `json:"session_id"`
	DatasetID string    `json:"dataset_id,omitempty"`
	Provider  string    `json:"llm_provider"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// DatasetEvent is emitted on upload and delete.
type DatasetEvent struct {
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	Rows      int       `json:"row_count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryCleared is emitted when a session's history is wiped.
type HistoryCleared struct {
	SessionID string    `json:"session_id"`
	Removed   int64     `json:"removed"`
	Timestamp time.Time `json:"timestamp"`
}
