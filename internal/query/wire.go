package query

import (
	"math"
	"time"
)

// Request is the JSON body of POST /api/queries.
type Request struct {
	Query            string  `json:"query"`
	DatasetID        *string `json:"dataset_id"`
	LLMProvider      string  `json:"llm_provider"`
	EnableFallback   *bool   `json:"enable_fallback,omitempty"`
	FallbackProvider string  `json:"fallback_provider,omitempty"`
	QueryType        *string `json:"query_type"`
	SessionID        string  `json:"session_id"`
}

// Response is the JSON body of a successful POST /api/queries.
type Response struct {
	QueryID        string  `json:"query_id"`
	Query          string  `json:"query"`
	Response       string  `json:"response"`
	LLMProvider    string  `json:"llm_provider"`
	DatasetID      *string `json:"dataset_id"`
	ProcessingTime float64 `json:"processing_time"`
}

// HistoryItem is one element of GET /api/queries/history/{session_id}.
type HistoryItem struct {
	QueryID     string  `json:"query_id"`
	Query       string  `json:"query"`
	Response    string  `json:"response"`
	LLMProvider string  `json:"llm_provider"`
	DatasetID   *string `json:"dataset_id"`
	Timestamp   float64 `json:"timestamp"`
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// NewRequest builds the wire request for one attempt against provider.
// Fallback is left to the caller, so the server is told not to fall back.
func NewRequest(sub Submission, provider Provider) Request {
	disabled := false
	return Request{
		Query:          sub.Text,
		DatasetID:      optional(sub.DatasetID),
		LLMProvider:    string(provider),
		EnableFallback: &disabled,
		QueryType:      optional(string(sub.Category)),
		SessionID:      sub.SessionID,
	}
}

// Submission converts a request, applying the defaults: gemini primary,
// fallback enabled, fallback to the other provider.
func (r Request) Submission() Submission {
	primary := Provider(r.LLMProvider)
	if r.LLMProvider == "" {
		primary = ProviderGemini
	}
	sub := Submission{
		Text:           r.Query,
		Primary:        primary,
		EnableFallback: r.EnableFallback == nil || *r.EnableFallback,
		Fallback:       Provider(r.FallbackProvider),
		SessionID:      r.SessionID,
	}
	if sub.Fallback == "" {
		sub.Fallback = DefaultFallback(primary)
	}
	if r.DatasetID != nil {
		sub.DatasetID = *r.DatasetID
	}
	if r.QueryType != nil {
		sub.Category = Category(*r.QueryType)
	}
	return sub
}

// NewResponse converts an answer to its wire form.
func NewResponse(question string, a Answer) Response {
	return Response{
		QueryID:        a.QueryID,
		Query:          question,
		Response:       a.Text,
		LLMProvider:    string(a.Provider),
		DatasetID:      optional(a.DatasetID),
		ProcessingTime: a.ProcessingTime.Seconds(),
	}
}

// Answer converts the wire response back.
func (r Response) Answer() Answer {
	a := Answer{
		QueryID:        r.QueryID,
		Text:           r.Response,
		Provider:       Provider(r.LLMProvider),
		ProcessingTime: time.Duration(r.ProcessingTime * float64(time.Second)),
	}
	if r.DatasetID != nil {
		a.DatasetID = *r.DatasetID
	}
	return a
}

func NewHistoryItem(rec Record) HistoryItem {
	return HistoryItem{
		QueryID:     rec.QueryID,
		Query:       rec.Question,
		Response:    rec.Answer,
		LLMProvider: string(rec.Provider),
		DatasetID:   optional(rec.DatasetID),
		Timestamp:   float64(rec.CreatedAt.UnixNano()) / float64(time.Second),
	}
}

func (h HistoryItem) Record() Record {
	sec, frac := math.Modf(h.Timestamp)
	rec := Record{
		QueryID:   h.QueryID,
		Question:  h.Query,
		Answer:    h.Response,
		Provider:  Provider(h.LLMProvider),
		CreatedAt: time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(),
	}
	if h.DatasetID != nil {
		rec.DatasetID = *h.DatasetID
	}
	return rec
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
