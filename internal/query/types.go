// Package query holds the data model shared by the answering service and its clients.
package query

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength is the default bound on question length, in characters.
const MaxTextLength = 1000

// Provider names an LLM answering backend.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderDeepSeek Provider = "deepseek"
)

// Providers lists every supported backend.
var Providers = []Provider{ProviderGemini, ProviderDeepSeek}

// Valid reports whether p is a supported backend.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderDeepSeek:
		return true
	}
	return false
}

// ParseProvider normalises a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "llm_provider", Reason: fmt.Sprintf("unsupported provider %q (supported: gemini, deepseek)", s)}
	}
	return p, nil
}

// DefaultFallback returns the other provider of the pair.
func DefaultFallback(p Provider) Provider {
	if p == ProviderGemini {
		return ProviderDeepSeek
	}
	return ProviderGemini
}

// Category annotates the intent of a question. The empty category means general analysis.
type Category string

const (
	CategoryGeneral            Category = "general"
	CategoryCorrelation        Category = "correlation"
	CategoryDataQuality        Category = "data_quality"
	CategoryVisualization      Category = "visualization"
	CategoryFeatureEngineering Category = "feature_engineering"
	CategoryPredictiveModeling Category = "predictive_modeling"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryGeneral,
	CategoryCorrelation,
	CategoryDataQuality,
	CategoryVisualization,
	CategoryFeatureEngineering,
	CategoryPredictiveModeling,
}

// Valid reports whether c is empty or a known category.
func (c Category) Valid() bool {
	if c == "" {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Submission is one user question plus the options it was asked with.
// It is built fresh per user action and never mutated afterwards.
type Submission struct {
	Text           string
	DatasetID      string // empty for dataset-agnostic questions
	Primary        Provider
	EnableFallback bool
	Fallback       Provider
	Category       Category
	SessionID      string
}

// NewSubmission builds a submission with the source defaults: fallback enabled,
// fallback provider set to the other backend.
func NewSubmission(text, datasetID string, primary Provider, category Category, sessionID string) Submission {
	return Submission{
		Text:           text,
		DatasetID:      datasetID,
		Primary:        primary,
		EnableFallback: true,
		Fallback:       DefaultFallback(primary),
		Category:       category,
		SessionID:      sessionID,
	}
}

// ValidateText rejects empty or oversized question text.
// A maxLen of zero or less uses MaxTextLength.
func ValidateText(text string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxTextLength
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "query", Reason: "please enter a question"}
	}
	if n := utf8.RuneCountInString(text); n > maxLen {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("query is too long (%d characters, maximum is %d)", n, maxLen)}
	}
	return nil
}

// Answer is a successful reply from one provider.
type Answer struct {
	QueryID        string
	Text           string
	Provider       Provider
	DatasetID      string
	ProcessingTime time.Duration
}

// Record is one resolved question/answer pair kept in session history.
type Record struct {
	QueryID   string    `json:"query_id" yaml:"query_id"`
	Question  string    `json:"query" yaml:"query"`
	Answer    string    `json:"response" yaml:"response"`
	Provider  Provider  `json:"llm_provider" yaml:"llm_provider"`
	DatasetID string    `json:"dataset_id,omitempty" yaml:"dataset_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
