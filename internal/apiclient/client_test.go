package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

func sub() query.Submission {
	return query.NewSubmission("What is the mean?", "ds-1", query.ProviderGemini, query.CategoryGeneral, "session_1_abcdefg")
}

func TestAsk_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/queries" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req query.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.LLMProvider != "deepseek" {
			t.Errorf("provider = %q", req.LLMProvider)
		}
		if req.EnableFallback == nil || *req.EnableFallback {
			t.Error("server-side fallback should be disabled")
		}
		if req.SessionID != "session_1_abcdefg" {
			t.Errorf("session = %q", req.SessionID)
		}
		ds := "ds-1"
		json.NewEncoder(w).Encode(query.Response{
			QueryID: "q-1", Query: req.Query, Response: "about 18", LLMProvider: "deepseek",
			DatasetID: &ds, ProcessingTime: 0.25,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", time.Second)
	answer, err := c.Ask(context.Background(), sub(), query.ProviderDeepSeek)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.QueryID != "q-1" || answer.Text != "about 18" || answer.Provider != query.ProviderDeepSeek {
		t.Errorf("unexpected answer %+v", answer)
	}
	if answer.ProcessingTime != 250*time.Millisecond {
		t.Errorf("processing time = %v", answer.ProcessingTime)
	}
}

func TestAsk_FailureClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
		reason    string
	}{
		{"bad gateway", 502, `{"detail":"Error processing query: gemini failed"}`, true, "Error processing query: gemini failed"},
		{"rate limited", 429, `{"detail":"slow down"}`, true, "slow down"},
		{"timeout", 408, ``, true, "Request Timeout"},
		{"bad request", 400, `{"detail":"please enter a question"}`, false, "please enter a question"},
		{"not found", 404, `{"detail":"Dataset not found"}`, false, "Dataset not found"},
		{"malformed success", 200, `{not json`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).Ask(context.Background(), sub(), query.ProviderGemini)
			var f *query.Failure
			if !errors.As(err, &f) {
				t.Fatalf("expected *query.Failure, got %T %v", err, err)
			}
			if f.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", f.Retryable, tt.retryable)
			}
			if tt.reason != "" && f.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", f.Reason, tt.reason)
			}
			if f.Provider != query.ProviderGemini {
				t.Errorf("provider = %q", f.Provider)
			}
		})
	}
}

func TestAsk_TransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Ask(context.Background(), sub(), query.ProviderGemini)
	var f *query.Failure
	if !errors.As(err, &f) || !f.Retryable || f.StatusCode != 0 {
		t.Fatalf("expected retryable transport failure, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path != "/queries/history/session_1_abcdefg" {
				t.Errorf("path = %q", r.URL.Path)
			}
			io.WriteString(w, `[{"query_id":"q2","query":"b","response":"B","llm_provider":"gemini","dataset_id":null,"timestamp":1700000000.5},
				{"query_id":"q1","query":"a","response":"A","llm_provider":"deepseek","dataset_id":"ds","timestamp":1700000000}]`)
		case http.MethodDelete:
			io.WriteString(w, `{"status":"success","message":"Query history cleared"}`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	records, err := c.History(context.Background(), "session_1_abcdefg")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 || records[0].QueryID != "q2" || records[1].DatasetID != "ds" {
		t.Fatalf("unexpected records %+v", records)
	}
	if records[0].CreatedAt.UnixMilli() != 1700000000500 {
		t.Errorf("created at = %v", records[0].CreatedAt)
	}
	if err := c.ClearHistory(context.Background(), "session_1_abcdefg"); err != nil {
		t.Errorf("ClearHistory: %v", err)
	}
}

func TestUploadDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "sales.csv" || !strings.HasPrefix(string(data), "a,b") {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if got := r.FormValue("dataset_name"); got != "Sales" {
			t.Errorf("dataset_name = %q", got)
		}
		json.NewEncoder(w).Encode(dataset.Summary{DatasetID: "ds-9", Name: "Sales", FileType: "csv", RowCount: 1})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := New(srv.URL, time.Second).UploadDataset(context.Background(), path, "Sales", 1024)
	if err != nil {
		t.Fatalf("UploadDataset: %v", err)
	}
	if summary.DatasetID != "ds-9" || summary.RowCount != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestUploadDataset_RejectedLocally(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()
	c := New(srv.URL, time.Second)
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("hi"), 0o644)
	if _, err := c.UploadDataset(context.Background(), txt, "", 0); !errors.Is(err, dataset.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}

	big := filepath.Join(dir, "big.csv")
	os.WriteFile(big, []byte(strings.Repeat("x", 2048)), 0o644)
	if _, err := c.UploadDataset(context.Background(), big, "", 1024); !errors.Is(err, dataset.ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}

	if calls != 0 {
		t.Errorf("server called %d times", calls)
	}
}

func TestDatasetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Dataset not found"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).GetDataset(context.Background(), "missing")
	if !NotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var se *StatusError
	if errors.As(err, &se) && se.Detail != "Dataset not found" {
		t.Errorf("detail = %q", se.Detail)
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			io.WriteString(w, `{"status":"healthy","version":"1.0.0"}`)
		case "/info":
			io.WriteString(w, `{"name":"Data Insight Generator API","version":"1.0.0","llm_providers":["gemini"],"supported_file_types":["csv"],"max_file_size_mb":10}`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	status, err := c.Health(context.Background())
	if err != nil || status != "healthy" {
		t.Errorf("Health = %q, %v", status, err)
	}
	info, err := c.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MaxFileSizeMB != 10 || len(info.LLMProviders) != 1 {
		t.Errorf("unexpected info %+v", info)
	}
}
