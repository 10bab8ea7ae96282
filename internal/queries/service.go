// Package queries is the answering service's pipeline: it validates a question,
// attaches dataset context, calls a language model with at most one fallback,
// and records the answer in session history.
package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/insight/internal/bus"
	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/fallback"
	"github.com/MikeSquared-Agency/insight/internal/identity"
	"github.com/MikeSquared-Agency/insight/internal/llm"
	"github.com/MikeSquared-Agency/insight/internal/prompt"
	"github.com/MikeSquared-Agency/insight/internal/query"
	"github.com/MikeSquared-Agency/insight/internal/store"
)

// Providers resolves a provider name to a configured model client.
type Providers interface {
	Get(name query.Provider) (llm.Provider, error)
}

// Contexts looks up the prompt context of an uploaded dataset.
type Contexts interface {
	Context(id string) (*dataset.Context, error)
}

// Service answers questions.
type Service struct {
	providers Providers
	datasets  Contexts
	history   store.Repository
	events    bus.Publisher
	policy    fallback.Policy
	maxLen    int
	logger    *slog.Logger
	now       func() time.Time
}

func New(providers Providers, datasets Contexts, history store.Repository, events bus.Publisher, maxLen int, logger *slog.Logger) *Service {
	if events == nil {
		events = bus.Nop{}
	}
	return &Service{
		providers: providers,
		datasets:  datasets,
		history:   history,
		events:    events,
		maxLen:    maxLen,
		logger:    logger,
		now:       time.Now,
	}
}

// Answer resolves sub. It returns *query.ValidationError for bad input,
// an error wrapping query.ErrNotFound for an unknown dataset, and
// *query.Failure when every attempted provider failed.
func (s *Service) Answer(ctx context.Context, sub query.Submission) (query.Answer, error) {
	start := s.now()

	if err := s.validate(sub); err != nil {
		return query.Answer{}, err
	}

	var dsCtx *dataset.Context
	if sub.DatasetID != "" {
		c, err := s.datasets.Context(sub.DatasetID)
		if err != nil {
			if errors.Is(err, query.ErrNotFound) || errors.Is(err, dataset.ErrFileGone) {
				return query.Answer{}, fmt.Errorf("dataset %s: %w", sub.DatasetID, query.ErrNotFound)
			}
			return query.Answer{}, fmt.Errorf("dataset context: %w", err)
		}
		dsCtx = c
	}

	text := prompt.Build(sub.Text, dsCtx, sub.Category)

	answered, provider, err := s.generate(ctx, text, sub)
	if err != nil {
		failure := query.AsFailure(err, sub.Primary)
		s.logger.Error("query failed",
			"session_id", sub.SessionID,
			"primary", sub.Primary,
			"error", err,
		)
		s.publish(bus.SubjectQueryFailed, bus.QueryFailed{
			SessionID: sub.SessionID,
			DatasetID: sub.DatasetID,
			Provider:  string(failure.Provider),
			Reason:    failure.Reason,
			Timestamp: s.now().UTC(),
		})
		return query.Answer{}, err
	}

	answer := query.Answer{
		QueryID:        uuid.New().String(),
		Text:           answered,
		Provider:       provider,
		DatasetID:      sub.DatasetID,
		ProcessingTime: s.now().Sub(start),
	}

	if sub.SessionID != "" && s.history != nil {
		rec := query.Record{
			QueryID:   answer.QueryID,
			Question:  sub.Text,
			Answer:    answer.Text,
			Provider:  answer.Provider,
			DatasetID: answer.DatasetID,
			CreatedAt: s.now().UTC(),
		}
		if err := s.history.AppendHistory(ctx, sub.SessionID, rec); err != nil {
			s.logger.Warn("failed to store history", "session_id", sub.SessionID, "query_id", rec.QueryID, "error", err)
		}
	}

	s.logger.Info("query answered",
		"query_id", answer.QueryID,
		"session_id", sub.SessionID,
		"provider", answer.Provider,
		"fallback_used", answer.Provider != sub.Primary,
		"duration", answer.ProcessingTime,
	)
	s.publish(bus.SubjectQueryAnswered, bus.QueryAnswered{
		QueryID:        answer.QueryID,
		SessionID:      sub.SessionID,
		DatasetID:      sub.DatasetID,
		Category:       string(sub.Category),
		Primary:        string(sub.Primary),
		Provider:       string(answer.Provider),
		FallbackUsed:   answer.Provider != sub.Primary,
		ProcessingTime: answer.ProcessingTime.Seconds(),
		Timestamp:      s.now().UTC(),
	})
	return answer, nil
}

func (s *Service) validate(sub query.Submission) error {
	if err := query.ValidateText(sub.Text, s.maxLen); err != nil {
		return err
	}
	if !sub.Primary.Valid() {
		return &query.ValidationError{Field: "llm_provider", Reason: fmt.Sprintf("unsupported provider %q", sub.Primary)}
	}
	if sub.EnableFallback && sub.Fallback != "" && !sub.Fallback.Valid() {
		return &query.ValidationError{Field: "fallback_provider", Reason: fmt.Sprintf("unsupported provider %q", sub.Fallback)}
	}
	if !sub.Category.Valid() {
		return &query.ValidationError{Field: "query_type", Reason: fmt.Sprintf("unknown query type %q", sub.Category)}
	}
	if sub.SessionID != "" && !identity.Valid(sub.SessionID) {
		return &query.ValidationError{Field: "session_id", Reason: "invalid session id format"}
	}
	return nil
}

// generate calls the primary provider and, when the policy allows, one fallback.
// The returned failure is always the most recent one.
func (s *Service) generate(ctx context.Context, text string, sub query.Submission) (string, query.Provider, error) {
	out, err := s.call(ctx, sub.Primary, text)
	if err == nil {
		return out, sub.Primary, nil
	}

	if sub.EnableFallback && sub.Fallback == "" {
		sub.Fallback = query.DefaultFallback(sub.Primary)
	}
	next, ok := s.policy.Decide(err, sub)
	if !ok || ctx.Err() != nil {
		return "", "", err
	}

	s.logger.Warn("primary provider failed, trying fallback",
		"primary", sub.Primary,
		"fallback", next,
		"reason", err.Reason,
	)
	out, ferr := s.call(ctx, next, text)
	if ferr != nil {
		return "", "", ferr
	}
	return out, next, nil
}

func (s *Service) call(ctx context.Context, name query.Provider, text string) (string, *query.Failure) {
	p, err := s.providers.Get(name)
	if err != nil {
		// An unconfigured provider may still be covered by the other one.
		return "", &query.Failure{Provider: name, Reason: err.Error(), Retryable: true, Err: err}
	}
	out, err := p.Generate(ctx, text)
	if err != nil {
		return "", toFailure(name, err)
	}
	return out, nil
}

func toFailure(name query.Provider, err error) *query.Failure {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return &query.Failure{
			Provider:   name,
			Reason:     apiErr.Message,
			StatusCode: apiErr.StatusCode,
			Retryable:  apiErr.Retryable(),
			Err:        err,
		}
	}
	return &query.Failure{Provider: name, Reason: transportReason(err), Retryable: true, Err: err}
}

// transportReason describes a failure without the underlying error text, which
// can carry request URLs. The full error stays in Failure.Err for logs.
func transportReason(err error) string {
	var uerr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.As(err, &uerr):
		if uerr.Timeout() {
			return "request timed out"
		}
		return "provider unreachable"
	}
	return "invalid response from provider"
}

// History returns the session's stored records, newest-first.
func (s *Service) History(ctx context.Context, sessionID string) ([]query.Record, error) {
	if !identity.Valid(sessionID) {
		return nil, &query.ValidationError{Field: "session_id", Reason: "invalid session id format"}
	}
	return s.history.ListHistory(ctx, sessionID)
}

// ClearHistory removes the session's stored records.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	if !identity.Valid(sessionID) {
		return 0, &query.ValidationError{Field: "session_id", Reason: "invalid session id format"}
	}
	n, err := s.history.ClearHistory(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("history cleared", "session_id", sessionID, "removed", n)
	s.publish(bus.SubjectHistoryCleared, bus.HistoryCleared{SessionID: sessionID, Removed: n, Timestamp: s.now().UTC()})
	return n, nil
}

func (s *Service) publish(subject string, data any) {
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
