// Package orchestrator drives one question through the answering service,
// applying the fallback policy and recording the result in session history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/insight/internal/fallback"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

// DefaultCallTimeout bounds each answering call.
const DefaultCallTimeout = 60 * time.Second

// State is the orchestrator's position in the submit cycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Asker sends one question to one provider. Failures should be *query.Failure;
// any other error is treated as a retryable transport failure.
type Asker interface {
	Ask(ctx context.Context, sub query.Submission, provider query.Provider) (query.Answer, error)
}

// Recorder receives every successful record.
type Recorder interface {
	Append(rec query.Record) error
}

// SessionSource supplies the session token for submissions that lack one.
type SessionSource interface {
	GetOrCreate() (string, error)
}

// Options configures an Orchestrator. Zero values pick sensible defaults.
type Options struct {
	MaxTextLength int
	CallTimeout   time.Duration
	Policy        fallback.Policy
	Recorder      Recorder
	Session       SessionSource
	Logger        *slog.Logger
	// OnTransition, when set, is called synchronously on every state change.
	OnTransition func(from, to State)

	now   func() time.Time
	newID func() string
}

// Orchestrator accepts at most one in-flight submission at a time.
type Orchestrator struct {
	client Asker
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New builds an orchestrator over client.
func New(client Asker, opts Options) *Orchestrator {
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = query.MaxTextLength
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.newID == nil {
		opts.newID = func() string { return uuid.NewString() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// State reports the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit resolves one submission. It returns *query.ValidationError or query.ErrBusy
// without touching the network, *query.Failure when every attempt failed, or the
// new record. A non-nil record may be returned together with a
// *query.DuplicateRecordError when the recorder already held its query id.
// The orchestrator is back in StateIdle whenever Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, sub query.Submission) (query.Record, error) {
	if err := o.begin(sub); err != nil {
		return query.Record{}, err
	}

	if sub.SessionID == "" && o.opts.Session != nil {
		token, err := o.opts.Session.GetOrCreate()
		if err != nil {
			o.finish(StateFailed)
			return query.Record{}, fmt.Errorf("resolve session: %w", err)
		}
		sub.SessionID = token
	}

	started := o.opts.now()
	answer, provider, err := o.resolve(ctx, sub)
	if err != nil {
		o.logger.Warn("query failed",
			"session_id", sub.SessionID,
			"primary", sub.Primary,
			"error", err,
		)
		o.finish(StateFailed)
		return query.Record{}, err
	}

	queryID := answer.QueryID
	if queryID == "" {
		queryID = o.opts.newID()
	}
	// The server names the provider that actually answered; it wins over the one asked.
	if answer.Provider.Valid() && answer.Provider != provider {
		o.logger.Warn("server reported a different provider",
			"requested", provider,
			"reported", answer.Provider,
		)
		provider = answer.Provider
	}
	datasetID := answer.DatasetID
	if datasetID == "" {
		datasetID = sub.DatasetID
	}
	rec := query.Record{
		QueryID:   queryID,
		Question:  sub.Text,
		Answer:    answer.Text,
		Provider:  provider,
		DatasetID: datasetID,
		CreatedAt: o.opts.now(),
	}

	o.logger.Info("query answered",
		"session_id", sub.SessionID,
		"query_id", rec.QueryID,
		"provider", rec.Provider,
		"fallback_used", rec.Provider != sub.Primary,
		"elapsed", rec.CreatedAt.Sub(started),
	)

	var recordErr error
	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.Append(rec); err != nil {
			o.logger.Warn("history append rejected", "query_id", rec.QueryID, "error", err)
			recordErr = err
		}
	}

	o.finish(StateSucceeded)
	return rec, recordErr
}

// begin moves Idle -> Submitting, or rejects the submission leaving state untouched.
func (o *Orchestrator) begin(sub query.Submission) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return query.ErrBusy
	}
	if err := query.ValidateText(sub.Text, o.opts.MaxTextLength); err != nil {
		return err
	}
	if !sub.Primary.Valid() {
		return &query.ValidationError{Field: "llm_provider", Reason: fmt.Sprintf("unsupported provider %q", sub.Primary)}
	}
	if !sub.Category.Valid() {
		return &query.ValidationError{Field: "query_type", Reason: fmt.Sprintf("unknown query type %q", sub.Category)}
	}
	o.transition(StateSubmitting)
	return nil
}

// finish records the terminal state and returns to Idle.
func (o *Orchestrator) finish(terminal State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transition(terminal)
	o.transition(StateIdle)
}

// transition must be called with mu held.
func (o *Orchestrator) transition(to State) {
	from := o.state
	o.state = to
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(from, to)
	}
}

// resolve makes the primary call and at most one fallback call.
func (o *Orchestrator) resolve(ctx context.Context, sub query.Submission) (query.Answer, query.Provider, error) {
	answer, err := o.attempt(ctx, sub, sub.Primary)
	if err == nil {
		return answer, sub.Primary, nil
	}
	failure := query.AsFailure(err, sub.Primary)

	if ctx.Err() != nil {
		return query.Answer{}, "", failure
	}
	next, ok := o.opts.Policy.Decide(failure, sub)
	if !ok {
		return query.Answer{}, "", failure
	}

	o.logger.Info("primary provider failed, falling back",
		"primary", sub.Primary,
		"fallback", next,
		"reason", failure.Reason,
	)
	answer, err = o.attempt(ctx, sub, next)
	if err != nil {
		return query.Answer{}, "", query.AsFailure(err, next)
	}
	return answer, next, nil
}

func (o *Orchestrator) attempt(ctx context.Context, sub query.Submission, provider query.Provider) (query.Answer, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	answer, err := o.client.Ask(callCtx, sub, provider)
	if err == nil {
		return answer, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return query.Answer{}, &query.Failure{
			Provider:  provider,
			Reason:    fmt.Sprintf("no answer within %s", o.opts.CallTimeout),
			Retryable: true,
			Err:       err,
		}
	}
	return query.Answer{}, err
}
