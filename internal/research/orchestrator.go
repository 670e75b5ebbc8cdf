package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/oracle"
	"github.com/praxis-labs/deepresearch/internal/retriever"
	"github.com/praxis-labs/deepresearch/internal/tracing"
)

// EventSink receives phase trace events as a session progresses. Implemented
// by the streaming manager; nil sinks are ignored.
type EventSink interface {
	PublishResearchEvent(researchID, eventType, message string)
}

// Options tunes one orchestrator instance.
type Options struct {
	MaxSubQuestions int           // queries searched per iteration (default 3)
	SearchTopK      int           // documents requested per query (default 5)
	PhaseTimeout    time.Duration // per-phase deadline; 0 disables
}

// Orchestrator runs the research workflow: Plan once, then
// Search -> Analyze -> Synthesize -> Report -> Decide, looping back to
// Search until the decide phase terminates or the iteration ceiling is hit.
// All collaborators are injected; the orchestrator holds no process-global
// state and instances are safe to share across concurrent sessions (each
// session owns its State).
type Orchestrator struct {
	oracle    oracle.Oracle
	retriever retriever.Retriever
	store     Store
	sink      EventSink
	logger    *zap.Logger
	opts      Options
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore persists every finished result to the given append-only store.
func WithStore(s Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithEventSink streams phase trace messages to the given sink.
func WithEventSink(s EventSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithOptions overrides the default tuning knobs.
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) {
		if opts.MaxSubQuestions > 0 {
			o.opts.MaxSubQuestions = opts.MaxSubQuestions
		}
		if opts.SearchTopK > 0 {
			o.opts.SearchTopK = opts.SearchTopK
		}
		if opts.PhaseTimeout > 0 {
			o.opts.PhaseTimeout = opts.PhaseTimeout
		}
	}
}

// New creates an orchestrator with the given collaborators.
func New(o oracle.Oracle, r retriever.Retriever, logger *zap.Logger, options ...Option) *Orchestrator {
	orch := &Orchestrator{
		oracle:    o,
		retriever: r,
		logger:    logger,
		opts: Options{
			MaxSubQuestions: 3,
			SearchTopK:      5,
		},
	}
	for _, opt := range options {
		opt(orch)
	}
	return orch
}

type phaseFn func(context.Context, State) (State, error)

// ConductResearch runs one research session to completion and always returns
// a Result: recoverable oracle problems degrade in-phase, and anything fatal
// (report failure, cancellation) is folded into a failed Result rather than
// surfaced as a panic or a bare error.
func (o *Orchestrator) ConductResearch(ctx context.Context, query string, maxIterations int) *Result {
	return o.ConductResearchWithID(ctx, uuid.New().String(), query, maxIterations)
}

// ConductResearchWithID runs a session under a caller-assigned id, letting
// async API submits hand the id back before the session finishes.
func (o *Orchestrator) ConductResearchWithID(ctx context.Context, id, query string, maxIterations int) *Result {
	if maxIterations < 0 {
		maxIterations = 0
	}

	started := time.Now()
	metrics.ResearchSessionsStarted.Inc()
	o.logger.Info("Starting research session",
		zap.String("research_id", id),
		zap.String("query", query),
		zap.Int("max_iterations", maxIterations),
	)

	ctx, span := tracing.StartSpan(ctx, "research.session")
	defer span.End()

	n := &nodes{
		oracle:          o.oracle,
		retriever:       o.retriever,
		logger:          o.logger.With(zap.String("research_id", id)),
		maxSubQuestions: o.opts.MaxSubQuestions,
		searchTopK:      o.opts.SearchTopK,
	}

	s := newState(query, maxIterations)

	s, err := o.runPhase(ctx, id, "planning", n.plan, s)
	if err != nil {
		return o.finish(ctx, id, s, started, err)
	}

	for {
		for _, step := range []struct {
			name string
			fn   phaseFn
		}{
			{"searching", n.search},
			{"analyzing", n.analyze},
			{"synthesizing", n.synthesize},
			{"reporting", n.report},
			{"iterating", n.decide},
		} {
			s, err = o.runPhase(ctx, id, step.name, step.fn, s)
			if err != nil {
				return o.finish(ctx, id, s, started, err)
			}
		}
		if s.Complete {
			break
		}
	}

	s.Phase = PhaseDone
	return o.finish(ctx, id, s, started, nil)
}

// runPhase checks cancellation before invoking the node, applies the
// per-phase deadline, and commits the returned state only on success.
func (o *Orchestrator) runPhase(ctx context.Context, id, name string, fn phaseFn, s State) (State, error) {
	if err := ctx.Err(); err != nil {
		return s, err
	}

	phaseCtx := ctx
	if o.opts.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, o.opts.PhaseTimeout)
		defer cancel()
	}
	phaseCtx, span := tracing.StartPhaseSpan(phaseCtx, name, id, s.IterationCount)
	defer span.End()

	start := time.Now()
	next, err := fn(phaseCtx, s)
	metrics.PhaseDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		// next carries any terminal annotation the node made (e.g. the
		// report failure string); keep it for the failed result.
		return next, err
	}

	if o.sink != nil && len(next.Trace) > len(s.Trace) {
		for _, msg := range next.Trace[len(s.Trace):] {
			o.sink.PublishResearchEvent(id, name, msg)
		}
	}
	return next, nil
}

func (o *Orchestrator) finish(ctx context.Context, id string, s State, started time.Time, cause error) *Result {
	res := &Result{
		ID:             id,
		Query:          s.Query,
		FinalReport:    s.Report,
		Plan:           s.Plan,
		Documents:      s.Documents,
		Analysis:       s.Analysis,
		Synthesis:      s.Synthesis,
		IterationCount: s.IterationCount,
		Trace:          s.Trace,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}

	if cause != nil {
		res.Status = StatusFailed
		res.Error = cause.Error()
		if res.FinalReport == "" {
			res.FinalReport = "research failed: " + cause.Error()
		}
		o.logger.Error("Research session failed",
			zap.String("research_id", id),
			zap.Error(cause),
		)
	} else {
		res.Status = StatusCompleted
		o.logger.Info("Research session completed",
			zap.String("research_id", id),
			zap.Int("iterations", res.IterationCount),
			zap.Int("documents", len(res.Documents)),
		)
	}

	metrics.ResearchSessionsCompleted.WithLabelValues(string(res.Status)).Inc()
	metrics.ResearchSessionDuration.Observe(res.FinishedAt.Sub(started).Seconds())
	metrics.ResearchIterations.Observe(float64(res.IterationCount))

	if o.sink != nil {
		o.sink.PublishResearchEvent(id, "session", "research "+string(res.Status))
	}

	if o.store != nil {
		// Persist with a fresh deadline: a cancelled session context must
		// not lose the result we just assembled.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.store.Append(storeCtx, *res); err != nil {
			o.logger.Warn("Failed to persist research result",
				zap.String("research_id", id),
				zap.Error(err),
			)
		}
	}

	return res
}
