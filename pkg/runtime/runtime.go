package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/internal/tracing"
	"github.com/harun/tanya/pkg/agentexec"
	"github.com/harun/tanya/pkg/errorx"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/orchestrator"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/trace"
)

// ErrRateLimited is returned when a session exceeds its message rate.
var ErrRateLimited = errorx.New(errorx.CategorySession, "message rate limit exceeded", true, true)

// Archiver persists finished conversations. Archiving is best effort: a
// failing archiver never fails the customer-facing operation.
type Archiver interface {
	Archive(sess *memory.Session, tr *trace.SessionTrace) error
}

// Response is the outcome of handling one customer message.
type Response struct {
	Message           string `json:"message"`
	AgentID           string `json:"agent_id,omitempty"`
	Intent            string `json:"intent,omitempty"`
	Escalated         bool   `json:"escalated"`
	EscalationSummary string `json:"escalation_summary,omitempty"`
}

// Config holds runtime configuration.
type Config struct {
	Store        *memory.Store
	Tracer       *trace.Tracer
	Orchestrator *orchestrator.Orchestrator
	Executor     *agentexec.Executor
	// Limiter bounds per-session message rate. Nil disables limiting.
	Limiter *resilience.RateLimiter
	// Archiver, when set, receives snapshots of escalated and cleared
	// sessions.
	Archiver Archiver
	Logger   zerolog.Logger
}

// Runtime is the single entry point callers use: it sequences escalation
// detection, routing and agent execution for each message, serializing turns
// per session.
type Runtime struct {
	store   *memory.Store
	tracer  *trace.Tracer
	orch    *orchestrator.Orchestrator
	exec    *agentexec.Executor
	limit   *resilience.RateLimiter
	archive Archiver
	logger  zerolog.Logger

	// One mutex per session keeps turns ordered without serializing
	// unrelated sessions against each other.
	turnMu map[string]*sync.Mutex
	mu     sync.Mutex
}

// New creates a runtime.
func New(cfg Config) (*Runtime, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Tracer == nil {
		return nil, fmt.Errorf("tracer is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	return &Runtime{
		store:   cfg.Store,
		tracer:  cfg.Tracer,
		orch:    cfg.Orchestrator,
		exec:    cfg.Executor,
		limit:   cfg.Limiter,
		archive: cfg.Archiver,
		logger:  cfg.Logger,
		turnMu:  make(map[string]*sync.Mutex),
	}, nil
}

// StartSession opens a new session and its trace timeline.
func (r *Runtime) StartSession(customer memory.CustomerInfo) (string, error) {
	id, err := r.store.StartSession(customer)
	if err != nil {
		return "", err
	}
	r.tracer.Begin(id)

	observability.RecordSessionStarted()
	observability.RecordSessionAudit(context.Background(), "start", id, "success", nil)
	observability.SetActiveSessions(r.store.Count())

	return id, nil
}

// HandleMessage processes one customer message end to end. Escalated
// sessions short-circuit to the fixed hand-off response; everything else
// flows through trigger detection, routing and agent execution, with a
// second trigger check after execution to catch failures accumulated during
// the turn.
func (r *Runtime) HandleMessage(ctx context.Context, sessionID, message string) (*Response, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		observability.RecordMessage(outcome, time.Since(start))
	}()

	ctx = tracing.NewTurnContext(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, "runtime", "message.handle")
	defer span.End()

	if !r.store.Exists(sessionID) {
		return nil, errorx.SessionNotFound(sessionID)
	}

	if r.limit != nil && !r.limit.Allow(sessionID) {
		outcome = "rate_limited"
		return nil, ErrRateLimited
	}

	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if r.store.IsEscalated(sessionID) {
		// Still record the message so the human operator sees it.
		if err := r.store.AddMessage(sessionID, memory.RoleCustomer, message); err != nil {
			return nil, err
		}
		sess, err := r.store.Session(sessionID)
		if err != nil {
			return nil, err
		}
		outcome = "short_circuit"
		return &Response{
			Message:           orchestrator.EscalationResponse,
			Escalated:         true,
			EscalationSummary: sess.Context.EscalationSummary,
		}, nil
	}

	if err := r.store.AddMessage(sessionID, memory.RoleCustomer, message); err != nil {
		return nil, err
	}
	r.tracer.Append(sessionID, trace.EventMessage, "customer message", map[string]interface{}{
		"role": string(memory.RoleCustomer),
	})

	if reason, fired, err := r.orch.DetectTrigger(sessionID, message); err != nil {
		return nil, err
	} else if fired {
		outcome = "escalated"
		return r.escalate(ctx, sessionID, reason)
	}

	decision, err := r.orch.Route(sessionID, message)
	if err != nil {
		return nil, err
	}
	observability.RecordRouting(decision.AgentID, decision.UsedFallback)

	agentCfg, ok := r.orch.Agent(decision.AgentID)
	if !ok {
		return nil, errorx.New(errorx.CategoryRouting,
			fmt.Sprintf("routed to unknown agent %s", decision.AgentID), false, false)
	}

	reply, err := r.exec.Execute(ctx, sessionID, agentexec.Agent{
		ID:            agentCfg.ID,
		Name:          agentCfg.Name,
		SystemPrompt:  agentCfg.SystemPrompt,
		AllowedTools:  agentCfg.AllowedTools,
		BoundaryRules: agentCfg.BoundaryRules,
	})
	if err != nil {
		return nil, err
	}

	// Tool failures during this turn can push the session over the
	// escalation threshold.
	if reason, fired, err := r.orch.DetectTrigger(sessionID, ""); err != nil {
		return nil, err
	} else if fired {
		outcome = "escalated"
		return r.escalate(ctx, sessionID, reason)
	}

	outcome = "handled"
	return &Response{
		Message: reply,
		AgentID: decision.AgentID,
		Intent:  decision.Intent,
	}, nil
}

// Trace renders a session's trace. Format "json" returns the full timeline
// export; anything else returns the human-readable report.
func (r *Runtime) Trace(sessionID, format string) (string, error) {
	if format == "json" {
		data, err := r.tracer.Export(sessionID)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return r.tracer.Report(sessionID)
}

// SessionSummary returns the derived trace summary for a session.
func (r *Runtime) SessionSummary(sessionID string) (*trace.Summary, error) {
	tr, err := r.tracer.Trace(sessionID)
	if err != nil {
		return nil, err
	}
	summary := tr.Summary
	return &summary, nil
}

// Session returns a copy of a session's state.
func (r *Runtime) Session(sessionID string) (*memory.Session, error) {
	return r.store.Session(sessionID)
}

// ClearSession removes a session, its trace and its turn lock, snapshotting
// it to the archive first.
func (r *Runtime) ClearSession(sessionID string) error {
	r.archiveSession(sessionID)

	if err := r.store.Clear(sessionID); err != nil {
		return err
	}
	r.tracer.Clear(sessionID)

	r.mu.Lock()
	delete(r.turnMu, sessionID)
	r.mu.Unlock()

	observability.RecordSessionCleared()
	observability.RecordSessionAudit(context.Background(), "clear", sessionID, "success", nil)
	observability.SetActiveSessions(r.store.Count())

	return nil
}

// SessionCount returns the number of live sessions.
func (r *Runtime) SessionCount() int {
	return r.store.Count()
}

// SubscribeTrace registers a subscriber for trace events across all
// sessions. Used by the live trace stream.
func (r *Runtime) SubscribeTrace(sub trace.Subscriber) {
	r.tracer.Subscribe(sub)
}

func (r *Runtime) escalate(ctx context.Context, sessionID, reason string) (*Response, error) {
	esc, err := r.orch.Escalate(sessionID, reason)
	if err != nil {
		return nil, err
	}

	observability.RecordEscalation(reason)
	observability.RecordEscalationAudit(ctx, sessionID, reason, nil)

	if err := r.store.AddMessage(sessionID, memory.RoleAgent, esc.Response); err != nil {
		return nil, err
	}

	r.archiveSession(sessionID)

	return &Response{
		Message:           esc.Response,
		Escalated:         true,
		EscalationSummary: esc.Summary,
	}, nil
}

// archiveSession snapshots a session and its trace to the archive. Failures
// are logged and swallowed: the live conversation is never held hostage to
// storage.
func (r *Runtime) archiveSession(sessionID string) {
	if r.archive == nil {
		return
	}

	sess, err := r.store.Session(sessionID)
	if err != nil {
		return
	}
	tr, _ := r.tracer.Trace(sessionID)

	err = r.archive.Archive(sess, tr)
	observability.RecordArchiveWrite(err == nil)
	if err != nil {
		r.logger.Warn().
			Str("session_id", sessionID).
			Err(err).
			Msg("Failed to archive session, continuing memory-only")
	}
}

func (r *Runtime) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.turnMu[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.turnMu[sessionID] = lock
	}
	return lock
}
