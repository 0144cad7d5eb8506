package lifecycle

import (
	"log/slog"
	"sync"
	"time"
)

// LifecycleFSM owns the authoritative state of every agent the gateway
// knows about and validates every transition against the table in
// types.go before applying it.
type LifecycleFSM struct {
	mu      sync.Mutex
	agents  map[string]*AgentStateRecord
	bus     *StateEventBus
	cleanup *CleanupJob
}

// NewLifecycleFSM creates an FSM with its own event bus. A cleanup job
// is not started automatically; call StartCleanup if periodic terminal
// state eviction is wanted.
func NewLifecycleFSM() *LifecycleFSM {
	return &LifecycleFSM{
		agents: make(map[string]*AgentStateRecord),
		bus:    NewStateEventBus(),
	}
}

// Bus returns the FSM's event bus, for subscribing to state changes.
func (f *LifecycleFSM) Bus() *StateEventBus {
	return f.bus
}

// Initialize creates a new agent record in SPAWNING. Returns
// ErrAgentExists if agentID is already known. Opportunistically prunes
// terminal records past DefaultTerminalTTL first, independent of
// whether a periodic CleanupJob is running, so a gateway that never
// starts one still bounds its memory under steady agent churn.
func (f *LifecycleFSM) Initialize(agentID string) (AgentStateRecord, error) {
	f.pruneExpired(DefaultTerminalTTL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.agents[agentID]; ok {
		return AgentStateRecord{}, ErrAgentExists
	}

	now := time.Now()
	rec := &AgentStateRecord{
		AgentID:        agentID,
		CurrentState:   Spawning,
		StateEnteredAt: now,
		CreatedAt:      now,
	}
	f.agents[agentID] = rec

	return rec.Snapshot(), nil
}

// Get returns a snapshot of the current record for agentID.
func (f *LifecycleFSM) Get(agentID string) (AgentStateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.agents[agentID]
	if !ok {
		return AgentStateRecord{}, ErrAgentNotFound
	}
	return rec.Snapshot(), nil
}

// List returns a snapshot of every known agent record.
func (f *LifecycleFSM) List() []AgentStateRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]AgentStateRecord, 0, len(f.agents))
	for _, rec := range f.agents {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Remove deletes an agent's record outright, used by the cleanup job.
// It is not part of the state machine itself: no event is emitted.
func (f *LifecycleFSM) Remove(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.agents, agentID)
}

// TransitionOpts carries the optional fields attached to a transition.
type TransitionOpts struct {
	CorrelationID string
	Error         *TransitionError
	Metadata      map[string]interface{}
}

// Transition moves agentID from its current state to newState if, and
// only if, that move is present in the transition table. On success
// the new record is returned and a StateChangeEvent is emitted on the
// bus after the lock is released. On rejection the agent's state is
// left untouched and no event is emitted.
func (f *LifecycleFSM) Transition(agentID string, newState State, reason Reason, opts TransitionOpts) (AgentStateRecord, error) {
	f.mu.Lock()

	rec, ok := f.agents[agentID]
	if !ok {
		f.mu.Unlock()
		return AgentStateRecord{}, ErrAgentNotFound
	}

	if !IsValidTransition(rec.CurrentState, newState) {
		from := rec.CurrentState
		valid := ValidTargets(from)
		f.mu.Unlock()
		slog.Warn("lifecycle: rejected invalid transition",
			"agent_id", agentID, "from", from, "to", newState, "valid_targets", valid)
		return AgentStateRecord{}, &InvalidTransitionError{
			AgentID: agentID,
			From:    from,
			To:      newState,
			Valid:   valid,
		}
	}

	transition := StateTransition{
		PreviousState: rec.CurrentState,
		NewState:      newState,
		Timestamp:     time.Now(),
		Reason:        reason,
		CorrelationID: opts.CorrelationID,
		Error:         opts.Error,
		Metadata:      opts.Metadata,
	}

	rec.CurrentState = newState
	rec.StateEnteredAt = transition.Timestamp
	rec.appendHistory(transition)
	snapshot := rec.Snapshot()

	f.mu.Unlock()

	f.bus.Emit(StateChangeEvent{AgentID: agentID, Transition: transition})

	return snapshot, nil
}

// markReady drives a freshly spawned agent through SPAWNING ->
// INITIALIZING -> READY, mirroring how a real driver reports startup
// in two phases. If the agent is not in SPAWNING, the first Transition
// fails with an InvalidTransitionError and markReady returns it without
// attempting the READY step.
func (f *LifecycleFSM) markReady(agentID string) (AgentStateRecord, error) {
	if _, err := f.Transition(agentID, Initializing, ReasonSpawnStarted, TransitionOpts{}); err != nil {
		return AgentStateRecord{}, err
	}
	return f.Transition(agentID, Ready, ReasonInitComplete, TransitionOpts{})
}

// markExecuting records that a command has started running.
func (f *LifecycleFSM) markExecuting(agentID, correlationID string) (AgentStateRecord, error) {
	return f.Transition(agentID, Executing, ReasonCommandStarted, TransitionOpts{CorrelationID: correlationID})
}

// markIdle records that a running command has finished, returning the
// agent to READY.
func (f *LifecycleFSM) markIdle(agentID, correlationID string) (AgentStateRecord, error) {
	return f.Transition(agentID, Ready, ReasonCommandComplete, TransitionOpts{CorrelationID: correlationID})
}

// markPaused records a user- or system-initiated pause.
func (f *LifecycleFSM) markPaused(agentID string, reason Reason) (AgentStateRecord, error) {
	return f.Transition(agentID, Paused, reason, TransitionOpts{})
}

// markTerminating begins a graceful shutdown.
func (f *LifecycleFSM) markTerminating(agentID string, reason Reason) (AgentStateRecord, error) {
	return f.Transition(agentID, Terminating, reason, TransitionOpts{})
}

// markTerminated records that shutdown finished cleanly.
func (f *LifecycleFSM) markTerminated(agentID string) (AgentStateRecord, error) {
	return f.Transition(agentID, Terminated, ReasonTerminateComplete, TransitionOpts{})
}

// markFailed records a terminal failure from any non-terminal state,
// attaching the error detail so subscribers can surface it.
func (f *LifecycleFSM) markFailed(agentID string, reason Reason, transitionErr *TransitionError) (AgentStateRecord, error) {
	return f.Transition(agentID, Failed, reason, TransitionOpts{Error: transitionErr})
}

// StartCleanup launches a CleanupJob bound to this FSM with the given
// interval and TTL, replacing any job already running.
func (f *LifecycleFSM) StartCleanup(interval, ttl time.Duration) {
	if f.cleanup != nil {
		f.cleanup.Stop()
	}
	f.cleanup = NewCleanupJob(f, interval, ttl)
	f.cleanup.Start()
	slog.Info("lifecycle cleanup job started", "interval", interval, "ttl", ttl)
}

// StopCleanup stops the running cleanup job, if any.
func (f *LifecycleFSM) StopCleanup() {
	if f.cleanup == nil {
		return
	}
	f.cleanup.Stop()
	f.cleanup = nil
}

// pruneExpired removes every terminal agent whose StateEnteredAt is
// older than ttl. Returns the number removed. Called by CleanupJob and
// by Initialize (with DefaultTerminalTTL); safe to call directly in
// tests.
func (f *LifecycleFSM) pruneExpired(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, rec := range f.agents {
		if rec.CurrentState.Terminal() && rec.StateEnteredAt.Before(cutoff) {
			delete(f.agents, id)
			removed++
		}
	}
	return removed
}
