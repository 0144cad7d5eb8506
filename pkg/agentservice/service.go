// Package agentservice orchestrates agent spawn/send/terminate/interrupt
// across the driver, lifecycle FSM, and agent registry, and bridges
// FSM transitions out to the WebSocket hub.
package agentservice

import (
	"context"
	"fmt"
	"time"

	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/driver"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/ids"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/lifecycle"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/registry"
)

// ValidationError reports that a request failed a precondition check
// (unknown agent, wrong lifecycle state) rather than a driver failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DriverError wraps a failure returned by the driver, after the FSM has
// already been marked FAILED for it.
type DriverError struct {
	AgentID string
	Cause   error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("agentservice: driver error for %s: %v", e.AgentID, e.Cause)
}
func (e *DriverError) Unwrap() error { return e.Cause }

// AgentService is the public contract HTTP handlers call into.
type AgentService struct {
	driver   driver.Driver
	fsm      *lifecycle.LifecycleFSM
	registry *registry.AgentRegistry
	idFunc   func() string
}

// New builds an AgentService over the given collaborators.
func New(d driver.Driver, fsm *lifecycle.LifecycleFSM, reg *registry.AgentRegistry) *AgentService {
	return &AgentService{driver: d, fsm: fsm, registry: reg, idFunc: ids.New}
}

// Spawn starts a new agent: initializes its FSM record, registers it,
// then asks the driver to actually start it. A driver failure marks the
// agent FAILED rather than leaving it stuck in SPAWNING.
func (s *AgentService) Spawn(ctx context.Context, cfg driver.SpawnConfig) (driver.SpawnedAgent, error) {
	if cfg.AgentID == "" {
		cfg.AgentID = s.idFunc()
	}

	if _, err := s.fsm.Initialize(cfg.AgentID); err != nil {
		return driver.SpawnedAgent{}, &ValidationError{Message: err.Error()}
	}
	if _, err := s.registry.Register(cfg.AgentID, nil); err != nil {
		return driver.SpawnedAgent{}, &ValidationError{Message: err.Error()}
	}

	spawned, err := s.driver.Spawn(ctx, cfg)
	if err != nil {
		s.failAgent(cfg.AgentID, err)
		return driver.SpawnedAgent{}, &DriverError{AgentID: cfg.AgentID, Cause: err}
	}

	if _, err := s.fsm.Transition(cfg.AgentID, lifecycle.Initializing, lifecycle.ReasonSpawnStarted, lifecycle.TransitionOpts{}); err != nil {
		return driver.SpawnedAgent{}, &ValidationError{Message: err.Error()}
	}
	if _, err := s.fsm.Transition(cfg.AgentID, lifecycle.Ready, lifecycle.ReasonInitComplete, lifecycle.TransitionOpts{}); err != nil {
		return driver.SpawnedAgent{}, &ValidationError{Message: err.Error()}
	}

	return spawned, nil
}

// Send delivers content to a live agent, requiring it to be alive per
// the lifecycle FSM.
func (s *AgentService) Send(ctx context.Context, agentID, content string) (driver.SendResult, error) {
	record, err := s.fsm.Get(agentID)
	if err != nil {
		return driver.SendResult{}, &ValidationError{Message: err.Error()}
	}
	if !record.CurrentState.Alive() {
		return driver.SendResult{}, &ValidationError{Message: fmt.Sprintf("agent %s is not alive (state=%s)", agentID, record.CurrentState)}
	}

	if _, err := s.fsm.Transition(agentID, lifecycle.Executing, lifecycle.ReasonCommandStarted, lifecycle.TransitionOpts{}); err != nil {
		return driver.SendResult{}, &ValidationError{Message: err.Error()}
	}

	result, err := s.driver.Send(ctx, agentID, content)
	if err != nil {
		s.failAgent(agentID, err)
		return driver.SendResult{}, &DriverError{AgentID: agentID, Cause: err}
	}

	_ = s.registry.RecordMessageSent(agentID)
	if _, err := s.fsm.Transition(agentID, lifecycle.Ready, lifecycle.ReasonCommandComplete, lifecycle.TransitionOpts{}); err != nil {
		return driver.SendResult{}, &ValidationError{Message: err.Error()}
	}

	return result, nil
}

// Terminate stops an agent, requiring it to exist in the registry.
func (s *AgentService) Terminate(ctx context.Context, agentID string, graceful bool) error {
	if _, err := s.registry.Get(agentID); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	if _, err := s.fsm.Transition(agentID, lifecycle.Terminating, lifecycle.ReasonTerminateRequested, lifecycle.TransitionOpts{}); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	if err := s.driver.Terminate(ctx, agentID, graceful); err != nil {
		s.failAgent(agentID, err)
		return &DriverError{AgentID: agentID, Cause: err}
	}

	if _, err := s.fsm.Transition(agentID, lifecycle.Terminated, lifecycle.ReasonTerminateComplete, lifecycle.TransitionOpts{}); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// Interrupt asks the driver to interrupt an in-flight command, without
// changing the agent's lifecycle state itself.
func (s *AgentService) Interrupt(ctx context.Context, agentID string) error {
	if _, err := s.fsm.Get(agentID); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if err := s.driver.Interrupt(ctx, agentID); err != nil {
		s.failAgent(agentID, err)
		return &DriverError{AgentID: agentID, Cause: err}
	}
	return nil
}

// GetOutput proxies to the driver and records a received-message
// counter per returned line.
func (s *AgentService) GetOutput(ctx context.Context, agentID string, since *time.Time, limit int) ([]driver.OutputLine, error) {
	if _, err := s.registry.Get(agentID); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	lines, err := s.driver.GetOutput(ctx, agentID, since, limit)
	if err != nil {
		return nil, &DriverError{AgentID: agentID, Cause: err}
	}
	for range lines {
		_ = s.registry.RecordMessageReceived(agentID)
	}
	return lines, nil
}

// failAgent marks agentID FAILED with a driver_error reason. The FSM
// call's own error is swallowed: if the agent is already terminal there
// is nothing more useful to do than log, which Transition already does.
func (s *AgentService) failAgent(agentID string, cause error) {
	_, _ = s.fsm.Transition(agentID, lifecycle.Failed, lifecycle.ReasonDriverError, lifecycle.TransitionOpts{
		Error: &lifecycle.TransitionError{Code: "driver_error", Message: cause.Error()},
	})
}
