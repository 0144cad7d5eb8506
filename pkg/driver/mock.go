package driver

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockDriver is an in-memory Driver implementation used by tests and
// local development. SpawnErr/SendErr/TerminateErr/InterruptErr let a
// test force a specific call to fail.
type MockDriver struct {
	mu      sync.Mutex
	agents  map[string]SpawnedAgent
	output  map[string][]OutputLine
	nowFunc func() time.Time
	idFunc  func() string

	SpawnErr     error
	SendErr      error
	TerminateErr error
	InterruptErr error
}

// NewMockDriver builds a MockDriver. nowFunc/idFunc default to time.Now
// and a counter-based id generator when nil.
func NewMockDriver(nowFunc func() time.Time, idFunc func() string) *MockDriver {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	if idFunc == nil {
		var n int
		idFunc = func() string {
			n++
			return fmt.Sprintf("msg-%d", n)
		}
	}
	return &MockDriver{
		agents:  make(map[string]SpawnedAgent),
		output:  make(map[string][]OutputLine),
		nowFunc: nowFunc,
		idFunc:  idFunc,
	}
}

func (d *MockDriver) Spawn(_ context.Context, cfg SpawnConfig) (SpawnedAgent, error) {
	if d.SpawnErr != nil {
		return SpawnedAgent{}, d.SpawnErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.nowFunc()
	agent := SpawnedAgent{
		ID:             cfg.AgentID,
		ActivityState:  "running",
		DriverType:     cfg.DriverType,
		StartedAt:      now,
		Config:         cfg,
		LastActivityAt: now,
	}
	d.agents[cfg.AgentID] = agent
	return agent, nil
}

func (d *MockDriver) Send(_ context.Context, agentID, content string) (SendResult, error) {
	if d.SendErr != nil {
		return SendResult{}, d.SendErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.agents[agentID]; !ok {
		return SendResult{}, fmt.Errorf("driver: unknown agent %q", agentID)
	}
	d.output[agentID] = append(d.output[agentID], OutputLine{
		Timestamp: d.nowFunc(),
		Type:      OutputLineText,
		Content:   content,
	})
	return SendResult{MessageID: d.idFunc(), Queued: true}, nil
}

func (d *MockDriver) Terminate(_ context.Context, agentID string, _ bool) error {
	if d.TerminateErr != nil {
		return d.TerminateErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.agents, agentID)
	return nil
}

func (d *MockDriver) Interrupt(_ context.Context, agentID string) error {
	if d.InterruptErr != nil {
		return d.InterruptErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[agentID]; !ok {
		return fmt.Errorf("driver: unknown agent %q", agentID)
	}
	return nil
}

func (d *MockDriver) GetOutput(_ context.Context, agentID string, since *time.Time, limit int) ([]OutputLine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines := d.output[agentID]
	var filtered []OutputLine
	for _, line := range lines {
		if since != nil && !line.Timestamp.After(*since) {
			continue
		}
		filtered = append(filtered, line)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// PushOutput lets a test seed output lines directly, e.g. to simulate
// tool_call/tool_result events without going through Send.
func (d *MockDriver) PushOutput(agentID string, line OutputLine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output[agentID] = append(d.output[agentID], line)
}
