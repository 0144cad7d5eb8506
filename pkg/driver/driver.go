// Package driver defines the external collaborator interface AgentService
// uses to actually run an agent process: spawn, send input, terminate,
// interrupt, and read output. This package has no production
// implementation of its own — concrete drivers (subprocess, container,
// remote) live outside the core and are injected at construction time.
package driver

import (
	"context"
	"time"
)

// OutputLineType is the closed set of kinds an OutputLine can carry.
type OutputLineType string

const (
	OutputLineText       OutputLineType = "text"
	OutputLineToolCall   OutputLineType = "tool_call"
	OutputLineToolResult OutputLineType = "tool_result"
)

// OutputLine is one line of output a driver produces for an agent.
type OutputLine struct {
	Timestamp time.Time
	Type      OutputLineType
	Content   string
}

// SpawnConfig configures a new agent process.
type SpawnConfig struct {
	AgentID     string
	WorkspaceID string
	DriverType  string
	Command     string
	Args        []string
	Env         map[string]string
}

// SpawnedAgent is what a successful Spawn returns.
type SpawnedAgent struct {
	ID             string
	ActivityState  string
	DriverType     string
	StartedAt      time.Time
	Config         SpawnConfig
	LastActivityAt time.Time
	TokenUsage     TokenUsage
}

// TokenUsage tracks token consumption for an agent's driver process.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SendResult is returned by Send.
type SendResult struct {
	MessageID string
	Queued    bool
}

// Driver is the capability AgentService depends on to run agents. A
// production driver might shell out to a subprocess, talk to a
// container runtime, or proxy to a remote execution service; the core
// only ever sees this interface.
type Driver interface {
	Spawn(ctx context.Context, cfg SpawnConfig) (SpawnedAgent, error)
	Send(ctx context.Context, agentID, content string) (SendResult, error)
	Terminate(ctx context.Context, agentID string, graceful bool) error
	Interrupt(ctx context.Context, agentID string) error
	GetOutput(ctx context.Context, agentID string, since *time.Time, limit int) ([]OutputLine, error)
}
