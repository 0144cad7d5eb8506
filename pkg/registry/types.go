// Package registry holds the canonical mapping of agent ids to their
// driver handle and lifetime counters.
package registry

import "time"

// DriverHandle is an opaque value a caller may store alongside an
// agent. The registry never inspects it. AgentService registers agents
// with a nil handle and addresses the driver by agent id.
type DriverHandle interface{}

// AgentRecord is the registry's owned view of one agent: its driver
// handle plus lifetime counters. AgentService updates MessagesReceived
// and MessagesSent; ToolCalls changes only through RecordToolCall,
// which AgentService does not call.
type AgentRecord struct {
	AgentID          string
	DriverHandle     DriverHandle
	CreatedAt        time.Time
	MessagesReceived int
	MessagesSent     int
	ToolCalls        int
}

// clone returns a copy safe to hand outside the registry's lock.
func (r AgentRecord) clone() AgentRecord {
	return r
}
