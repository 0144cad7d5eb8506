// Package hub implements the WebSocketHub: a channel-keyed subscriber
// map that publishes typed events with metadata. The hub's internal
// wiring (subscribers, connections) is an implementation detail the
// rest of the core treats as an opaque sink; only Publish's signature
// is part of the contract.
package hub

// ChannelKind is the closed variant of fan-out groups a client can
// subscribe to.
type ChannelKind string

const (
	ChannelAgentOutput    ChannelKind = "agent:output"
	ChannelAgentTools     ChannelKind = "agent:tools"
	ChannelAgentState     ChannelKind = "agent:state"
	ChannelWorkspaceGraph ChannelKind = "workspace:graph"
	ChannelSystemHealth   ChannelKind = "system:health"
)

// Channel is a tagged-union fan-out key. Equality is by value: two
// Channels identify the same subscriber group iff Kind matches and
// the id field relevant to that kind matches.
type Channel struct {
	Kind        ChannelKind
	AgentID     string
	WorkspaceID string
}

// AgentOutputChannel identifies the output stream for one agent.
func AgentOutputChannel(agentID string) Channel {
	return Channel{Kind: ChannelAgentOutput, AgentID: agentID}
}

// AgentToolsChannel identifies the tool-call stream for one agent.
func AgentToolsChannel(agentID string) Channel {
	return Channel{Kind: ChannelAgentTools, AgentID: agentID}
}

// AgentStateChannel identifies the lifecycle-state stream for one agent.
func AgentStateChannel(agentID string) Channel {
	return Channel{Kind: ChannelAgentState, AgentID: agentID}
}

// WorkspaceGraphChannel identifies the dependency-graph stream for one
// workspace.
func WorkspaceGraphChannel(workspaceID string) Channel {
	return Channel{Kind: ChannelWorkspaceGraph, WorkspaceID: workspaceID}
}

// SystemHealthChannel is the single process-wide health channel.
func SystemHealthChannel() Channel {
	return Channel{Kind: ChannelSystemHealth}
}

// key returns a comparable string that uniquely identifies this
// channel, used internally as the subscriber map key. It is not part
// of the wire protocol: channels are opaque to external consumers.
func (c Channel) key() string {
	switch c.Kind {
	case ChannelAgentOutput, ChannelAgentTools, ChannelAgentState:
		return string(c.Kind) + ":" + c.AgentID
	case ChannelWorkspaceGraph:
		return string(c.Kind) + ":" + c.WorkspaceID
	default:
		return string(c.Kind)
	}
}

// Stable event type strings external clients depend on.
const (
	EventTypeStateChange         = "state.change"
	EventTypeOutputChunk         = "output.chunk"
	EventTypeToolStart           = "tool.start"
	EventTypeToolEnd             = "tool.end"
	EventTypeGraphNodeAdded      = "graph.node_added"
	EventTypeGraphNodeRemoved    = "graph.node_removed"
	EventTypeGraphNodeUpdated    = "graph.node_updated"
	EventTypeGraphEdgeAdded      = "graph.edge_added"
	EventTypeGraphEdgeRemoved    = "graph.edge_removed"
	EventTypeGraphEdgeUpdated    = "graph.edge_updated"
	EventTypeGraphFullRefresh    = "graph.full_refresh"
	EventTypeGraphStats          = "graph.stats"
	EventTypeCheckpointCompacted = "checkpoint.compacted"
)

// ClientMessage is the JSON structure for client -> server WebSocket
// control messages. The channel field is a kind plus the id relevant
// to it, since this hub's channels are a tagged union rather than a
// single formatted string.
type ClientMessage struct {
	Action      string      `json:"action"`
	ChannelKind ChannelKind `json:"channelKind,omitempty"`
	AgentID     string      `json:"agentId,omitempty"`
	WorkspaceID string      `json:"workspaceId,omitempty"`
}

// Channel reconstructs the Channel a ClientMessage refers to.
func (m ClientMessage) Channel() Channel {
	return Channel{Kind: m.ChannelKind, AgentID: m.AgentID, WorkspaceID: m.WorkspaceID}
}
