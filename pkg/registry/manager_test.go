package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRegistry_RegisterAndGet(t *testing.T) {
	reg := NewAgentRegistry()

	rec, err := reg.Register("agent-1", "handle-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", rec.AgentID)
	assert.Equal(t, "handle-1", rec.DriverHandle)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestAgentRegistry_RegisterDuplicateFails(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Register("agent-1", nil)
	require.NoError(t, err)

	_, err = reg.Register("agent-1", nil)
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestAgentRegistry_GetUnknownFails(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAgentRegistry_CountersIncrement(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Register("agent-1", nil)
	require.NoError(t, err)

	require.NoError(t, reg.RecordMessageReceived("agent-1"))
	require.NoError(t, reg.RecordMessageReceived("agent-1"))
	require.NoError(t, reg.RecordMessageSent("agent-1"))
	require.NoError(t, reg.RecordToolCall("agent-1"))
	require.NoError(t, reg.RecordToolCall("agent-1"))
	require.NoError(t, reg.RecordToolCall("agent-1"))

	rec, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.MessagesReceived)
	assert.Equal(t, 1, rec.MessagesSent)
	assert.Equal(t, 3, rec.ToolCalls)
}

func TestAgentRegistry_CounterOnUnknownAgentFails(t *testing.T) {
	reg := NewAgentRegistry()
	assert.ErrorIs(t, reg.RecordMessageReceived("nope"), ErrAgentNotFound)
	assert.ErrorIs(t, reg.RecordMessageSent("nope"), ErrAgentNotFound)
	assert.ErrorIs(t, reg.RecordToolCall("nope"), ErrAgentNotFound)
}

func TestAgentRegistry_Delete(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Register("agent-1", nil)
	require.NoError(t, err)

	require.NoError(t, reg.Delete("agent-1"))
	_, err = reg.Get("agent-1")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	assert.ErrorIs(t, reg.Delete("agent-1"), ErrAgentNotFound)
}

func TestAgentRegistry_List(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Register("agent-1", nil)
	require.NoError(t, err)
	_, err = reg.Register("agent-2", nil)
	require.NoError(t, err)

	list := reg.List()
	assert.Len(t, list, 2)
}

func TestAgentRegistry_ConcurrentCounterUpdates(t *testing.T) {
	reg := NewAgentRegistry()
	_, err := reg.Register("agent-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.RecordMessageReceived("agent-1")
		}()
	}
	wg.Wait()

	rec, err := reg.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.MessagesReceived)
}
