package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDriver_SpawnSendGetOutput(t *testing.T) {
	now := time.Now()
	d := NewMockDriver(func() time.Time { return now }, nil)
	ctx := context.Background()

	agent, err := d.Spawn(ctx, SpawnConfig{AgentID: "agent-1", DriverType: "subprocess"})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)

	result, err := d.Send(ctx, "agent-1", "hello")
	require.NoError(t, err)
	assert.True(t, result.Queued)
	assert.NotEmpty(t, result.MessageID)

	lines, err := d.GetOutput(ctx, "agent-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0].Content)
}

func TestMockDriver_SendUnknownAgentFails(t *testing.T) {
	d := NewMockDriver(nil, nil)
	_, err := d.Send(context.Background(), "nope", "hi")
	assert.Error(t, err)
}

func TestMockDriver_GetOutputFiltersSinceAndLimit(t *testing.T) {
	base := time.Now()
	d := NewMockDriver(func() time.Time { return base }, nil)
	ctx := context.Background()
	_, err := d.Spawn(ctx, SpawnConfig{AgentID: "agent-1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d.PushOutput("agent-1", OutputLine{Timestamp: base.Add(time.Duration(i) * time.Minute), Type: OutputLineText, Content: "line"})
	}

	since := base.Add(2 * time.Minute)
	lines, err := d.GetOutput(ctx, "agent-1", &since, 0)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	limited, err := d.GetOutput(ctx, "agent-1", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMockDriver_TerminateRemovesAgent(t *testing.T) {
	d := NewMockDriver(nil, nil)
	ctx := context.Background()
	_, err := d.Spawn(ctx, SpawnConfig{AgentID: "agent-1"})
	require.NoError(t, err)

	require.NoError(t, d.Terminate(ctx, "agent-1", true))
	_, err = d.Send(ctx, "agent-1", "hi")
	assert.Error(t, err)
}

func TestMockDriver_InterruptUnknownAgentFails(t *testing.T) {
	d := NewMockDriver(nil, nil)
	err := d.Interrupt(context.Background(), "nope")
	assert.Error(t, err)
}

func TestMockDriver_ForcedErrorsPropagate(t *testing.T) {
	d := NewMockDriver(nil, nil)
	d.SpawnErr = errors.New("boom")
	_, err := d.Spawn(context.Background(), SpawnConfig{AgentID: "agent-1"})
	assert.ErrorIs(t, err, d.SpawnErr)
}
