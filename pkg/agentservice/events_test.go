package agentservice

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/hub"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/lifecycle"
)

func setupTestHub(t *testing.T) (*hub.WebSocketHub, *httptest.Server) {
	t.Helper()

	h := hub.NewWebSocketHub(2*time.Second, func() string { return "evt-1" })
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		h.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(server.Close)
	return h, server
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// subscribeToAgentState drains the connection-established message and
// subscribes to agentID's state channel, blocking until the hub
// confirms the subscription so the caller can emit events without a
// race against delivery.
func subscribeToAgentState(t *testing.T, conn *websocket.Conn, agentID string) {
	t.Helper()

	var established map[string]interface{}
	require.NoError(t, conn.ReadJSON(&established))

	ch := hub.AgentStateChannel(agentID)
	require.NoError(t, conn.WriteJSON(hub.ClientMessage{Action: "subscribe", ChannelKind: ch.Kind, AgentID: ch.AgentID}))

	var confirmed map[string]interface{}
	require.NoError(t, conn.ReadJSON(&confirmed))
	require.Equal(t, "subscription.confirmed", confirmed["type"])
}

func TestAgentEventsService_PublishesStateChangeToHub(t *testing.T) {
	bus := lifecycle.NewStateEventBus()
	h, server := setupTestHub(t)
	conn := dialHub(t, server)
	subscribeToAgentState(t, conn, "agent-1")

	svc := NewAgentEventsService(bus, h)
	defer svc.Close(bus)

	bus.Emit(lifecycle.StateChangeEvent{
		AgentID: "agent-1",
		Transition: lifecycle.StateTransition{
			PreviousState: lifecycle.Ready,
			NewState:      lifecycle.Executing,
			Reason:        lifecycle.ReasonCommandStarted,
			Timestamp:     time.Now(),
		},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var delivered map[string]interface{}
	require.NoError(t, conn.ReadJSON(&delivered))
	assert.Equal(t, hub.EventTypeStateChange, delivered["type"])

	payload, ok := delivered["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "agent-1", payload["agentId"])
	assert.Equal(t, string(lifecycle.Ready), payload["previousState"])
	assert.Equal(t, string(lifecycle.Executing), payload["newState"])
}

func TestAgentEventsService_CloseStopsDeliveringFurtherEvents(t *testing.T) {
	bus := lifecycle.NewStateEventBus()
	h, server := setupTestHub(t)
	conn := dialHub(t, server)
	subscribeToAgentState(t, conn, "agent-1")

	svc := NewAgentEventsService(bus, h)
	svc.Close(bus)

	bus.Emit(lifecycle.StateChangeEvent{
		AgentID: "agent-1",
		Transition: lifecycle.StateTransition{
			PreviousState: lifecycle.Ready,
			NewState:      lifecycle.Executing,
			Reason:        lifecycle.ReasonCommandStarted,
			Timestamp:     time.Now(),
		},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var delivered map[string]interface{}
	err := conn.ReadJSON(&delivered)
	assert.Error(t, err, "no event should arrive once the service is closed")
}
