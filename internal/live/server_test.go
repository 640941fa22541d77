package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/internal/metrics"
	redisclient "github.com/mwangaza12/meditime/internal/redis"
	"github.com/mwangaza12/meditime/pkg/logging"
)

// loopback delivers every published envelope to the registered servers.
type loopback struct {
	mu      sync.Mutex
	servers []*Server
}

func (l *loopback) Publish(_ context.Context, env redisclient.Envelope) error {
	l.mu.Lock()
	servers := append([]*Server(nil), l.servers...)
	l.mu.Unlock()
	for _, s := range servers {
		s.Deliver(env)
	}
	return nil
}

func startServer(t *testing.T, pub Publisher) (*Server, *Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := NewServer(hub, pub, logging.Nop(), metrics.New(prometheus.NewRegistry()))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room := strings.TrimPrefix(r.URL.Path, "/ws/complaints/")
		_ = srv.Serve(w, r, room, "user-1")
	}))
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/complaints/"
}

func dial(t *testing.T, url string) *gorillawebsocket.Conn {
	t.Helper()
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorillawebsocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func expectSilence(t *testing.T, conn *gorillawebsocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no frame")
}

func sendReply(t *testing.T, conn *gorillawebsocket.Conn, id, complaintID string) {
	t.Helper()
	sendReplyAs(t, conn, id, complaintID, "user-1")
}

func sendReplyAs(t *testing.T, conn *gorillawebsocket.Conn, id, complaintID, senderID string) {
	t.Helper()
	frame := `{"event":"send-reply","data":{"id":"` + id + `","complaintId":"` + complaintID + `","senderId":"` + senderID + `","message":"hello"}}`
	require.NoError(t, conn.WriteMessage(gorillawebsocket.TextMessage, []byte(frame)))
}

func TestRelayReachesOtherRoomMembersOnly(t *testing.T) {
	_, hub, base := startServer(t, nil)

	sender := dial(t, base+"c1")
	peer := dial(t, base+"c1")
	outsider := dial(t, base+"c2")

	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	sendReply(t, sender, "r1", "c1")

	f := readFrame(t, peer)
	assert.Equal(t, EventNewReply, f.Event)
	assert.JSONEq(t, `{"id":"r1","complaintId":"c1","senderId":"user-1","message":"hello"}`, string(f.Data))

	expectSilence(t, sender)
	expectSilence(t, outsider)
}

func TestRelayDropsForeignComplaint(t *testing.T) {
	_, hub, base := startServer(t, nil)

	sender := dial(t, base+"c1")
	peer := dial(t, base+"c1")
	require.Eventually(t, func() bool { return hub.RoomCount("c1") == 2 }, 2*time.Second, 10*time.Millisecond)

	sendReply(t, sender, "r1", "c9")
	expectSilence(t, peer)
}

func TestRelayDropsForgedSender(t *testing.T) {
	_, hub, base := startServer(t, nil)

	sender := dial(t, base+"c1")
	peer := dial(t, base+"c1")
	require.Eventually(t, func() bool { return hub.RoomCount("c1") == 2 }, 2*time.Second, 10*time.Millisecond)

	sendReplyAs(t, sender, "r1", "c1", "someone-else")
	expectSilence(t, peer)

	sendReply(t, sender, "r2", "c1")
	f := readFrame(t, peer)
	assert.Contains(t, string(f.Data), `"r2"`)
}

func TestRelayCrossesInstances(t *testing.T) {
	bus := &loopback{}
	srvA, hubA, baseA := startServer(t, bus)
	srvB, hubB, baseB := startServer(t, bus)
	bus.servers = []*Server{srvA, srvB}

	sender := dial(t, baseA+"c1")
	remote := dial(t, baseB+"c1")
	require.Eventually(t, func() bool { return hubA.ClientCount() == 1 && hubB.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	sendReply(t, sender, "r7", "c1")

	f := readFrame(t, remote)
	assert.Equal(t, EventNewReply, f.Event)
	// The origin instance ignores its own envelope, so the sender hears nothing.
	expectSilence(t, sender)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	_, hub, base := startServer(t, nil)

	conn := dial(t, base+"c1")
	require.Eventually(t, func() bool { return hub.RoomCount("c1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.RoomCount("c1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
